package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/finflow/payment-stream-engine/config"
)

// Healther reports overall engine health for the readiness probe. The
// coordinator implements it: a frozen checkpoint or halted pipeline
// flips readiness to 503 so the stall is visible instead of silent.
type Healther interface {
	Healthy() bool
}

type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

func New(cfg *config.Config, health Healther, logger *slog.Logger) *Server {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if !health.Healthy() {
			http.Error(w, "pipeline stalled", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())

	return &Server{
		srv: &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("PROBE_SERVER_FAILED", "err", err)
		}
	}()
	s.logger.Info("PROBE_SERVER_READY", "addr", s.srv.Addr)
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
