package cmd

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"

	httpserver "github.com/finflow/payment-stream-engine/infra/server/http"
	kafkahandler "github.com/finflow/payment-stream-engine/internal/handler/kafka"
	"github.com/finflow/payment-stream-engine/internal/pipeline"
)

// registerLifecycle sequences startup and drain-ordered shutdown. Up:
// ack loop and flush workers before the reader, so nothing dispatched is
// ever unconsumed. Down: reader first, then pipelines drain in-flight
// batches to resolution, then the ack loop, and the Kafka client last so
// the final checkpoint commits still have a live connection.
func registerLifecycle(
	lc fx.Lifecycle,
	bindings []pipeline.Binding,
	router *pipeline.Router,
	reader *kafkahandler.Reader,
	srv *httpserver.Server,
	logger *slog.Logger,
) {
	var cancelRead context.CancelFunc
	readerDone := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			router.Start()
			for _, b := range bindings {
				b.Pipeline.Start()
			}

			readCtx, cancel := context.WithCancel(context.Background())
			cancelRead = cancel
			go func() {
				defer close(readerDone)
				if err := reader.Run(readCtx); err != nil {
					logger.Error("READER_FAILED", "err", err)
				}
			}()

			return srv.Start()
		},
		OnStop: func(ctx context.Context) error {
			_ = srv.Stop(ctx)

			cancelRead()
			select {
			case <-readerDone:
			case <-ctx.Done():
			}

			var g errgroup.Group
			for _, b := range bindings {
				b := b
				g.Go(func() error {
					if err := b.Pipeline.Close(ctx); err != nil {
						logger.Error("PIPELINE_DRAIN_FAILED", "sink", b.Name, "err", err)
						return err
					}
					return nil
				})
			}
			drainErr := g.Wait()
			router.Stop()
			reader.Close()
			return drainErr
		},
	})
}
