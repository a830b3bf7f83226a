package cmd

import (
	"log/slog"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/finflow/payment-stream-engine/config"
	httpserver "github.com/finflow/payment-stream-engine/infra/server/http"
	kafkahandler "github.com/finflow/payment-stream-engine/internal/handler/kafka"
	"github.com/finflow/payment-stream-engine/internal/pipeline"
	"github.com/finflow/payment-stream-engine/internal/service"
)

func NewApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
			ProvideDestinationBuilders,
			func(c *pipeline.Coordinator) httpserver.Healther { return c },
			httpserver.New,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger}
		}),
		service.Module,
		pipeline.Module,
		kafkahandler.Module,
		fx.Invoke(registerLifecycle),
	)
}
