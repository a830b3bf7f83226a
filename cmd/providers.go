package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/finflow/payment-stream-engine/config"
	"github.com/finflow/payment-stream-engine/internal/adapter/elastic"
	"github.com/finflow/payment-stream-engine/internal/adapter/postgres"
	"github.com/finflow/payment-stream-engine/internal/pipeline"
)

func ProvideLogger(cfg *config.Config) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger, nil
}

// ProvideDestinationBuilders registers the known destination types.
// Which of them actually run is decided by the sink config sections.
func ProvideDestinationBuilders() map[string]pipeline.DestinationBuilder {
	return map[string]pipeline.DestinationBuilder{
		"elasticsearch": elastic.Build,
		"postgres":      postgres.Build,
	}
}
