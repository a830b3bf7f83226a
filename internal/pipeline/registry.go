package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/finflow/payment-stream-engine/config"
	"github.com/finflow/payment-stream-engine/internal/service"
)

// Binding ties one projector to one sink pipeline under its config name.
type Binding struct {
	Name      string
	Projector service.Projector
	Pipeline  *SinkPipeline
}

// DestinationBuilder constructs a concrete destination from its config
// section. Builders are registered per destination type; which of them
// actually run is decided by configuration alone.
type DestinationBuilder func(name string, cfg config.SinkConfig, logger *slog.Logger) (Destination, error)

// BuildBindings assembles the enabled sinks in deterministic order. Each
// destination is wrapped in a circuit breaker before its pipeline.
func BuildBindings(
	cfg *config.Config,
	builders map[string]DestinationBuilder,
	projectors map[string]service.Projector,
	acks chan Ack,
	logger *slog.Logger,
) ([]Binding, error) {
	names := make([]string, 0, len(cfg.Sinks))
	for name := range cfg.Sinks {
		names = append(names, name)
	}
	slices.Sort(names)

	var bindings []Binding
	for _, name := range names {
		sc := cfg.Sinks[name]
		if !sc.Enabled {
			logger.Info("SINK_DISABLED", "sink", name)
			continue
		}

		build, ok := builders[sc.Type]
		if !ok {
			return nil, fmt.Errorf("sink %s: no builder for type %q", name, sc.Type)
		}
		projector, ok := projectors[sc.Projection]
		if !ok {
			return nil, fmt.Errorf("sink %s: no projector named %q", name, sc.Projection)
		}
		dest, err := build(name, sc, logger)
		if err != nil {
			return nil, fmt.Errorf("sink %s: %w", name, err)
		}

		pipe := NewSinkPipeline(name, NewBreakerDestination(dest, logger), Options{
			MaxRows:      sc.BatchMaxRows,
			MaxInterval:  sc.BatchMaxInterval,
			MaxAttempts:  sc.MaxRetryAttempts,
			Policy:       FailurePolicy(sc.FailurePolicy),
			Parallelism:  sc.Parallelism,
			PendingLimit: sc.PendingLimit,
		}, acks, logger)

		bindings = append(bindings, Binding{Name: name, Projector: projector, Pipeline: pipe})
	}
	if len(bindings) == 0 {
		return nil, errors.New("no sinks enabled")
	}
	return bindings, nil
}
