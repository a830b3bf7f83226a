package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerDestination wraps a Destination with a circuit breaker. While
// the breaker is open, Deliver fails fast without touching the
// destination and feeds the pipeline's ordinary retry path, so a dead
// sink stops accumulating connection timeouts.
type BreakerDestination struct {
	inner Destination
	cb    *gobreaker.CircuitBreaker
}

func NewBreakerDestination(inner Destination, logger *slog.Logger) *BreakerDestination {
	settings := gobreaker.Settings{
		Name:    inner.Name(),
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("BREAKER_STATE_CHANGED",
				"sink", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}
	return &BreakerDestination{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker(settings),
	}
}

func (d *BreakerDestination) Name() string { return d.inner.Name() }

func (d *BreakerDestination) Deliver(ctx context.Context, records []Envelope) error {
	_, err := d.cb.Execute(func() (any, error) {
		return nil, d.inner.Deliver(ctx, records)
	})
	return err
}

func (d *BreakerDestination) Close(ctx context.Context) error {
	return d.inner.Close(ctx)
}
