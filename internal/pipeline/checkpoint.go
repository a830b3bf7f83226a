package pipeline

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/finflow/payment-stream-engine/infra/metrics"
)

// Store persists committed positions so a restart resumes with no
// unacknowledged work behind it.
type Store interface {
	Commit(ctx context.Context, partition int32, offset int64) error
}

const (
	commitTimeout    = 10 * time.Second
	backpressurePoll = 50 * time.Millisecond
)

// Coordinator owns the committed position. It is the only state mutated
// by more than one logical actor (the router feeds it, the reader gates
// on it), so every update funnels through its mutex.
type Coordinator struct {
	store    Store
	bindings []Binding
	logger   *slog.Logger

	mu        sync.Mutex
	committed map[int32]int64
	frozen    bool
	frozenBy  string

	suspended atomic.Bool
}

func NewCoordinator(store Store, bindings []Binding, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		store:     store,
		bindings:  bindings,
		logger:    logger,
		committed: make(map[int32]int64),
	}
}

// Advance moves the committed position for a partition forward and
// persists it. Regressions and duplicates are ignored: the checkpoint is
// monotonically non-decreasing for the lifetime of the engine, restarts
// included (the store never rewinds).
func (c *Coordinator) Advance(partition int32, offset int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.frozen {
		return
	}
	if current, ok := c.committed[partition]; ok && offset <= current {
		return
	}
	c.committed[partition] = offset

	ctx, cancel := context.WithTimeout(context.Background(), commitTimeout)
	defer cancel()
	if err := c.store.Commit(ctx, partition, offset); err != nil {
		// The in-memory watermark stays advanced; at worst a restart
		// replays from the previous durable checkpoint. At-least-once
		// holds either way.
		c.logger.Error("CHECKPOINT_COMMIT_FAILED",
			"partition", partition,
			"offset", offset,
			"err", err,
		)
		return
	}

	metrics.CommittedOffset.WithLabelValues(strconv.Itoa(int(partition))).Set(float64(offset))
	c.logger.Debug("CHECKPOINT_ADVANCED", "partition", partition, "offset", offset)
}

// Freeze pins the checkpoint after a halt-on-exhaustion terminal
// failure: the committed position never passes work the halted sink has
// not acknowledged, even though siblings may be further ahead. The
// engine keeps serving the remaining sinks but reports unhealthy.
func (c *Coordinator) Freeze(sink string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen {
		return
	}
	c.frozen = true
	c.frozenBy = sink
	c.logger.Error("CHECKPOINT_FROZEN", "sink", sink)
}

// Committed returns a copy of the committed position per partition.
func (c *Coordinator) Committed() map[int32]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[int32]int64, len(c.committed))
	for partition, offset := range c.committed {
		out[partition] = offset
	}
	return out
}

// Healthy is the readiness signal: false once the checkpoint is frozen
// or any pipeline has halted.
func (c *Coordinator) Healthy() bool {
	c.mu.Lock()
	frozen := c.frozen
	c.mu.Unlock()
	if frozen {
		return false
	}
	for i := range c.bindings {
		if !c.bindings[i].Pipeline.Healthy() {
			return false
		}
	}
	return true
}

// WaitReady blocks the reader while any live pipeline's backlog exceeds
// its bound. No event is ever discarded to relieve pressure; the source
// simply is not polled until the backlog drains.
func (c *Coordinator) WaitReady(ctx context.Context) error {
	blocked := c.overLimit()
	if blocked == "" {
		return nil
	}

	c.suspended.Store(true)
	metrics.ReaderSuspended.Set(1)
	c.logger.Warn("READER_SUSPENDED", "sink", blocked)
	defer func() {
		c.suspended.Store(false)
		metrics.ReaderSuspended.Set(0)
	}()

	ticker := time.NewTicker(backpressurePoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if c.overLimit() == "" {
				c.logger.Info("READER_RESUMED")
				return nil
			}
		}
	}
}

// Suspended reports whether polling is currently gated, for tests and
// introspection.
func (c *Coordinator) Suspended() bool { return c.suspended.Load() }

func (c *Coordinator) overLimit() string {
	for i := range c.bindings {
		b := &c.bindings[i]
		// A halted pipeline no longer drains; gating on it would stall
		// the surviving sinks forever.
		if b.Pipeline.Healthy() && b.Pipeline.OverLimit() {
			return b.Name
		}
	}
	return ""
}
