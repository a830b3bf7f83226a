package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/finflow/payment-stream-engine/infra/metrics"
)

var (
	// ErrPipelineHalted is returned by Accept after a halt-on-exhaustion
	// pipeline has entered terminal failure.
	ErrPipelineHalted = errors.New("sink pipeline halted")

	// ErrPipelineClosed is returned by Accept once shutdown has begun.
	ErrPipelineClosed = errors.New("sink pipeline closed")
)

// FailurePolicy decides what a pipeline does with a batch whose retries
// are exhausted.
type FailurePolicy string

const (
	// DropAndContinue logs and drops the batch, acknowledging its
	// positions so the checkpoint moves on. For best-effort sinks.
	DropAndContinue FailurePolicy = "drop-and-continue"

	// HaltOnExhaustion stops the pipeline and freezes the checkpoint at
	// its last acknowledged position. For sinks where silent loss is
	// unacceptable.
	HaltOnExhaustion FailurePolicy = "halt-on-exhaustion"
)

// Options is the per-destination tuning surface.
type Options struct {
	MaxRows        int
	MaxInterval    time.Duration
	MaxAttempts    int
	Policy         FailurePolicy
	Parallelism    int
	PendingLimit   int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxRows <= 0 {
		o.MaxRows = 1000
	}
	if o.MaxInterval <= 0 {
		o.MaxInterval = time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.Parallelism <= 0 {
		o.Parallelism = 1
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = 200 * time.Millisecond
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 10 * time.Second
	}
	if o.Policy == "" {
		o.Policy = HaltOnExhaustion
	}
	return o
}

// SinkPipeline buffers projected records for one destination and flushes
// them in micro-batches: a batch goes in flight when it reaches MaxRows
// or ages past MaxInterval, whichever fires first.
//
// Per batch: EMPTY -> ACCUMULATING -> FLUSHING -> ACKED, with FLUSHING
// looping through RETRYING on transient failures and falling through to
// the failure policy (drop or halt) when attempts are exhausted.
//
// With Parallelism > 1 independent workers drain the pending queue, so
// inter-batch completion order is not guaranteed; order within a batch
// always is.
type SinkPipeline struct {
	name   string
	opts   Options
	dest   Destination
	logger *slog.Logger
	acks   chan<- Ack

	mu      sync.Mutex
	current *Batch
	closing bool

	pendingQ chan *Batch
	pending  atomic.Int64
	halted   atomic.Bool
	drain    chan struct{}
	wg       sync.WaitGroup
}

func NewSinkPipeline(name string, dest Destination, opts Options, acks chan<- Ack, logger *slog.Logger) *SinkPipeline {
	return &SinkPipeline{
		name:     name,
		opts:     opts.withDefaults(),
		dest:     dest,
		logger:   logger,
		acks:     acks,
		pendingQ: make(chan *Batch, 64),
		drain:    make(chan struct{}),
	}
}

func (p *SinkPipeline) Name() string { return p.name }

// Healthy is false once the pipeline has terminally failed.
func (p *SinkPipeline) Healthy() bool { return !p.halted.Load() }

// Pending is the number of records buffered or in flight, the quantity
// the coordinator's backpressure bound is measured against.
func (p *SinkPipeline) Pending() int { return int(p.pending.Load()) }

// OverLimit reports whether the unacknowledged backlog exceeds the
// configured bound.
func (p *SinkPipeline) OverLimit() bool {
	return p.opts.PendingLimit > 0 && p.Pending() > p.opts.PendingLimit
}

// Start launches the flush workers.
func (p *SinkPipeline) Start() {
	for i := 0; i < p.opts.Parallelism; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	p.logger.Info("PIPELINE_READY",
		"sink", p.name,
		"workers", p.opts.Parallelism,
		"max_rows", p.opts.MaxRows,
		"max_interval", p.opts.MaxInterval.String(),
		"policy", string(p.opts.Policy),
	)
}

// Accept appends one projected record to the open batch, sealing the
// batch when the row threshold is reached. Accumulation order is arrival
// order; nothing here re-orders.
func (p *SinkPipeline) Accept(env Envelope) error {
	if p.halted.Load() {
		return ErrPipelineHalted
	}

	p.mu.Lock()
	if p.closing {
		p.mu.Unlock()
		return ErrPipelineClosed
	}
	if p.current == nil {
		p.current = &Batch{ID: uuid.NewString()[:8], OpenedAt: time.Now()}
		p.armSeal(p.current)
	}
	p.current.Records = append(p.current.Records, env)
	var sealed *Batch
	if len(p.current.Records) >= p.opts.MaxRows {
		sealed = p.sealLocked()
	}
	p.mu.Unlock()

	p.pending.Add(1)
	metrics.PendingRecords.WithLabelValues(p.name).Set(float64(p.pending.Load()))

	if sealed != nil {
		p.pendingQ <- sealed
	}
	return nil
}

// armSeal flushes a batch that ages past MaxInterval before filling. The
// timer only acts if its batch is still the open one.
func (p *SinkPipeline) armSeal(b *Batch) {
	time.AfterFunc(p.opts.MaxInterval, func() {
		p.mu.Lock()
		var sealed *Batch
		if p.current == b {
			sealed = p.sealLocked()
		}
		p.mu.Unlock()
		if sealed != nil {
			p.pendingQ <- sealed
		}
	})
}

func (p *SinkPipeline) sealLocked() *Batch {
	b := p.current
	p.current = nil
	return b
}

func (p *SinkPipeline) worker() {
	defer p.wg.Done()
	for {
		select {
		case b := <-p.pendingQ:
			p.flush(b)
		case <-p.drain:
			for {
				select {
				case b := <-p.pendingQ:
					p.flush(b)
				default:
					return
				}
			}
		}
	}
}

// flush delivers one batch, retrying transient failures with bounded
// exponential backoff. Every attempt re-sends the same batch unchanged.
func (p *SinkPipeline) flush(b *Batch) {
	if p.halted.Load() {
		// Terminal failure already declared: queued work stays
		// unacknowledged behind the frozen checkpoint.
		return
	}

	attempts := 0
	op := func() error {
		attempts++
		if attempts > 1 {
			metrics.FlushRetries.WithLabelValues(p.name).Inc()
		}
		return p.dest.Deliver(context.Background(), b.Records)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.opts.InitialBackoff
	bo.MaxInterval = p.opts.MaxBackoff
	bo.MaxElapsedTime = 0

	start := time.Now()
	err := backoff.Retry(op, backoff.WithMaxRetries(bo, uint64(p.opts.MaxAttempts-1)))
	if err == nil {
		metrics.BatchesTotal.WithLabelValues(p.name, "ok").Inc()
		metrics.FlushLatency.WithLabelValues(p.name).Observe(time.Since(start).Seconds())
		p.logger.Debug("BATCH_FLUSHED",
			"sink", p.name,
			"batch", b.ID,
			"rows", len(b.Records),
			"attempts", attempts,
		)
		p.resolve(b, false)
		return
	}

	switch p.opts.Policy {
	case DropAndContinue:
		// The drop is deliberate and observable: logged, counted, and
		// acknowledged so siblings and the checkpoint move on.
		p.logger.Error("BATCH_DROPPED",
			"sink", p.name,
			"batch", b.ID,
			"rows", len(b.Records),
			"attempts", attempts,
			"err", err,
		)
		metrics.BatchesTotal.WithLabelValues(p.name, "dropped").Inc()
		p.resolve(b, true)
	default:
		p.halted.Store(true)
		p.logger.Error("PIPELINE_HALTED",
			"sink", p.name,
			"batch", b.ID,
			"rows", len(b.Records),
			"attempts", attempts,
			"err", err,
		)
		p.acks <- Ack{Sink: p.name, Halted: true}
	}
}

func (p *SinkPipeline) resolve(b *Batch, dropped bool) {
	p.pending.Add(int64(-len(b.Records)))
	metrics.PendingRecords.WithLabelValues(p.name).Set(float64(p.pending.Load()))
	p.acks <- Ack{Sink: p.name, Positions: b.positions(), Dropped: dropped}
}

// Close seals the open batch and drains pending work to resolution: each
// batch ends acknowledged, dropped, or stranded behind an explicit halt,
// never abandoned mid-flight. The caller stops the feed before closing.
func (p *SinkPipeline) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closing {
		p.mu.Unlock()
		return nil
	}
	p.closing = true
	sealed := p.sealLocked()
	p.mu.Unlock()

	if sealed != nil {
		p.pendingQ <- sealed
	}
	close(p.drain)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("drain %s: %w", p.name, ctx.Err())
	}
	return p.dest.Close(ctx)
}
