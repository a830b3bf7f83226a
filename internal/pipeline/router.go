package pipeline

import (
	"log/slog"
	"sync"

	"github.com/finflow/payment-stream-engine/infra/metrics"
	"github.com/finflow/payment-stream-engine/internal/domain/model"
)

// Router duplicates each enriched event to every live sink through that
// sink's projector and aggregates per-position acknowledgment. A
// position is surfaced to the coordinator only once every recipient has
// either durably accepted it or deliberately (and observably) dropped
// it; watermarks leave in non-decreasing order per partition.
type Router struct {
	bindings []Binding
	coord    *Coordinator
	acks     chan Ack
	logger   *slog.Logger

	mu sync.Mutex
	// pending holds, per partition, the FIFO of dispatched offsets still
	// awaiting full acknowledgment. Offsets enter in read order (single
	// sequential reader per partition), so the fully-acked contiguous
	// prefix is the watermark.
	pending map[int32][]*pendingPos
	index   map[int32]map[int64]*pendingPos

	stop chan struct{}
	done chan struct{}
}

type pendingPos struct {
	offset    int64
	remaining int
}

func NewRouter(bindings []Binding, coord *Coordinator, acks chan Ack, logger *slog.Logger) *Router {
	return &Router{
		bindings: bindings,
		coord:    coord,
		acks:     acks,
		logger:   logger,
		pending:  make(map[int32][]*pendingPos),
		index:    make(map[int32]map[int64]*pendingPos),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the acknowledgment loop.
func (r *Router) Start() {
	go func() {
		defer close(r.done)
		for {
			select {
			case ack := <-r.acks:
				r.handle(ack)
			case <-r.stop:
				// Resolve anything the pipelines queued during drain.
				for {
					select {
					case ack := <-r.acks:
						r.handle(ack)
					default:
						return
					}
				}
			}
		}
	}()
}

// Stop shuts the ack loop down. Call only after every pipeline has
// drained; late acks would otherwise be lost.
func (r *Router) Stop() {
	close(r.stop)
	<-r.done
}

// Dispatch projects ev for every live sink and hands the records over.
// The position is registered before any record is accepted, so an ack
// can never race its own bookkeeping.
func (r *Router) Dispatch(ev model.EnrichedEvent, pos model.Position) {
	type delivery struct {
		binding *Binding
		env     Envelope
	}
	deliveries := make([]delivery, 0, len(r.bindings))

	for i := range r.bindings {
		b := &r.bindings[i]
		if !b.Pipeline.Healthy() {
			// Halted: no longer treated as live. The checkpoint is
			// already frozen at its last acknowledged position.
			continue
		}
		rec, err := b.Projector.Project(ev)
		if err != nil {
			// Per-record failure for this sink only: an explicit drop,
			// counted and logged, so siblings and the checkpoint are
			// unaffected.
			metrics.ProjectionErrors.WithLabelValues(b.Name).Inc()
			r.logger.Error("PROJECTION_FAILED",
				"sink", b.Name,
				"position", pos.String(),
				"err", err,
			)
			continue
		}
		deliveries = append(deliveries, delivery{binding: b, env: Envelope{Pos: pos, Record: rec}})
	}

	r.register(pos, len(deliveries))

	for _, d := range deliveries {
		if err := d.binding.Pipeline.Accept(d.env); err != nil {
			r.logger.Warn("SINK_REJECTED_RECORD",
				"sink", d.binding.Name,
				"position", pos.String(),
				"err", err,
			)
			r.resolveOne(pos)
		}
	}

	if len(deliveries) == 0 {
		r.advance(pos.Partition)
	}
}

// MarkSkipped covers a position the reader discarded before enrichment
// (malformed input), so the checkpoint can pass over the offset.
func (r *Router) MarkSkipped(pos model.Position) {
	r.register(pos, 0)
	r.advance(pos.Partition)
}

func (r *Router) register(pos model.Position, recipients int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pp := &pendingPos{offset: pos.Offset, remaining: recipients}
	r.pending[pos.Partition] = append(r.pending[pos.Partition], pp)
	if r.index[pos.Partition] == nil {
		r.index[pos.Partition] = make(map[int64]*pendingPos)
	}
	r.index[pos.Partition][pos.Offset] = pp
}

func (r *Router) resolveOne(pos model.Position) {
	r.mu.Lock()
	if pp, ok := r.index[pos.Partition][pos.Offset]; ok && pp.remaining > 0 {
		pp.remaining--
	}
	r.mu.Unlock()
	r.advance(pos.Partition)
}

func (r *Router) handle(ack Ack) {
	if ack.Halted {
		r.coord.Freeze(ack.Sink)
		return
	}
	touched := make(map[int32]struct{})
	r.mu.Lock()
	for _, pos := range ack.Positions {
		if pp, ok := r.index[pos.Partition][pos.Offset]; ok && pp.remaining > 0 {
			pp.remaining--
		}
		touched[pos.Partition] = struct{}{}
	}
	r.mu.Unlock()
	for partition := range touched {
		r.advance(partition)
	}
}

// advance pops the contiguous fully-acknowledged prefix of a partition's
// pending queue and surfaces the new watermark to the coordinator.
func (r *Router) advance(partition int32) {
	r.mu.Lock()
	queue := r.pending[partition]
	watermark := int64(-1)
	for len(queue) > 0 && queue[0].remaining == 0 {
		watermark = queue[0].offset
		delete(r.index[partition], queue[0].offset)
		queue = queue[1:]
	}
	r.pending[partition] = queue
	r.mu.Unlock()

	if watermark >= 0 {
		r.coord.Advance(partition, watermark)
	}
}
