package pipeline

import (
	"time"

	"github.com/finflow/payment-stream-engine/internal/domain/model"
)

// Envelope pairs a projected record with the source position it covers.
type Envelope struct {
	Pos    model.Position
	Record any
}

// Batch is an ordered run of envelopes delivered in a single flush. It
// accumulates until a trigger fires, then goes in flight unchanged: a
// retry re-sends the same records, never re-projects.
type Batch struct {
	ID       string
	Records  []Envelope
	OpenedAt time.Time
}

func (b *Batch) positions() []model.Position {
	out := make([]model.Position, len(b.Records))
	for i, env := range b.Records {
		out[i] = env.Pos
	}
	return out
}

// Ack reports the resolution of one batch back to the router.
type Ack struct {
	Sink      string
	Positions []model.Position

	// Dropped marks positions resolved by a drop-and-continue policy
	// rather than a durable write. The drop was logged and counted at
	// the pipeline before the ack was emitted.
	Dropped bool

	// Halted announces the pipeline's terminal failure; Positions is
	// empty and nothing it covered will ever be acknowledged.
	Halted bool
}
