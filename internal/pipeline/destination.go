package pipeline

import (
	"context"

	"github.com/cenkalti/backoff/v4"
)

// Destination delivers projected record batches to one downstream
// system. A nil return from Deliver means every record in the batch is
// durably accepted; positions are only ever committed after that (or
// after an explicit, policy-sanctioned drop).
type Destination interface {
	Name() string
	Deliver(ctx context.Context, records []Envelope) error
	Close(ctx context.Context) error
}

// Terminal marks err as non-retryable: the flush loop stops backing off
// and applies the failure policy immediately. Adapters use it for
// rejections that would fail identically on every attempt.
func Terminal(err error) error {
	return backoff.Permanent(err)
}
