package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerPassesThroughSuccess(t *testing.T) {
	dest := &fakeDest{}
	b := NewBreakerDestination(dest, testLogger())

	require.NoError(t, b.Deliver(context.Background(), []Envelope{env(0, 0)}))
	assert.Equal(t, "fake", b.Name())
	assert.Len(t, dest.delivered(), 1)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	dest := &fakeDest{failures: 100}
	b := NewBreakerDestination(dest, testLogger())

	for i := 0; i < 5; i++ {
		err := b.Deliver(context.Background(), []Envelope{env(0, int64(i))})
		require.Error(t, err)
		assert.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}

	// Open: the destination is no longer touched.
	err := b.Deliver(context.Background(), []Envelope{env(0, 5)})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	dest.mu.Lock()
	assert.Equal(t, 95, dest.failures)
	dest.mu.Unlock()
}

func TestBreakerPreservesTerminalWrapping(t *testing.T) {
	terminal := Terminal(errors.New("rejected"))
	dest := &fakeDest{failures: 1, err: terminal}
	b := NewBreakerDestination(dest, testLogger())

	err := b.Deliver(context.Background(), []Envelope{env(0, 0)})
	assert.ErrorIs(t, err, terminal)
}
