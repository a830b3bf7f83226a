package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvanceIsMonotonic(t *testing.T) {
	store := &fakeStore{}
	c := NewCoordinator(store, nil, testLogger())

	c.Advance(0, 5)
	c.Advance(0, 3)
	c.Advance(0, 5)
	c.Advance(0, 7)
	c.Advance(1, 2)

	assert.Equal(t, []commit{
		{partition: 0, offset: 5},
		{partition: 0, offset: 7},
		{partition: 1, offset: 2},
	}, store.all())
	assert.Equal(t, map[int32]int64{0: 7, 1: 2}, c.Committed())
}

func TestAdvanceKeepsWatermarkOnStoreFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("coordinator unavailable")}
	c := NewCoordinator(store, nil, testLogger())

	c.Advance(0, 5)

	// The durable commit failed but the in-memory watermark stands, so a
	// later stale offset still cannot regress it.
	assert.Equal(t, map[int32]int64{0: 5}, c.Committed())
	c.Advance(0, 3)
	assert.Equal(t, map[int32]int64{0: 5}, c.Committed())
}

func TestFreezePinsCheckpoint(t *testing.T) {
	store := &fakeStore{}
	c := NewCoordinator(store, nil, testLogger())

	c.Advance(0, 5)
	c.Freeze("ledger")
	c.Advance(0, 9)

	assert.Equal(t, []commit{{partition: 0, offset: 5}}, store.all())
	assert.Equal(t, map[int32]int64{0: 5}, c.Committed())
	assert.False(t, c.Healthy())
}

func TestHealthyReflectsPipelines(t *testing.T) {
	acks := make(chan Ack, 1)
	pipe := NewSinkPipeline("a", &fakeDest{}, fastOptions(), acks, testLogger())
	c := NewCoordinator(&fakeStore{}, []Binding{{Name: "a", Pipeline: pipe}}, testLogger())

	assert.True(t, c.Healthy())
	pipe.halted.Store(true)
	assert.False(t, c.Healthy())
}

func TestWaitReadyPassesWhenUnderLimit(t *testing.T) {
	acks := make(chan Ack, 1)
	opts := fastOptions()
	opts.PendingLimit = 10
	pipe := NewSinkPipeline("a", &fakeDest{}, opts, acks, testLogger())
	c := NewCoordinator(&fakeStore{}, []Binding{{Name: "a", Pipeline: pipe}}, testLogger())

	require.NoError(t, c.WaitReady(context.Background()))
	assert.False(t, c.Suspended())
}

func TestWaitReadyBlocksUntilBacklogDrains(t *testing.T) {
	acks := make(chan Ack, 1)
	opts := fastOptions()
	opts.PendingLimit = 1
	pipe := NewSinkPipeline("a", &fakeDest{}, opts, acks, testLogger())
	c := NewCoordinator(&fakeStore{}, []Binding{{Name: "a", Pipeline: pipe}}, testLogger())

	pipe.pending.Store(5)
	go func() {
		time.Sleep(120 * time.Millisecond)
		pipe.pending.Store(0)
	}()

	start := time.Now()
	require.NoError(t, c.WaitReady(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
	assert.False(t, c.Suspended())
}

func TestWaitReadyHonorsContext(t *testing.T) {
	acks := make(chan Ack, 1)
	opts := fastOptions()
	opts.PendingLimit = 1
	pipe := NewSinkPipeline("a", &fakeDest{}, opts, acks, testLogger())
	c := NewCoordinator(&fakeStore{}, []Binding{{Name: "a", Pipeline: pipe}}, testLogger())
	pipe.pending.Store(5)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.WaitReady(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitReadyIgnoresHaltedPipeline(t *testing.T) {
	acks := make(chan Ack, 1)
	opts := fastOptions()
	opts.PendingLimit = 1
	pipe := NewSinkPipeline("a", &fakeDest{}, opts, acks, testLogger())
	c := NewCoordinator(&fakeStore{}, []Binding{{Name: "a", Pipeline: pipe}}, testLogger())

	pipe.pending.Store(5)
	pipe.halted.Store(true)

	// A halted sink never drains; gating on it would stall forever.
	require.NoError(t, c.WaitReady(context.Background()))
}
