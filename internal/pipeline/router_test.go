package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/finflow/payment-stream-engine/internal/domain/model"
)

type commit struct {
	partition int32
	offset    int64
}

type fakeStore struct {
	mu      sync.Mutex
	commits []commit
	err     error
}

func (s *fakeStore) Commit(_ context.Context, partition int32, offset int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.commits = append(s.commits, commit{partition: partition, offset: offset})
	return nil
}

func (s *fakeStore) all() []commit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]commit(nil), s.commits...)
}

type projectorFunc struct {
	name string
	fn   func(model.EnrichedEvent) (any, error)
}

func (p projectorFunc) Name() string { return p.name }

func (p projectorFunc) Project(ev model.EnrichedEvent) (any, error) { return p.fn(ev) }

func identityProjector(name string) projectorFunc {
	return projectorFunc{name: name, fn: func(ev model.EnrichedEvent) (any, error) { return ev, nil }}
}

func waitCommits(t *testing.T, store *fakeStore, want []commit) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if got := store.all(); len(got) >= len(want) {
			assert.Equal(t, want, got)
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("commits %v never observed, have %v", want, store.all())
}

func newTestBinding(t *testing.T, name string, acks chan Ack, dest Destination) Binding {
	t.Helper()
	opts := fastOptions()
	opts.MaxRows = 1
	pipe := NewSinkPipeline(name, dest, opts, acks, testLogger())
	pipe.Start()
	t.Cleanup(func() { pipe.Close(context.Background()) })
	return Binding{Name: name, Projector: identityProjector(name), Pipeline: pipe}
}

func TestDispatchFansOutToEverySink(t *testing.T) {
	acks := make(chan Ack, 16)
	destA, destB := &fakeDest{}, &fakeDest{}
	bindings := []Binding{
		newTestBinding(t, "a", acks, destA),
		newTestBinding(t, "b", acks, destB),
	}
	store := &fakeStore{}
	coord := NewCoordinator(store, bindings, testLogger())
	r := NewRouter(bindings, coord, acks, testLogger())
	r.Start()
	defer r.Stop()

	r.Dispatch(model.EnrichedEvent{}, model.Position{Partition: 0, Offset: 5})

	// The watermark only surfaces once both sinks acknowledged.
	waitCommits(t, store, []commit{{partition: 0, offset: 5}})
	assert.Len(t, destA.delivered(), 1)
	assert.Len(t, destB.delivered(), 1)
}

func TestProjectionFailureDropsForThatSinkOnly(t *testing.T) {
	acks := make(chan Ack, 16)
	destOK := &fakeDest{}
	bindings := []Binding{
		newTestBinding(t, "ok", acks, destOK),
	}
	broken := newTestBinding(t, "broken", acks, &fakeDest{})
	broken.Projector = projectorFunc{name: "broken", fn: func(model.EnrichedEvent) (any, error) {
		return nil, errors.New("unmappable record")
	}}
	bindings = append(bindings, broken)

	store := &fakeStore{}
	coord := NewCoordinator(store, bindings, testLogger())
	r := NewRouter(bindings, coord, acks, testLogger())
	r.Start()
	defer r.Stop()

	r.Dispatch(model.EnrichedEvent{}, model.Position{Partition: 0, Offset: 0})

	// The healthy sink's ack alone resolves the position.
	waitCommits(t, store, []commit{{partition: 0, offset: 0}})
	assert.Len(t, destOK.delivered(), 1)
}

func TestMarkSkippedAdvancesCheckpoint(t *testing.T) {
	store := &fakeStore{}
	coord := NewCoordinator(store, nil, testLogger())
	r := NewRouter(nil, coord, make(chan Ack), testLogger())

	r.MarkSkipped(model.Position{Partition: 2, Offset: 9})

	assert.Equal(t, []commit{{partition: 2, offset: 9}}, store.all())
}

func TestWatermarkIsContiguousPrefix(t *testing.T) {
	store := &fakeStore{}
	coord := NewCoordinator(store, nil, testLogger())
	r := NewRouter(nil, coord, make(chan Ack), testLogger())

	for offset := int64(0); offset < 3; offset++ {
		r.register(model.Position{Partition: 0, Offset: offset}, 1)
	}

	// Out-of-order ack: offset 1 alone must not surface.
	r.handle(Ack{Sink: "a", Positions: []model.Position{{Partition: 0, Offset: 1}}})
	assert.Empty(t, store.all())

	r.handle(Ack{Sink: "a", Positions: []model.Position{{Partition: 0, Offset: 0}}})
	assert.Equal(t, []commit{{partition: 0, offset: 1}}, store.all())

	r.handle(Ack{Sink: "a", Positions: []model.Position{{Partition: 0, Offset: 2}}})
	assert.Equal(t, []commit{{partition: 0, offset: 1}, {partition: 0, offset: 2}}, store.all())
}

func TestHaltFreezesCheckpoint(t *testing.T) {
	store := &fakeStore{}
	coord := NewCoordinator(store, nil, testLogger())
	r := NewRouter(nil, coord, make(chan Ack), testLogger())

	r.register(model.Position{Partition: 0, Offset: 0}, 1)
	r.handle(Ack{Sink: "ledger", Halted: true})
	r.handle(Ack{Sink: "analytics", Positions: []model.Position{{Partition: 0, Offset: 0}}})

	assert.Empty(t, store.all())
	assert.False(t, coord.Healthy())
}

func TestDispatchSkipsHaltedSink(t *testing.T) {
	acks := make(chan Ack, 16)
	destLive := &fakeDest{}
	live := newTestBinding(t, "live", acks, destLive)
	destHalted := &fakeDest{}
	halted := newTestBinding(t, "halted", acks, destHalted)
	halted.Pipeline.halted.Store(true)

	bindings := []Binding{live, halted}
	store := &fakeStore{}
	coord := NewCoordinator(store, bindings, testLogger())
	r := NewRouter(bindings, coord, acks, testLogger())
	r.Start()
	defer r.Stop()

	r.Dispatch(model.EnrichedEvent{}, model.Position{Partition: 0, Offset: 0})

	waitCommits(t, store, []commit{{partition: 0, offset: 0}})
	assert.Len(t, destLive.delivered(), 1)
	assert.Empty(t, destHalted.delivered())
}
