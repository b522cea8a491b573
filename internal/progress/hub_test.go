package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHubBatchBySize(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{
		BufferSize:     8,
		MaxBatchEvents: 2,
		MaxBatchWait:   time.Minute,
	}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	hub.Emit(sampleEvent(StageJobStart))
	hub.Emit(sampleEvent(StageWorkerStart))
	require.Eventually(t, func() bool {
		batches := sink.Batches()
		return len(batches) == 1 && len(batches[0]) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestHubBatchByTimer(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{
		BufferSize:     4,
		MaxBatchEvents: 10,
		MaxBatchWait:   25 * time.Millisecond,
	}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	hub.Emit(sampleEvent(StageJobStart))
	require.Eventually(t, func() bool {
		return len(sink.Batches()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestHubPreservesEmissionOrder(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{BufferSize: 64, MaxBatchEvents: 3, MaxBatchWait: time.Minute}, sink)
	for i := range 10 {
		evt := sampleEvent(StageWorkerProgress)
		evt.Success = i
		hub.Emit(evt)
	}
	require.NoError(t, hub.Close(context.Background()))

	var got []int
	for _, batch := range sink.Batches() {
		for _, evt := range batch {
			got = append(got, evt.Success)
		}
	}
	require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
	require.True(t, sink.Closed())
}

func TestHubEmitNonBlockingWhenFull(t *testing.T) {
	t.Parallel()

	hub := &Hub{
		cfg:    Config{}.withDefaults(),
		events: make(chan Event),
	}
	start := time.Now()
	hub.Emit(sampleEvent(StageJobStart))
	hub.Emit(sampleEvent(StageJobStart))
	require.Less(t, time.Since(start), 50*time.Millisecond)
	require.Equal(t, int64(1), hub.dropped.Load())
}

func TestHubDropsInvalidAndLateEvents(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{MaxBatchEvents: 1}, sink)
	hub.Emit(Event{Stage: StageJobStart})
	hub.Emit(Event{JobID: "job", TS: time.Now(), Stage: "BOGUS"})
	require.NoError(t, hub.Close(context.Background()))
	hub.Emit(sampleEvent(StageJobStart))

	require.Empty(t, sink.Batches())
	require.NoError(t, hub.Close(context.Background()))

	var nilHub *Hub
	nilHub.Emit(sampleEvent(StageJobStart))
	require.NoError(t, nilHub.Close(context.Background()))
}

func TestHubSinkErrorsDoNotStopFanOut(t *testing.T) {
	t.Parallel()

	failing := &failingSink{}
	sink := newStubSink()
	hub := NewHub(Config{MaxBatchEvents: 1, Logger: zap.NewNop()}, failing, nil, sink)
	hub.Emit(sampleEvent(StageJobDone))
	require.NoError(t, hub.Close(context.Background()))
	require.Len(t, sink.Batches(), 1)
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, sampleEvent(StageWorkerDone).Validate())

	bad := sampleEvent(StageWorkerProgress)
	bad.Worker = -1
	require.Error(t, bad.Validate())

	bad = sampleEvent(StageJobDone)
	bad.Dur = -time.Second
	require.Error(t, bad.Validate())

	bad = sampleEvent(StageWorkerProgress)
	bad.Failure = -1
	require.Error(t, bad.Validate())

	require.True(t, sampleEvent(StageJobError).JobLevel())
	require.False(t, sampleEvent(StageWorkerError).JobLevel())
}

type stubSink struct {
	mu      sync.Mutex
	batches [][]Event
	closed  bool
}

func newStubSink() *stubSink {
	return &stubSink{}
}

func (s *stubSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]Event(nil), batch...))
	return nil
}

func (s *stubSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubSink) Batches() [][]Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]Event, len(s.batches))
	copy(out, s.batches)
	return out
}

func (s *stubSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type failingSink struct{}

func (failingSink) Consume(context.Context, []Event) error { return errors.New("sink down") }
func (failingSink) Close(context.Context) error            { return errors.New("close failed") }

func sampleEvent(stage Stage) Event {
	return Event{
		JobID:      "0194c3a2-7e1f-7000-8000-000000000001",
		TS:         time.Now(),
		Stage:      stage,
		Credential: "ja***@example.com",
		Assigned:   3,
	}
}
