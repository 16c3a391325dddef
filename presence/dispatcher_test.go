package presence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onnwee/study-bridge/telemetry"
)

type recordingHandler struct {
	mu    sync.Mutex
	seen  []string
	corrs []string
	block chan struct{}
	done  chan struct{}
}

func (h *recordingHandler) HandleTransition(ctx context.Context, tr Transition) {
	if h.block != nil {
		<-h.block
	}
	h.mu.Lock()
	h.seen = append(h.seen, tr.Member.ID)
	h.corrs = append(h.corrs, telemetry.GetCorrelation(ctx))
	h.mu.Unlock()
	if h.done != nil {
		h.done <- struct{}{}
	}
}

func (h *recordingHandler) ids() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.seen...)
}

func TestDispatcherPreservesOrder(t *testing.T) {
	h := &recordingHandler{done: make(chan struct{}, 8)}
	d := NewDispatcher(h, 8)
	for _, id := range []string{"A", "B", "C"} {
		require.True(t, d.Submit(Transition{Member: Member{ID: id}}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	for i := 0; i < 3; i++ {
		select {
		case <-h.done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for handler")
		}
	}
	assert.Equal(t, []string{"A", "B", "C"}, h.ids())

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.corrs {
		assert.NotEmpty(t, c, "each transition gets a correlation id")
	}
	assert.NotEqual(t, h.corrs[0], h.corrs[1])
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	d := NewDispatcher(&recordingHandler{}, 2)
	assert.True(t, d.Submit(Transition{Member: Member{ID: "A"}}))
	assert.True(t, d.Submit(Transition{Member: Member{ID: "B"}}))
	assert.False(t, d.Submit(Transition{Member: Member{ID: "C"}}))
	assert.Equal(t, 2, d.Len())
}

func TestNewDispatcherDefaultSize(t *testing.T) {
	d := NewDispatcher(&recordingHandler{}, 0)
	assert.Equal(t, DefaultQueueSize, cap(d.queue))
}

func TestDispatcherRunStopsOnCancel(t *testing.T) {
	d := NewDispatcher(&recordingHandler{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(stopped)
	}()
	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestDispatcherFinishesInFlightTransition(t *testing.T) {
	h := &recordingHandler{block: make(chan struct{}), done: make(chan struct{}, 1)}
	d := NewDispatcher(h, 1)
	require.True(t, d.Submit(Transition{Member: Member{ID: "A"}}))

	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)

	// Give the worker time to pick up the transition, then cancel while it is blocked.
	require.Eventually(t, func() bool { return d.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	close(h.block)

	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight transition was abandoned")
	}
	assert.Equal(t, []string{"A"}, h.ids())
}
