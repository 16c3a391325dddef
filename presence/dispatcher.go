package presence

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/onnwee/study-bridge/telemetry"
)

// DefaultQueueSize is used when NewDispatcher is given a non-positive size.
const DefaultQueueSize = 256

// Handler consumes transitions one at a time.
type Handler interface {
	HandleTransition(ctx context.Context, tr Transition)
}

// Dispatcher queues transitions from event sources and hands them to a single
// worker, preserving submission order.
type Dispatcher struct {
	handler Handler
	queue   chan Transition
}

// NewDispatcher returns a Dispatcher with a queue of size transitions.
func NewDispatcher(h Handler, size int) *Dispatcher {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Dispatcher{handler: h, queue: make(chan Transition, size)}
}

// Submit enqueues tr without blocking. It reports false when the queue is full
// and the transition was dropped.
func (d *Dispatcher) Submit(tr Transition) bool {
	select {
	case d.queue <- tr:
		telemetry.SetQueueDepth(len(d.queue))
		return true
	default:
		telemetry.CountDropped()
		slog.Warn("presence queue full; dropping transition",
			slog.String("component", "dispatcher"),
			slog.String("member_id", tr.Member.ID),
			slog.Int("capacity", cap(d.queue)))
		return false
	}
}

// Len returns the number of queued transitions.
func (d *Dispatcher) Len() int { return len(d.queue) }

// Run handles queued transitions until ctx is done. A transition already in
// progress when ctx is cancelled runs to completion so the store and the
// status message are not left half-updated.
func (d *Dispatcher) Run(ctx context.Context) {
	slog.Info("presence dispatcher started", slog.String("component", "dispatcher"), slog.Int("capacity", cap(d.queue)))
	for {
		select {
		case <-ctx.Done():
			if n := len(d.queue); n > 0 {
				slog.Warn("presence dispatcher stopping with queued transitions", slog.String("component", "dispatcher"), slog.Int("pending", n))
			}
			return
		case tr := <-d.queue:
			telemetry.SetQueueDepth(len(d.queue))
			hctx := telemetry.WithCorrelation(context.WithoutCancel(ctx), uuid.NewString())
			d.handler.HandleTransition(hctx, tr)
		}
	}
}
