package events

import (
	"context"
	"sync"

	"github.com/Huaoe/ElurcFleet/internal/ports/out/events"
)

// Recorder keeps published events in memory. Setting Err makes Publish fail
// after recording, which lets tests exercise best-effort delivery.
type Recorder struct {
	mu     sync.Mutex
	events []events.Event

	Err error
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Publish(ctx context.Context, e events.Event) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.Err
}

func (r *Recorder) Events() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

// Types lists recorded event types in publish order.
func (r *Recorder) Types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}
