package gateway

import (
	"log/slog"
	"sync"
)

// Broadcaster fans state deltas out to observers. The combat core only
// ever publishes; encoding and session fan-out live behind this
// interface in the network layer.
type Broadcaster interface {
	Publish(event any)
}

// LogBroadcaster is the default Broadcaster: it logs each event at
// debug level. Used when no network layer is attached and in tests.
type LogBroadcaster struct{}

// Publish logs the event.
func (LogBroadcaster) Publish(event any) {
	slog.Debug("broadcast", "event", event)
}

// Recorder is a Broadcaster that records every published event for
// inspection in tests.
type Recorder struct {
	mu     sync.Mutex
	events []any
}

// Publish appends the event to the recording.
func (r *Recorder) Publish(event any) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

// Events returns a snapshot of everything published so far.
func (r *Recorder) Events() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]any, len(r.events))
	copy(out, r.events)
	return out
}

// EventsOf returns only the recorded events of type T.
func EventsOf[T any](r *Recorder) []T {
	var out []T
	for _, e := range r.Events() {
		if v, ok := e.(T); ok {
			out = append(out, v)
		}
	}
	return out
}
