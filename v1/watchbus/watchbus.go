// Package watchbus streams lock lifecycle events to observers. The
// coordinator publishes one Event per acquire, rejection, conflict, release
// and stale-lock reclamation; dashboards and operators consume them through
// the in-memory or Redis Streams backends, or over the SSE and WebSocket
// handlers. The stream is purely observational: lock correctness never
// depends on it.
package watchbus

import (
	"context"
	"encoding/json"
	"time"
)

// EventType identifies a lock lifecycle transition.
type EventType string

const (
	// EventAcquired is published when a caller is admitted.
	EventAcquired EventType = "acquired"
	// EventRejected is published when the concurrency ceiling is full.
	EventRejected EventType = "rejected"
	// EventConflict is published when a conditional write lost a race.
	EventConflict EventType = "conflict"
	// EventReleased is published when a caller's record is removed.
	EventReleased EventType = "released"
	// EventReclaimed is published when stale records are dropped as a
	// byproduct of an acquire.
	EventReclaimed EventType = "reclaimed"
)

// Event is one lock lifecycle transition on a coordination domain.
type Event struct {
	Type       EventType `json:"type"`
	Bucket     string    `json:"bucket"`
	CounterKey string    `json:"counter_key"`
	CallerID   string    `json:"caller_id,omitempty"`
	// Active is the number of fresh locks after the transition, where known.
	Active int       `json:"active"`
	At     time.Time `json:"at"`
}

// Marshal returns the JSON wire form of the event.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// ParseEvent decodes an event from its JSON wire form.
func ParseEvent(data []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(data, &e)
	return e, err
}

// Key returns the watch key for a coordination domain.
func Key(bucket, counterKey string) string {
	return bucket + "/" + counterKey
}

// WatchBus delivers event payloads to watchers of a coordination domain.
type WatchBus interface {
	// Publish sends the payload to all watchers of key.
	Publish(ctx context.Context, key string, data []byte) error
	// Watch subscribes to payloads for key. The returned channel receives
	// payloads until the context is canceled or Unwatch is called.
	Watch(ctx context.Context, key string) (chan []byte, error)
	// Unwatch stops delivering payloads for key to ch.
	Unwatch(ctx context.Context, key string, ch chan []byte) error
}
