// Package usage exposes the usage-recording capability the gateway consumes.
// Recording is best-effort: the dispatcher records which endpoint served a
// call in a detached task, and a failed record never affects the response.
package usage

import (
	"context"
	"time"
)

// Event describes one successfully served provider call.
type Event struct {
	Service  string    `json:"service"`
	Action   string    `json:"action"`
	Endpoint string    `json:"endpoint"`
	At       time.Time `json:"at"`
}

// Recorder persists usage events.
type Recorder interface {
	Record(ctx context.Context, evt Event) error
}

// Noop discards every event.
type Noop struct{}

// Record does nothing.
func (Noop) Record(context.Context, Event) error { return nil }
