// Package diag funnels best-effort diagnostic events to non-blocking sinks.
// Fire-and-forget side channels (slot reservation, usage recording,
// archival) and dispatcher transport errors report here; nothing on a
// request's critical path ever waits on a sink.
package diag

import (
	"errors"
	"time"
)

// Kind classifies a diagnostic event.
type Kind string

const (
	// KindTransportError is a failed outbound provider call.
	KindTransportError Kind = "transport_error"
	// KindSlotReservation is a failed advisory slot handshake.
	KindSlotReservation Kind = "slot_reservation"
	// KindUsageRecording is a failed usage-recording publish.
	KindUsageRecording Kind = "usage_recording"
	// KindArchive is a failed artifact archival.
	KindArchive Kind = "archive"
)

// Event is one diagnostic entry.
type Event struct {
	Kind    Kind
	Service string
	Detail  string
	Err     string
	At      time.Time
}

// Validate rejects events a sink could not attribute.
func (e Event) Validate() error {
	if e.Kind == "" {
		return errors.New("diag: event kind is required")
	}
	return nil
}
