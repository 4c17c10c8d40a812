// Package dispatch composes and executes outbound provider calls, injecting
// solved challenge tokens and classifying responses.
package dispatch

import (
	"fmt"
)

// ActionKind classifies an inbound action for routing and side effects.
type ActionKind string

const (
	// KindGeneration starts a generation; it reserves a slot and may
	// require a challenge token.
	KindGeneration ActionKind = "generation"
	// KindStatus polls a running generation; no slot, no challenge, no
	// usage recording.
	KindStatus ActionKind = "status"
	// KindUpload ships reference media to the provider.
	KindUpload ActionKind = "upload"
	// KindHealth checks provider availability; may require a challenge.
	KindHealth ActionKind = "health"
)

// Request describes one outbound provider call. It is created per action
// and discarded after the response is handled.
type Request struct {
	Service  string
	Action   string
	Path     string
	Kind     ActionKind
	Payload  map[string]any
	Token    string
	Endpoint string
}

// Class tags how the provider's answer should be treated by the caller.
type Class string

const (
	// ClassOK is a 2xx response.
	ClassOK Class = "ok"
	// ClassContentPolicy is a terminal safety rejection; never retried.
	ClassContentPolicy Class = "content_policy"
	// ClassRetriable is any other non-2xx; the caller may retry, this
	// layer never does.
	ClassRetriable Class = "retriable"
	// ClassBadUpstream is a response body that was not valid JSON.
	ClassBadUpstream Class = "bad_upstream"
)

// Result is the classified provider answer.
type Result struct {
	StatusCode int
	Body       map[string]any
	RawBody    string
	Class      Class
	Retriable  bool
	Endpoint   string
}

// TransportError wraps a network-level failure reaching the provider.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("dispatch to %s failed: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
