// ABOUTME: Upstream assistant capability consumed by the stream producer.
// ABOUTME: Sessions, message appends, and runs are opaque provider operations.

package upstream

import (
	"context"
	"errors"

	"github.com/2389/chat-relay/internal/wire"
)

// Assistant errors surfaced to the producer.
var (
	// ErrNotConfigured means no provider is available; the relay reports
	// this as a structured error response before any frame is emitted.
	ErrNotConfigured = errors.New("upstream assistant not configured")

	// ErrUnknownSession means the session id was not issued by this
	// provider (or has expired upstream).
	ErrUnknownSession = errors.New("unknown upstream session")

	// ErrRunInterrupted means the run's event sequence ended without a
	// completed or failed event.
	ErrRunInterrupted = errors.New("upstream run interrupted")
)

// EventKind classifies one upstream run event.
type EventKind string

const (
	// EventDelta carries incremental content fragments.
	EventDelta EventKind = "delta"
	// EventSources carries the citation list for the current answer.
	EventSources EventKind = "sources"
	// EventCompleted marks a successful run.
	EventCompleted EventKind = "completed"
	// EventFailed marks an aborted run; Err describes the failure.
	EventFailed EventKind = "failed"
)

// Event is one entry in an upstream run's event sequence.
//
// Delta fragments arrive in whatever shape the provider version emits:
// either a plain string or an object exposing a string "value" field
// (decoded as map[string]any). Normalization happens at the producer
// boundary, not here.
type Event struct {
	Kind      EventKind
	Fragments []any
	Sources   []string
	Err       error
}

// Assistant is the upstream collaborator interface. The concrete provider
// (credentials, model selection) is out of scope; the producer is the only
// component that talks to it.
type Assistant interface {
	// CreateSession opens a new upstream conversational context and
	// returns its opaque id.
	CreateSession(ctx context.Context) (string, error)

	// AppendMessage adds a message to an existing session without
	// starting a run. Used for the new user turn and for replaying
	// history into a freshly created session.
	AppendMessage(ctx context.Context, sessionID string, role wire.Role, content string) error

	// StartRun begins a streaming run over the session's current
	// messages. The returned channel is closed after the terminal
	// Completed or Failed event.
	StartRun(ctx context.Context, sessionID string) (<-chan Event, error)
}
