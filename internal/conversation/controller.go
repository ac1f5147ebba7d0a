// ABOUTME: Conversation state machine: send/stop/clear over the SSE chat protocol.
// ABOUTME: Owns the message list, session id, and the single in-flight token.

package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/chat-relay/internal/framer"
	"github.com/2389/chat-relay/internal/persist"
	"github.com/2389/chat-relay/internal/wire"
)

// fallbackText is appended as an assistant message when a send fails
// structurally (request rejected, bad status, transport fault).
const fallbackText = "Sorry, I encountered an error. Please try again."

// Snapshot is an immutable view of conversation state handed to listeners.
type Snapshot struct {
	Messages  []wire.Message
	SessionID string
	Streaming bool
}

// Config wires a Controller.
type Config struct {
	// Endpoint is the full URL of the relay's chat endpoint.
	Endpoint string
	// AuthToken, when set, is sent as a bearer token.
	AuthToken string
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
	// Store mirrors state; required.
	Store *persist.Store
	// OnChange is invoked with a snapshot after every state change.
	OnChange func(Snapshot)

	Logger *slog.Logger
}

// Controller orchestrates one logical conversation against the relay.
//
// It is the sole owner of the message list and session id; the
// persistence store only mirrors them. One send is in flight at a time:
// starting a new send cancels the previous token first, so at most one
// read loop is ever active. Clear also cancels the live token, which
// keeps "empty after clear" true even if frames were still arriving.
type Controller struct {
	endpoint   string
	authToken  string
	httpClient *http.Client
	store      *persist.Store
	onChange   func(Snapshot)
	logger     *slog.Logger

	mu        sync.Mutex
	messages  []wire.Message
	sessionID string
	streaming bool
	current   *Token
}

// NewController creates a controller and restores persisted state.
func NewController(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	c := &Controller{
		endpoint:   cfg.Endpoint,
		authToken:  cfg.AuthToken,
		httpClient: client,
		store:      cfg.Store,
		onChange:   cfg.OnChange,
		logger:     logger.With("component", "conversation"),
	}
	c.messages, c.sessionID = cfg.Store.Load()
	return c
}

// Send appends text as a user message and streams the assistant's reply
// into a placeholder message. It blocks until the stream terminates and
// always leaves the controller idle. Blank text is tolerated and sent as
// is; callers are expected to pre-trim.
//
// A Send issued while another is streaming cancels the earlier one first.
// Cancellation (Stop, Clear, a superseding Send, or ctx) is silent: no
// log, no fallback message. Every other failure appends fallbackText.
func (c *Controller) Send(ctx context.Context, text string, origin *wire.Origin) {
	c.mu.Lock()
	if c.current != nil {
		c.current.Cancel()
	}
	tok := newToken(ctx)
	c.current = tok
	c.streaming = true

	// History captured before the new user message is appended; the
	// server submits the new message to the session itself.
	history := make([]wire.Message, len(c.messages))
	copy(history, c.messages)
	sessionID := c.sessionID

	c.messages = append(c.messages, wire.Message{
		ID:        uuid.New().String(),
		Role:      wire.RoleUser,
		Content:   text,
		Timestamp: time.Now(),
		Origin:    origin,
	})
	c.mu.Unlock()

	c.saveMessages()
	c.notify()

	defer func() {
		c.mu.Lock()
		if c.current == tok {
			c.current = nil
			c.streaming = false
		}
		c.mu.Unlock()
		c.notify()
	}()

	err := c.stream(tok, text, history, sessionID)
	if err == nil {
		return
	}
	if tok.Cancelled() || errors.Is(err, context.Canceled) {
		// Aborted: freeze whatever content accumulated, say nothing.
		return
	}

	c.logger.Error("send failed", "error", err)
	c.appendMessage(tok, wire.Message{
		ID:        uuid.New().String(),
		Role:      wire.RoleAssistant,
		Content:   fallbackText,
		Timestamp: time.Now(),
	})
}

// Stop cancels the in-flight send, if any, and surfaces idle immediately.
// No message is appended: stopping is silence, not an error.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.current != nil {
		c.current.Cancel()
		c.current = nil
	}
	c.streaming = false
	c.mu.Unlock()

	c.notify()
}

// Clear empties the conversation and session id and erases both persisted
// keys. It also cancels any in-flight send so a late frame cannot
// repopulate cleared state. Idempotent.
func (c *Controller) Clear() {
	c.mu.Lock()
	if c.current != nil {
		c.current.Cancel()
		c.current = nil
	}
	c.streaming = false
	c.messages = nil
	c.sessionID = ""
	c.mu.Unlock()

	c.store.Clear()
	c.notify()
}

// Snapshot returns a copy of the current conversation state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Streaming reports whether a send is in flight.
func (c *Controller) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streaming
}

// stream opens the network request and drives the framer/interpreter loop.
func (c *Controller) stream(tok *Token, text string, history []wire.Message, sessionID string) error {
	body, err := json.Marshal(wire.ChatRequest{
		Message:             text,
		ConversationHistory: history,
		SessionID:           sessionID,
	})
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(tok.Context(), http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	// Placeholder the interpreter will populate.
	c.appendMessage(tok, wire.Message{
		ID:        uuid.New().String(),
		Role:      wire.RoleAssistant,
		Content:   "",
		Timestamp: time.Now(),
	})

	return c.readLoop(tok, resp.Body)
}

// readLoop feeds response chunks through the line framer and dispatches
// each complete line. Frames are applied strictly in arrival order; the
// loop never reads the next chunk before the current one is dispatched.
func (c *Controller) readLoop(tok *Token, body io.Reader) error {
	var lines framer.LineBuffer
	chunk := make([]byte, 4096)

	for {
		if tok.Cancelled() {
			return context.Canceled
		}

		n, readErr := body.Read(chunk)
		if n > 0 {
			for _, line := range lines.Append(chunk[:n]) {
				if c.dispatchLine(tok, line) {
					return nil
				}
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				if line, ok := lines.Flush(); ok && c.dispatchLine(tok, line) {
					return nil
				}
				// Connection closed without [DONE]; treat as completion.
				return nil
			}
			return readErr
		}
	}
}

// dispatchLine decodes one line and applies it. Lines without the frame
// prefix (blank separators, comments) and malformed payloads are
// discarded. Returns true when the stream is terminal.
func (c *Controller) dispatchLine(tok *Token, line string) bool {
	payload, ok := strings.CutPrefix(line, wire.Prefix)
	if !ok {
		return false
	}
	frame := wire.Decode(payload)
	if frame == nil {
		return false
	}
	return c.applyFrame(tok, frame)
}

// appendMessage appends a message for the send identified by tok, then
// mirrors and notifies. Appends from superseded sends are dropped.
func (c *Controller) appendMessage(tok *Token, msg wire.Message) {
	c.mu.Lock()
	if c.current != tok {
		c.mu.Unlock()
		return
	}
	c.messages = append(c.messages, msg)
	c.mu.Unlock()

	c.saveMessages()
	c.notify()
}

// saveMessages mirrors the message list into the store.
func (c *Controller) saveMessages() {
	c.mu.Lock()
	msgs := make([]wire.Message, len(c.messages))
	copy(msgs, c.messages)
	c.mu.Unlock()

	c.store.SaveMessages(msgs)
}

// notify hands the listener a snapshot, outside the lock.
func (c *Controller) notify() {
	if c.onChange == nil {
		return
	}
	c.mu.Lock()
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.onChange(snap)
}

func (c *Controller) snapshotLocked() Snapshot {
	msgs := make([]wire.Message, len(c.messages))
	copy(msgs, c.messages)
	return Snapshot{
		Messages:  msgs,
		SessionID: c.sessionID,
		Streaming: c.streaming,
	}
}
