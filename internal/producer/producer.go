// ABOUTME: Stream producer that adapts upstream run events to wire frames.
// ABOUTME: Owns all upstream session mutation; always terminates the stream.

package producer

import (
	"context"
	"log/slog"

	"github.com/2389/chat-relay/internal/upstream"
	"github.com/2389/chat-relay/internal/wire"
)

// errorMessage is the human-readable text carried by {error} frames; the
// underlying cause travels in details.
const errorMessage = "Failed to process message"

// Request describes one producer invocation: the new user turn, the prior
// conversation, and the session id when the caller already has one.
type Request struct {
	Message   string
	History   []wire.Message
	SessionID string
}

// Producer converts an upstream assistant run into a flat sequence of
// framed bytes. It is the only component that creates or mutates upstream
// session state.
type Producer struct {
	assistant upstream.Assistant
	logger    *slog.Logger
}

// New creates a producer backed by the given assistant.
func New(assistant upstream.Assistant, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{
		assistant: assistant,
		logger:    logger.With("component", "producer"),
	}
}

// Stream runs one assistant turn and emits wire frames on the returned
// channel. The channel always terminates with [DONE]: either after a
// normal completion or after a single {error, details} frame. It is
// closed once the terminal sentinel is sent.
func (p *Producer) Stream(ctx context.Context, req Request) <-chan []byte {
	out := make(chan []byte, 16)

	go func() {
		defer close(out)

		if err := p.run(ctx, req, out); err != nil {
			p.logger.Error("stream failed", "error", err)
			p.send(ctx, out, wire.ErrorFrame(errorMessage, err.Error()))
		}
		p.send(ctx, out, wire.DoneFrame())
	}()

	return out
}

// run drives a single turn and returns an error for the terminal {error}
// frame path. Frames for the happy path are emitted as they happen.
func (p *Producer) run(ctx context.Context, req Request, out chan<- []byte) error {
	sessionID := req.SessionID

	if sessionID == "" {
		id, err := p.assistant.CreateSession(ctx)
		if err != nil {
			return err
		}
		sessionID = id
		p.logger.Debug("session created", "session_id", sessionID)

		// Announce the id before any other output so the consumer can
		// resume this thread on later sends.
		if !p.send(ctx, out, wire.SessionFrame(sessionID)) {
			return ctx.Err()
		}

		// A fresh session has no upstream context; replay the caller's
		// history in original order, role-preserving. Existing sessions
		// already hold their own history and are never reseeded.
		for _, msg := range req.History {
			if err := p.assistant.AppendMessage(ctx, sessionID, msg.Role, msg.Content); err != nil {
				return err
			}
		}
	}

	if err := p.assistant.AppendMessage(ctx, sessionID, wire.RoleUser, req.Message); err != nil {
		return err
	}

	events, err := p.assistant.StartRun(ctx, sessionID)
	if err != nil {
		return err
	}

	for ev := range events {
		switch ev.Kind {
		case upstream.EventDelta:
			for _, raw := range ev.Fragments {
				text, ok := normalizeFragment(raw)
				if !ok {
					p.logger.Debug("skipping unrecognized fragment", "session_id", sessionID)
					continue
				}
				if text == "" {
					continue
				}
				// One frame per fragment, no batching: deltas reach the
				// consumer as soon as the provider emits them.
				if !p.send(ctx, out, wire.ContentFrame(text)) {
					return ctx.Err()
				}
			}

		case upstream.EventSources:
			if !p.send(ctx, out, wire.SourcesFrame(ev.Sources)) {
				return ctx.Err()
			}

		case upstream.EventCompleted:
			return nil

		case upstream.EventFailed:
			return ev.Err
		}
	}

	// Event channel closed without a terminal event.
	if err := ctx.Err(); err != nil {
		return err
	}
	return upstream.ErrRunInterrupted
}

// send encodes and emits one frame. Returns false when the context is
// cancelled before the frame can be buffered.
func (p *Producer) send(ctx context.Context, out chan<- []byte, f wire.Frame) bool {
	data, err := wire.Encode(f)
	if err != nil {
		p.logger.Error("failed to encode frame", "error", err)
		return true
	}

	select {
	case out <- data:
		return true
	case <-ctx.Done():
		return false
	}
}

// normalizeFragment folds the provider's two delta shapes to a plain
// string: either the fragment is a string already, or it is an object
// with a string "value" field. Anything else is skipped, since the
// upstream event shape is not fully specified and varies by provider
// version.
func normalizeFragment(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case map[string]any:
		if s, ok := v["value"].(string); ok {
			return s, true
		}
	}
	return "", false
}
