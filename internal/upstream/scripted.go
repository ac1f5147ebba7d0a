// ABOUTME: In-process scripted assistant for local development and tests.
// ABOUTME: Echoes the latest user message back as a word-by-word delta stream.

package upstream

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/chat-relay/internal/wire"
)

// scriptedMessage is one entry held in a scripted session.
type scriptedMessage struct {
	role    wire.Role
	content string
}

// Scripted is a deterministic Assistant used when the relay runs with
// upstream.mode "scripted". It holds sessions in memory and streams a
// canned reply derived from the most recent user message.
//
// Delta fragments alternate between the plain-string and {value: string}
// shapes so consumers exercise both normalization paths.
type Scripted struct {
	mu       sync.Mutex
	sessions map[string][]scriptedMessage

	// Delay between emitted delta events. Zero, used in tests, emits
	// as fast as the channel drains.
	Delay time.Duration

	// Reply overrides the default echo reply when set.
	Reply func(lastUserMessage string) string

	// Sources, when set, is emitted as a sources event before the run
	// completes.
	Sources []string
}

// NewScripted creates a scripted assistant with the default echo reply.
func NewScripted() *Scripted {
	return &Scripted{
		sessions: make(map[string][]scriptedMessage),
	}
}

func (s *Scripted) CreateSession(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := "scripted-" + uuid.New().String()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = nil
	return id, nil
}

func (s *Scripted) AppendMessage(ctx context.Context, sessionID string, role wire.Role, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	msgs, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	s.sessions[sessionID] = append(msgs, scriptedMessage{role: role, content: content})
	return nil
}

// StartRun streams the reply for the session's latest user message. The
// reply is recorded back into the session so follow-up turns see it.
func (s *Scripted) StartRun(ctx context.Context, sessionID string) (<-chan Event, error) {
	s.mu.Lock()
	msgs, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}

	var lastUser string
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].role == wire.RoleUser {
			lastUser = msgs[i].content
			break
		}
	}

	reply := s.echoReply(lastUser)

	events := make(chan Event)
	go func() {
		defer close(events)

		for i, word := range strings.SplitAfter(reply, " ") {
			if word == "" {
				continue
			}
			if s.Delay > 0 {
				select {
				case <-time.After(s.Delay):
				case <-ctx.Done():
					return
				}
			}

			// Alternate fragment shapes to mirror provider drift.
			var frag any = word
			if i%2 == 1 {
				frag = map[string]any{"value": word}
			}

			select {
			case events <- Event{Kind: EventDelta, Fragments: []any{frag}}:
			case <-ctx.Done():
				return
			}
		}

		s.mu.Lock()
		s.sessions[sessionID] = append(s.sessions[sessionID], scriptedMessage{
			role:    wire.RoleAssistant,
			content: reply,
		})
		s.mu.Unlock()

		if len(s.Sources) > 0 {
			select {
			case events <- Event{Kind: EventSources, Sources: s.Sources}:
			case <-ctx.Done():
				return
			}
		}

		select {
		case events <- Event{Kind: EventCompleted}:
		case <-ctx.Done():
		}
	}()

	return events, nil
}

// echoReply builds the canned response for a user message.
func (s *Scripted) echoReply(content string) string {
	if s.Reply != nil {
		return s.Reply(content)
	}
	if strings.TrimSpace(content) == "" {
		return "I did not catch that. Could you try again?"
	}
	return fmt.Sprintf("You said: %s. This is a scripted reply from the relay's built-in assistant.", strings.TrimSpace(content))
}
