// ABOUTME: Persistence adapter that mirrors conversation state into a KV store.
// ABOUTME: Fire-and-forget saves guarded against running before the initial load.

package persist

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/2389/chat-relay/internal/wire"
)

// Storage keys. keyMessages holds the conversation as a JSON array;
// keySession holds the plain session id string and is absent when no
// session exists.
const (
	keyMessages = "chat.messages"
	keySession  = "chat.session"
)

// Store mirrors the conversation and session id into durable storage.
// It never owns the state: the conversation controller mutates, the store
// only reflects. Read/write failures are logged, never surfaced.
type Store struct {
	kv     KV
	logger *slog.Logger

	mu     sync.Mutex
	loaded bool
}

// NewStore creates a persistence adapter over the given KV.
func NewStore(kv KV, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		kv:     kv,
		logger: logger.With("component", "persist"),
	}
}

// Load reads the persisted conversation and session id. It is called once
// at startup; until it has run, all saves are dropped so an empty initial
// state can never clobber durable state.
func (s *Store) Load() ([]wire.Message, string) {
	s.mu.Lock()
	s.loaded = true
	s.mu.Unlock()

	var messages []wire.Message
	if raw, ok, err := s.kv.Get(keyMessages); err != nil {
		s.logger.Error("failed to read messages", "error", err)
	} else if ok {
		if err := json.Unmarshal([]byte(raw), &messages); err != nil {
			s.logger.Error("failed to parse stored messages", "error", err)
			messages = nil
		}
	}

	var sessionID string
	if raw, ok, err := s.kv.Get(keySession); err != nil {
		s.logger.Error("failed to read session id", "error", err)
	} else if ok {
		sessionID = raw
	}

	return messages, sessionID
}

// SaveMessages mirrors the conversation. Timestamps serialize as RFC3339
// and reconstitute to instants on load via the standard time.Time JSON
// round-trip.
func (s *Store) SaveMessages(messages []wire.Message) {
	if !s.ready("messages") {
		return
	}

	data, err := json.Marshal(messages)
	if err != nil {
		s.logger.Error("failed to serialize messages", "error", err)
		return
	}
	if err := s.kv.Set(keyMessages, string(data)); err != nil {
		s.logger.Error("failed to save messages", "error", err)
	}
}

// SaveSession mirrors the session id. An empty id removes the key.
func (s *Store) SaveSession(sessionID string) {
	if !s.ready("session") {
		return
	}

	var err error
	if sessionID == "" {
		err = s.kv.Remove(keySession)
	} else {
		err = s.kv.Set(keySession, sessionID)
	}
	if err != nil {
		s.logger.Error("failed to save session id", "error", err)
	}
}

// Clear erases both keys. Safe to call repeatedly and on empty state.
func (s *Store) Clear() {
	if err := s.kv.Remove(keyMessages); err != nil {
		s.logger.Error("failed to clear messages", "error", err)
	}
	if err := s.kv.Remove(keySession); err != nil {
		s.logger.Error("failed to clear session id", "error", err)
	}
}

// ready reports whether the initial load has completed.
func (s *Store) ready(what string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		s.logger.Debug("dropping save before initial load", "what", what)
		return false
	}
	return true
}
