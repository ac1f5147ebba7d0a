// ABOUTME: Shared chat types that cross the client/server boundary.
// ABOUTME: Messages, roles, origin tags, and the /api/chat request body.

package wire

import "time"

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Origin tags a user message with where it was initiated from,
// e.g. a suggested prompt on a project page.
type Origin struct {
	Source   string `json:"source,omitempty"`
	PromptID string `json:"promptId,omitempty"`
}

// Message is one entry in a conversation. A user message's content is
// immutable after creation; an assistant message's content is append-only
// while its stream is live and frozen after termination.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Sources   []string  `json:"sources,omitempty"`
	Origin    *Origin   `json:"origin,omitempty"`
}

// ChatRequest is the JSON body for POST /api/chat.
type ChatRequest struct {
	Message             string    `json:"message"`
	ConversationHistory []Message `json:"conversationHistory"`
	SessionID           string    `json:"sessionId,omitempty"`
}
