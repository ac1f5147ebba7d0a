// ABOUTME: Event interpreter that applies decoded wire frames to conversation state.
// ABOUTME: Dispatches by payload variant; mutates only the in-progress assistant message.

package conversation

import (
	"strings"

	"github.com/2389/chat-relay/internal/wire"
)

// applyFrame applies one decoded frame for the send identified by tok.
// Returns true when the stream is terminal ([DONE] or an error frame).
//
// Dispatch order matters: sentinel, session id, error, content, sources.
// Frames for a superseded or cleared send are dropped so a late-arriving
// delta can never repopulate state the user no longer owns.
func (c *Controller) applyFrame(tok *Token, f *wire.Frame) bool {
	switch {
	case f.Done:
		return true

	case f.SessionID != "":
		c.mu.Lock()
		if c.current != tok {
			c.mu.Unlock()
			return true
		}
		c.sessionID = f.SessionID
		c.mu.Unlock()

		c.store.SaveSession(f.SessionID)
		c.notify()
		return false

	case f.Error != "":
		c.mutateCurrent(tok, func(msg *wire.Message) {
			msg.Content = formatStreamError(f.Error, f.Details)
		})
		// Terminal: no further content is expected after an error frame.
		return true

	case f.Content != "":
		c.mutateCurrent(tok, func(msg *wire.Message) {
			msg.Content += f.Content
		})
		return false

	case f.Sources != nil:
		c.mutateCurrent(tok, func(msg *wire.Message) {
			msg.Sources = f.Sources
		})
		return false

	default:
		// Unrecognized shape: discard silently, keep streaming.
		return false
	}
}

// mutateCurrent mutates the in-progress assistant message, which is always
// the most recently appended message, then mirrors and notifies.
func (c *Controller) mutateCurrent(tok *Token, fn func(*wire.Message)) {
	c.mu.Lock()
	if c.current != tok || len(c.messages) == 0 {
		c.mu.Unlock()
		return
	}
	last := &c.messages[len(c.messages)-1]
	if last.Role != wire.RoleAssistant {
		c.mu.Unlock()
		return
	}
	fn(last)
	c.mu.Unlock()

	c.saveMessages()
	c.notify()
}

// formatStreamError renders an error frame as message content.
func formatStreamError(errMsg, details string) string {
	var b strings.Builder
	b.WriteString("Error: ")
	b.WriteString(errMsg)
	if details != "" {
		b.WriteString(" (")
		b.WriteString(details)
		b.WriteString(")")
	}
	return b.String()
}
