// ABOUTME: Chat endpoint handler: parses requests and streams SSE frames.
// ABOUTME: Copies producer output to the response writer with per-frame flushes.

package relay

import (
	"encoding/json"
	"net/http"

	"github.com/2389/chat-relay/internal/producer"
	"github.com/2389/chat-relay/internal/upstream"
	"github.com/2389/chat-relay/internal/wire"
)

// handleChat handles POST /api/chat. The response is an SSE stream of
// wire frames ending with the [DONE] sentinel.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req wire.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if s.producer == nil {
		sendJSONError(w, http.StatusServiceUnavailable, upstream.ErrNotConfigured.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		sendJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	frames := s.producer.Stream(r.Context(), producer.Request{
		Message:   req.Message,
		History:   req.ConversationHistory,
		SessionID: req.SessionID,
	})

	for frame := range frames {
		if _, err := w.Write(frame); err != nil {
			s.logger.Debug("client disconnected", "error", err)
			return
		}
		flusher.Flush()
	}
}

func sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
