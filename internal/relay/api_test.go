// ABOUTME: Tests for the chat relay HTTP surface
// ABOUTME: Verifies SSE streaming responses, auth gating, and error conditions

package relay

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/chat-relay/internal/auth"
	"github.com/2389/chat-relay/internal/config"
	"github.com/2389/chat-relay/internal/upstream"
	"github.com/2389/chat-relay/internal/wire"
)

func newTestServer(t *testing.T, cfg *config.Config, assistant upstream.Assistant) *Server {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{}
		cfg.Server.HTTPAddr = "127.0.0.1:0"
	}
	return New(cfg, assistant, nil)
}

func chatRequestBody(t *testing.T, message string) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(wire.ChatRequest{Message: message})
	require.NoError(t, err)
	return bytes.NewReader(body)
}

// decodeStream parses an SSE body into frames.
func decodeStream(t *testing.T, body io.Reader) []wire.Frame {
	t.Helper()
	raw, err := io.ReadAll(body)
	require.NoError(t, err)

	var frames []wire.Frame
	for _, line := range strings.Split(string(raw), "\n") {
		payload, found := strings.CutPrefix(line, wire.Prefix)
		if !found {
			continue
		}
		if f := wire.Decode(payload); f != nil {
			frames = append(frames, *f)
		}
	}
	return frames
}

func TestHandleChat_StreamsFrames(t *testing.T) {
	assistant := upstream.NewScripted()
	assistant.Reply = func(string) string { return "Hello there" }
	s := newTestServer(t, nil, assistant)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", chatRequestBody(t, "Hi"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	s.handleChat(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	frames := decodeStream(t, rec.Body)
	require.NotEmpty(t, frames)
	assert.NotEmpty(t, frames[0].SessionID)
	assert.True(t, frames[len(frames)-1].Done)

	var content strings.Builder
	for _, f := range frames {
		content.WriteString(f.Content)
	}
	assert.Equal(t, "Hello there", content.String())
}

func TestHandleChat_SourcesForwarded(t *testing.T) {
	assistant := upstream.NewScripted()
	assistant.Reply = func(string) string { return "answer" }
	assistant.Sources = []string{"doc-1", "doc-2"}
	s := newTestServer(t, nil, assistant)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", chatRequestBody(t, "Hi"))
	rec := httptest.NewRecorder()

	s.handleChat(rec, req)

	var sources []string
	for _, f := range decodeStream(t, rec.Body) {
		if f.Sources != nil {
			sources = f.Sources
		}
	}
	assert.Equal(t, []string{"doc-1", "doc-2"}, sources)
}

func TestHandleChat_NoAssistantConfigured(t *testing.T) {
	s := newTestServer(t, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", chatRequestBody(t, "Hi"))
	rec := httptest.NewRecorder()

	s.handleChat(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var errResp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&errResp))
	assert.NotEmpty(t, errResp["error"])
}

func TestHandleChat_InvalidBody(t *testing.T) {
	s := newTestServer(t, nil, upstream.NewScripted())

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader("{broken"))
	rec := httptest.NewRecorder()

	s.handleChat(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleChat_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t, nil, upstream.NewScripted())

	req := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	rec := httptest.NewRecorder()

	s.handleChat(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	s.handleHealth(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestServer_AuthRequiredWhenSecretSet(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.HTTPAddr = "127.0.0.1:0"
	cfg.Auth.JWTSecret = "test-secret"

	assistant := upstream.NewScripted()
	assistant.Reply = func(string) string { return "ok" }
	s := New(cfg, assistant, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", chatRequestBody(t, "Hi"))
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	verifier := auth.NewJWTVerifier([]byte("test-secret"))
	token, err := verifier.Generate("tui-user", time.Hour)
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodPost, "/api/chat", chatRequestBody(t, "Hi"))
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_HealthBypassesAuth(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.HTTPAddr = "127.0.0.1:0"
	cfg.Auth.JWTSecret = "test-secret"
	s := New(cfg, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
