package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmartell/chatbridge/internal/config"
	"github.com/hmartell/chatbridge/internal/fallback"
	"github.com/hmartell/chatbridge/internal/provider"
)

// stubProvider lets handler tests script provider outcomes without HTTP.
// It records what it was asked so tests can assert on the windowed history
// that actually reached the provider.
type stubProvider struct {
	name        string
	model       string
	available   bool
	text        string
	err         error
	calls       int
	lastMessage string
	lastHistory []provider.Turn
}

func (s *stubProvider) Name() string    { return s.name }
func (s *stubProvider) Model() string   { return s.model }
func (s *stubProvider) Available() bool { return s.available }

func (s *stubProvider) Complete(ctx context.Context, message string, history []provider.Turn) (string, error) {
	s.calls++
	s.lastMessage = message
	s.lastHistory = history
	return s.text, s.err
}

// newTestServer wires a Server around the given providers with a 3-turn
// history window, mirroring the default deployment shape.
func newTestServer(providers ...provider.Provider) *Server {
	cfg := &config.Config{
		Chat: config.ChatConfig{HistoryWindow: 3},
	}
	return New(cfg, fallback.NewChain(providers...))
}

// postChat sends a JSON body to /api/chat and returns the recorder.
func postChat(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func TestChatSuccess(t *testing.T) {
	gemini := &stubProvider{name: "gemini", model: "gemini-2.5-flash", available: true, text: "Hi there!"}
	s := newTestServer(gemini)

	w := postChat(t, s, `{"message": "Hello", "conversationHistory": []}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp struct {
		Response      string `json:"response"`
		Provider      string `json:"provider"`
		Model         string `json:"model"`
		Timestamp     string `json:"timestamp"`
		MessageLength int    `json:"messageLength"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, "Hi there!", resp.Response)
	assert.Equal(t, "gemini", resp.Provider)
	assert.Equal(t, "gemini-2.5-flash", resp.Model)
	assert.Equal(t, len("Hi there!"), resp.MessageLength)
	assert.NotEmpty(t, resp.Timestamp)

	// Timing metadata must be present in the body even when the stubbed
	// round trip takes under a millisecond.
	assert.Contains(t, w.Body.String(), `"responseTime"`)
}

func TestChatFallsBackToSecondProvider(t *testing.T) {
	gemini := &stubProvider{name: "gemini", available: true, err: errors.New("gemini API failed: HTTP 429")}
	openai := &stubProvider{name: "openai", model: "gpt-4o-mini", available: true, text: "Fallback answer"}
	s := newTestServer(gemini, openai)

	w := postChat(t, s, `{"message": "Hello"}`)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Response string `json:"response"`
		Provider string `json:"provider"`
		Error    string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	// The caller sees only the winning provider — the primary's failure
	// stays in internal diagnostics (logs), not in the response.
	assert.Equal(t, "Fallback answer", resp.Response)
	assert.Equal(t, "openai", resp.Provider)
	assert.Empty(t, resp.Error)
	assert.Equal(t, 1, gemini.calls)
	assert.Equal(t, 1, openai.calls)
}

func TestChatAllProvidersFail(t *testing.T) {
	gemini := &stubProvider{name: "gemini", available: true, err: errors.New("gemini API failed: quota exceeded")}
	openai := &stubProvider{name: "openai", available: true, err: errors.New("openai API failed: HTTP 401")}
	s := newTestServer(gemini, openai)

	w := postChat(t, s, `{"message": "Hello"}`)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp struct {
		Response string `json:"response"`
		Provider string `json:"provider"`
		Error    string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	// User-safe text in response, raw detail in the diagnostic field.
	assert.Equal(t, "AI service temporarily unavailable. Please try again in a moment.", resp.Response)
	assert.Equal(t, "error", resp.Provider)
	assert.Contains(t, resp.Error, "gemini: gemini API failed: quota exceeded")
	assert.Contains(t, resp.Error, "openai: openai API failed: HTTP 401")
}

func TestChatNoProvidersConfigured(t *testing.T) {
	gemini := &stubProvider{name: "gemini", available: false}
	openai := &stubProvider{name: "openai", available: false}
	s := newTestServer(gemini, openai)

	w := postChat(t, s, `{"message": "Hello"}`)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp struct {
		Response string `json:"response"`
		Provider string `json:"provider"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Contains(t, resp.Response, "No AI provider configured")
	assert.Equal(t, "error", resp.Provider)

	// No credentials means zero provider calls, not two failed ones.
	assert.Equal(t, 0, gemini.calls)
	assert.Equal(t, 0, openai.calls)
}

func TestChatRejectsBlankMessage(t *testing.T) {
	gemini := &stubProvider{name: "gemini", available: true, text: "should not run"}
	s := newTestServer(gemini)

	for _, body := range []string{
		`{"message": ""}`,
		`{"message": "   "}`,
		`{}`,
		`{"message": 42}`,
	} {
		w := postChat(t, s, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body: %s", body)
		assert.Contains(t, w.Body.String(), "Valid message is required")
	}

	// Validation happens before the chain — no provider is ever touched.
	assert.Equal(t, 0, gemini.calls)
}

func TestChatMalformedBody(t *testing.T) {
	gemini := &stubProvider{name: "gemini", available: true, text: "should not run"}
	s := newTestServer(gemini)

	w := postChat(t, s, `{"message": `)

	require.Equal(t, http.StatusInternalServerError, w.Code)

	var resp struct {
		Response string `json:"response"`
		Provider string `json:"provider"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "An unexpected error occurred. Please try again.", resp.Response)
	assert.Equal(t, "error", resp.Provider)
	assert.Equal(t, 0, gemini.calls)
}

func TestChatWindowsHistory(t *testing.T) {
	gemini := &stubProvider{name: "gemini", model: "gemini-2.5-flash", available: true, text: "ok"}
	s := newTestServer(gemini)

	// Ten turns of history; only the last three may reach the provider.
	var sb strings.Builder
	sb.WriteString(`{"message": "latest question", "conversationHistory": [`)
	for i := 0; i < 10; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sender := "user"
		if i%2 == 1 {
			sender = "assistant"
		}
		sb.WriteString(`{"text": "turn-` + string(rune('0'+i)) + `", "sender": "` + sender + `"}`)
	}
	sb.WriteString(`]}`)

	w := postChat(t, s, sb.String())
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, gemini.lastHistory, 3)
	assert.Equal(t, "turn-7", gemini.lastHistory[0].Text)
	assert.Equal(t, "turn-8", gemini.lastHistory[1].Text)
	assert.Equal(t, "turn-9", gemini.lastHistory[2].Text)
	assert.Equal(t, "latest question", gemini.lastMessage)
}

func TestChatTrimsMessage(t *testing.T) {
	gemini := &stubProvider{name: "gemini", available: true, text: "ok"}
	s := newTestServer(gemini)

	w := postChat(t, s, `{"message": "  Hello  "}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Hello", gemini.lastMessage)
}

func TestHealth(t *testing.T) {
	s := newTestServer(
		&stubProvider{name: "gemini", available: true},
		&stubProvider{name: "openai", available: false},
	)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Status    string          `json:"status"`
		Providers map[string]bool `json:"providers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]bool{"gemini": true, "openai": false}, resp.Providers)
}
