package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/hmartell/chatbridge/internal/fallback"
	"github.com/hmartell/chatbridge/internal/history"
	"github.com/hmartell/chatbridge/internal/provider"
)

// chatRequest is the inbound payload for POST /api/chat. The history is
// optional — a fresh conversation just sends the message.
type chatRequest struct {
	Message             string          `json:"message"`
	ConversationHistory []provider.Turn `json:"conversationHistory"`
}

// chatResponse is the outbound payload for a successful completion:
// the answer itself plus attribution (which provider, which model) and
// timing metadata. The timing fields are observability only — nothing
// downstream makes decisions on them.
type chatResponse struct {
	Response      string `json:"response"`
	Provider      string `json:"provider"`
	Model         string `json:"model"`
	Timestamp     string `json:"timestamp"`
	ResponseTime  int64  `json:"responseTime"`
	MessageLength int    `json:"messageLength"`
}

// errorResponse is the outbound payload for any failure. Response carries
// a user-safe message and Provider is the literal string "error", with the
// real per-provider detail in Error for diagnostics. The UI renders
// Response either way, which keeps its happy path and sad path identical.
type errorResponse struct {
	Response  string `json:"response"`
	Provider  string `json:"provider"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

// User-facing fallback texts. These are the only strings an end user ever
// sees on a failure — raw provider errors go to logs and the diagnostic
// Error field, never into a chat bubble.
const (
	msgUnavailable  = "AI service temporarily unavailable. Please try again in a moment."
	msgNoProviders  = "No AI provider configured. Please add GOOGLE_AI_API_KEY or OPENAI_API_KEY to your .env file."
	msgUnexpected   = "An unexpected error occurred. Please try again."
	msgInvalidInput = "Valid message is required"
)

// handleHealth responds with a liveness status plus each configured
// provider's availability, so `curl /health` answers the first debugging
// question ("is my key even loaded?") without digging through logs.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"providers": s.chain.Availability(),
	})
}

// handleChat handles POST /api/chat: validate the message, window the
// history, run the fallback chain, and map the outcome onto the wire.
//
// Every request runs this exact pipeline from scratch — no state survives
// between requests, and the conversation history is read-only here: it's
// windowed and forwarded, never stored or mutated.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	// Decode the body. A well-formed JSON body with the wrong type in a
	// field (a numeric message, say) is the caller's mistake — that's a
	// validation failure. A body that isn't valid JSON at all is an
	// unexpected-fault case: the UI always sends well-formed JSON, so a
	// parse failure means something upstream of normal operation broke.
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": msgInvalidInput,
			})
			return
		}

		log.Printf("unreadable request body: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Response:  msgUnexpected,
			Provider:  "error",
			Error:     "invalid request body",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	// Validate: the message must be non-empty after trimming. This is the
	// only gate before provider work — rejecting here guarantees no
	// network call is ever made for a blank message.
	message := strings.TrimSpace(req.Message)
	if message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": msgInvalidInput,
		})
		return
	}

	log.Printf("chat request: message=%q history=%d available=%v",
		preview(message, 50), len(req.ConversationHistory), s.chain.Availability(),
	)

	// Window the history down to the configured suffix before it goes
	// anywhere near a provider.
	windowed := history.Window(req.ConversationHistory, s.cfg.Chat.HistoryWindow)

	// Run the chain. r.Context() cancels if the client disconnects, which
	// aborts whichever upstream call is in flight.
	result, err := s.chain.Complete(r.Context(), message, windowed)
	if err != nil {
		var attErr *fallback.AttemptsError
		if errors.As(err, &attErr) {
			userMsg := msgUnavailable
			if attErr.NoneConfigured {
				userMsg = msgNoProviders
			}
			log.Printf("all providers failed: %s", attErr.Summary())
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{
				Response:  userMsg,
				Provider:  "error",
				Error:     attErr.Summary(),
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			})
			return
		}

		// Anything that isn't an AttemptsError is a fault we didn't
		// plan for. Generic 500, details to the log only.
		log.Printf("unexpected completion error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Response:  msgUnexpected,
			Provider:  "error",
			Error:     "internal error",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	duration := time.Since(start)
	log.Printf("response generated in %s via %s", duration.Round(time.Millisecond), result.Provider)

	writeJSON(w, http.StatusOK, chatResponse{
		Response:      result.Text,
		Provider:      result.Provider,
		Model:         result.Model,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		ResponseTime:  duration.Milliseconds(),
		MessageLength: len(result.Text),
	})
}

// writeJSON sets the content type, writes the status code, and encodes the
// body — the res.status(code).json(body) of this codebase. Headers must be
// set before the first write; once the body starts, they're locked in.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// preview truncates a string for log lines so a pasted essay doesn't
// flood the request trace.
func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
