package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/hmartell/chatbridge/internal/config"
)

// ---------------------------------------------------------------------------
// OpenAIProvider struct + constructor
// ---------------------------------------------------------------------------

// OpenAIProvider implements the Provider interface for OpenAI's chat
// completions API. Same pattern as GeminiProvider: translate, POST,
// extract — but the wire format differs on every axis:
//
//   - auth is a Bearer header, not a query parameter
//   - the conversation is a role-tagged messages array, not one text blob
//   - parameters are flat and snake_cased (max_tokens vs maxOutputTokens)
//   - the answer sits at choices[0].message.content, much shallower than
//     Gemini's candidates[0].content.parts[0].text
//
// This is the paid fallback: it only sees traffic when Gemini is
// unavailable or fails.
type OpenAIProvider struct {
	cfg    config.ProviderConfig
	client *http.Client
}

// NewOpenAI creates an OpenAIProvider ready to make API calls.
func NewOpenAI(cfg config.ProviderConfig, client *http.Client) *OpenAIProvider {
	return &OpenAIProvider{cfg: cfg, client: client}
}

// Name returns the configured provider identifier ("openai" by default).
func (o *OpenAIProvider) Name() string {
	return o.cfg.Name
}

// Model returns the configured model identifier.
func (o *OpenAIProvider) Model() string {
	return o.cfg.Model
}

// Available reports whether a credential was resolved at startup.
func (o *OpenAIProvider) Available() bool {
	return o.cfg.APIKey != ""
}

// ---------------------------------------------------------------------------
// OpenAI API types (unexported)
// ---------------------------------------------------------------------------

// --- Request types ---

// openaiRequest is the top-level request body for /chat/completions.
type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens"`
}

// openaiMessage is one message in the conversation: flat role + content,
// with the system prompt as just another message at the front.
type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// --- Response types ---

// openaiResponse is the top-level response from /chat/completions. OpenAI
// can return multiple choices but we only ever ask for (and read) the first.
type openaiResponse struct {
	Choices []openaiChoice `json:"choices"`
}

type openaiChoice struct {
	Message openaiMessage `json:"message"`
}

// openaiError is the error body returned on non-2xx statuses. Same
// error.message path as Gemini, conveniently.
type openaiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ---------------------------------------------------------------------------
// Complete
// ---------------------------------------------------------------------------

// Complete sends the conversation to OpenAI's chat completions endpoint
// and returns the generated text.
func (o *OpenAIProvider) Complete(ctx context.Context, message string, history []Turn) (string, error) {
	// Step 1: Build the role-tagged messages array: system prompt first,
	// then the windowed history in order, then the new user message.
	messages := make([]openaiMessage, 0, len(history)+2)
	messages = append(messages, openaiMessage{Role: "system", Content: SystemPrompt})

	for _, turn := range history {
		messages = append(messages, openaiMessage{
			Role:    role(turn.Sender),
			Content: turn.Text,
		})
	}

	messages = append(messages, openaiMessage{Role: "user", Content: message})

	openaiReq := openaiRequest{
		Model:       o.cfg.Model,
		Messages:    messages,
		Temperature: o.cfg.Temperature,
		MaxTokens:   o.cfg.MaxOutputTokens,
	}

	// Step 2: Serialize to JSON.
	body, err := json.Marshal(openaiReq)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	// Step 3: Build the HTTP request. The model goes in the body (already
	// set above), so the URL is just {baseURL}/chat/completions, and auth
	// is the standard Authorization: Bearer header.
	url := fmt.Sprintf("%s/chat/completions", o.cfg.BaseURL)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)

	// Step 4: Make the HTTP call.
	httpResp, err := o.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("sending request to openai: %w", err)
	}
	defer httpResp.Body.Close()

	// Step 5: Check for HTTP errors, preferring OpenAI's own message
	// (rate-limit errors in particular carry useful detail).
	if httpResp.StatusCode != http.StatusOK {
		var errBody openaiError
		json.NewDecoder(httpResp.Body).Decode(&errBody)
		msg := errBody.Error.Message
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d", httpResp.StatusCode)
		}
		return "", fmt.Errorf("openai API failed: %s", msg)
	}

	// Step 6: Decode and extract choices[0].message.content.
	var openaiResp openaiResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&openaiResp); err != nil {
		return "", fmt.Errorf("decoding openai response: %w", err)
	}

	if len(openaiResp.Choices) == 0 {
		return "", fmt.Errorf("openai: %w", ErrEmptyCompletion)
	}

	// Step 7: Trim and validate — a 200 with blank content still counts
	// as a failed attempt.
	text := strings.TrimSpace(openaiResp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("openai: %w", ErrEmptyCompletion)
	}

	return text, nil
}
