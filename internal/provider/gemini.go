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
// GeminiProvider struct + constructor
// ---------------------------------------------------------------------------

// GeminiProvider implements the Provider interface for Google's Gemini API.
// It renders the conversation into Gemini's single-text-blob format, makes
// the HTTP call, and digs the answer out of Gemini's deeply nested response.
//
// Gemini sits first in the default fallback order because its flash tier is
// free and fast — the chain only moves past it when it's missing a key or
// actually fails.
type GeminiProvider struct {
	cfg    config.ProviderConfig
	client *http.Client // reusable HTTP client (manages connection pooling)
}

// NewGemini creates a GeminiProvider ready to make API calls.
// We take an *http.Client as a parameter instead of creating one internally.
// This is dependency injection, Go style — it lets tests pass in a fake
// client (or a VCR-wrapped one), and lets main.go own the timeout. In
// Express terms, it's like passing a configured Axios instance to a service
// instead of using the global one.
func NewGemini(cfg config.ProviderConfig, client *http.Client) *GeminiProvider {
	return &GeminiProvider{cfg: cfg, client: client}
}

// Name returns the configured provider identifier ("gemini" by default).
func (g *GeminiProvider) Name() string {
	return g.cfg.Name
}

// Model returns the configured model identifier.
func (g *GeminiProvider) Model() string {
	return g.cfg.Model
}

// Available reports whether a credential was resolved at startup. No
// network involved — an absent GOOGLE_AI_API_KEY just means the chain
// skips straight past this provider.
func (g *GeminiProvider) Available() bool {
	return g.cfg.APIKey != ""
}

// ---------------------------------------------------------------------------
// Gemini API types (unexported — only this file uses them)
// ---------------------------------------------------------------------------

// These structs represent the JSON shapes that Gemini's generateContent
// endpoint expects and returns. They're private to this adapter.

// --- Request types ---

// geminiRequest is the top-level request body for generateContent.
type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
	SafetySettings   []geminiSafetySetting  `json:"safetySettings"`
}

// geminiContent represents one entry in the contents array. Gemini uses
// "parts" (an array) because it supports multimodal input (text + images).
// We always send a single text part holding the whole rendered prompt.
type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

// geminiPart is one piece of content. For text, it's just {"text": "..."}.
type geminiPart struct {
	Text string `json:"text"`
}

// geminiGenerationConfig holds sampling parameters. Note the camelCase
// field names — Gemini's JSON convention, unlike OpenAI's snake_case.
type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
	TopP            float64 `json:"topP,omitempty"`
	TopK            int     `json:"topK,omitempty"`
}

// geminiSafetySetting is one content-filter threshold.
type geminiSafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

// --- Response types ---

// geminiResponse is the top-level response from generateContent. The text
// we want lives at candidates[0].content.parts[0].text — four levels deep,
// and every level can legitimately be missing (safety-blocked completions
// come back with no parts at all), so extraction checks each hop.
type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiCandidate struct {
	Content geminiCandidateContent `json:"content"`
}

type geminiCandidateContent struct {
	Parts []geminiPart `json:"parts"`
}

// geminiError is the error body Gemini returns on non-2xx statuses.
type geminiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// defaultSafetySettings matches the four harm-category thresholds the
// gateway has always sent. Gemini applies its own defaults if these are
// omitted, but pinning them keeps moderation behavior explicit and stable
// across Gemini's default changes.
var defaultSafetySettings = []geminiSafetySetting{
	{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
	{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
	{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
	{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
}

// ---------------------------------------------------------------------------
// Complete
// ---------------------------------------------------------------------------

// Complete sends the rendered conversation to Gemini's generateContent
// endpoint and returns the generated text.
//
// The flow: render prompt → build payload → HTTP POST → check status →
// traverse response → trim and validate.
func (g *GeminiProvider) Complete(ctx context.Context, message string, history []Turn) (string, error) {
	// Step 1: Render the whole conversation into one text blob. Gemini
	// does have a structured multi-turn format, but a single part with
	// role-labeled lines is what this gateway has always sent and it
	// behaves well with the flash models.
	prompt := renderPrompt(message, history)

	geminiReq := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: prompt}}},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     g.cfg.Temperature,
			MaxOutputTokens: g.cfg.MaxOutputTokens,
			TopP:            g.cfg.TopP,
			TopK:            g.cfg.TopK,
		},
		SafetySettings: defaultSafetySettings,
	}

	// Step 2: Serialize to JSON. json.Marshal is Go's JSON.stringify().
	body, err := json.Marshal(geminiReq)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	// Step 3: Build the HTTP request. The endpoint pattern is
	// {baseURL}/models/{model}:generateContent, and the API key goes in
	// a query parameter (?key=...) — unusual, most APIs want a header,
	// but that's Gemini's contract.
	//
	// http.NewRequestWithContext ties the call to our context: if the
	// chat client disconnects, the upstream call is aborted too.
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		g.cfg.BaseURL, g.cfg.Model, g.cfg.APIKey,
	)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	// Step 4: Make the HTTP call. Blocks until the full response arrives
	// or the client's timeout / the context cuts it off.
	httpResp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("sending request to gemini: %w", err)
	}
	// We MUST close the response body or we'll leak TCP connections.
	defer httpResp.Body.Close()

	// Step 5: Check for HTTP errors. Gemini puts a human-readable reason
	// at error.message in the body; surface that if present so the
	// attempt record says "API key not valid" instead of just "HTTP 400".
	if httpResp.StatusCode != http.StatusOK {
		var errBody geminiError
		json.NewDecoder(httpResp.Body).Decode(&errBody)
		msg := errBody.Error.Message
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d", httpResp.StatusCode)
		}
		return "", fmt.Errorf("gemini API failed: %s", msg)
	}

	// Step 6: Decode and traverse. Each level of
	// candidates[0].content.parts[0].text can be absent — this is the Go
	// spelling of data.candidates?.[0]?.content?.parts?.[0]?.text.
	var geminiResp geminiResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&geminiResp); err != nil {
		return "", fmt.Errorf("decoding gemini response: %w", err)
	}

	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini: %w", ErrEmptyCompletion)
	}

	// Step 7: Trim and validate. A 200 whose text boils down to nothing
	// is a failure — the chain should fall back rather than hand the UI
	// a blank bubble.
	text := strings.TrimSpace(geminiResp.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return "", fmt.Errorf("gemini: %w", ErrEmptyCompletion)
	}

	return text, nil
}
