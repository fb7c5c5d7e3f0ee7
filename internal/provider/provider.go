// Package provider defines the Provider interface and LLM provider adapters.
//
// Every LLM backend (Gemini, OpenAI, etc.) implements the Provider
// interface. The rest of the gateway — the fallback chain, the HTTP
// handlers — works against these unified types and never needs to know
// which backend is actually answering a request.
package provider

import (
	"context"
	"errors"
	"strings"
)

// Provider is the interface that every LLM backend must satisfy.
// Go interfaces are implicit: any struct that has these four methods
// automatically implements Provider — no "implements" keyword needed.
type Provider interface {
	// Name returns the provider identifier, e.g. "gemini" or "openai".
	// Used for logging and the "provider" field in the chat response.
	Name() string

	// Model returns the model identifier this provider is configured
	// with, e.g. "gemini-2.5-flash".
	Model() string

	// Available reports whether this provider has a credential and can
	// be attempted at all. The chain checks this BEFORE making any
	// network call — a missing API key is a skip, never a failed attempt.
	Available() bool

	// Complete sends one message (plus windowed history) to the backend
	// and returns the generated text, trimmed and guaranteed non-empty.
	//
	// The context.Context parameter carries cancellation signals and
	// deadlines. If the client disconnects, ctx gets cancelled, and the
	// adapter should stop waiting for the upstream API.
	//
	// Complete never retries internally. One call, one answer or one
	// error — deciding what to do about a failure belongs to the
	// fallback chain, not the adapter.
	Complete(ctx context.Context, message string, history []Turn) (string, error)
}

// Turn is a single message in the conversation. The UI sends these as
// {text, sender} pairs; sender is "user" or "assistant".
type Turn struct {
	Text   string `json:"text"`
	Sender string `json:"sender"`
}

// SystemPrompt is sent ahead of every conversation, on every provider.
// Kept short on purpose — it nudges the models toward quick, direct
// answers, which is what a chat UI wants.
const SystemPrompt = "You are a helpful AI assistant. Provide clear, concise, and direct answers. Be brief but informative."

// ErrEmptyCompletion marks the "HTTP 200 but no usable text" case: the
// provider answered the transport call but the response had no content
// (or only whitespace) where the text should be. For fallback purposes
// this is exactly as bad as a failed call, so adapters wrap this sentinel
// into their error and the chain moves on to the next provider.
//
// Callers that care CAN tell the two apart with errors.Is — e.g. a
// safety-filtered empty completion looks different in logs from a 500 —
// but nothing in the gateway treats them differently today.
var ErrEmptyCompletion = errors.New("empty completion")

// role maps a Turn's sender onto the role label providers expect.
// Anything that isn't "user" is treated as the assistant — the UI only
// ever produces those two values, but unknown senders shouldn't be able
// to smuggle a bogus role upstream.
func role(sender string) string {
	if sender == "user" {
		return "user"
	}
	return "assistant"
}

// label is the human-readable form of role, used when history is
// rendered into a plain-text prompt blob (the Gemini path).
func label(sender string) string {
	if sender == "user" {
		return "User"
	}
	return "Assistant"
}

// renderPrompt flattens the system prompt, the windowed history, and the
// new message into a single text blob:
//
//	<system prompt>
//
//	User: earlier question
//
//	Assistant: earlier answer
//
//	User: new message
//
//	Assistant:
//
// The trailing "Assistant:" cue tells the model whose turn it is.
// Providers with a structured message format (OpenAI) don't use this —
// it exists for backends that take one flat text field.
func renderPrompt(message string, history []Turn) string {
	var b strings.Builder
	b.WriteString(SystemPrompt)
	b.WriteString("\n\n")

	for _, turn := range history {
		b.WriteString(label(turn.Sender))
		b.WriteString(": ")
		b.WriteString(turn.Text)
		b.WriteString("\n\n")
	}

	b.WriteString("User: ")
	b.WriteString(message)
	b.WriteString("\n\nAssistant:")
	return b.String()
}
