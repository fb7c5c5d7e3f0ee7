// Package history bounds how much conversation context gets sent upstream.
package history

import "github.com/hmartell/chatbridge/internal/provider"

// Window returns the last limit turns of a conversation, in their original
// order. If the conversation is already short enough it comes back
// unchanged; a zero or negative limit yields nil.
//
// The truncation is deliberately silent — no error, no warning. The chat
// UI can accumulate an arbitrarily long conversation, but sending all of
// it upstream on every message costs tokens and latency for context the
// model rarely needs. Taking the suffix (never a sample) keeps the most
// recent exchange intact, which is the part that matters for a follow-up
// question. This is the Go version of history.slice(-limit).
func Window(turns []provider.Turn, limit int) []provider.Turn {
	if limit <= 0 {
		return nil
	}
	if len(turns) <= limit {
		return turns
	}
	return turns[len(turns)-limit:]
}
