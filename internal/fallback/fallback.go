// Package fallback runs a completion request through an ordered chain of
// providers, stopping at the first success.
package fallback

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/hmartell/chatbridge/internal/provider"
)

// Result is a successful completion, attributed to the provider that
// produced it so the UI can show which backend answered.
type Result struct {
	Text     string
	Provider string
	Model    string
}

// Attempt records one provider that was actually tried and failed.
// Providers skipped for lack of a credential never appear here — a skip
// isn't a failure, it's a non-event.
type Attempt struct {
	Provider string `json:"provider"`
	Err      string `json:"error"`
}

// AttemptsError is returned when the whole chain came up empty. It carries
// every failed attempt in the order they happened, so diagnostics can show
// exactly what each provider said — nothing gets collapsed into a single
// opaque "it broke".
type AttemptsError struct {
	Attempts []Attempt

	// NoneConfigured is true when the chain never got off the ground:
	// zero providers had a credential, so zero network calls were made.
	// The handler uses this to show a setup hint instead of an outage
	// message.
	NoneConfigured bool
}

// Error implements the error interface.
func (e *AttemptsError) Error() string {
	return fmt.Sprintf("all providers failed: %s", e.Summary())
}

// Summary renders the attempts as "gemini: quota exceeded; openai: HTTP 401"
// — one line, machine-grepable, safe for the diagnostic field of an error
// response.
func (e *AttemptsError) Summary() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %s", a.Provider, a.Err))
	}
	return strings.Join(parts, "; ")
}

// Chain is an ordered list of providers. Order is the ONLY priority
// signal: the chain tries providers exactly in the order they were
// configured, with no health tracking, latency preference, or reordering.
// Predictable beats clever here — when something goes wrong at 2am you
// want to know exactly which provider was asked first.
type Chain struct {
	providers []provider.Provider
}

// NewChain creates a Chain that will try the given providers in order.
func NewChain(providers ...provider.Provider) *Chain {
	return &Chain{providers: providers}
}

// Availability reports each configured provider's availability, in chain
// order. Used by the health endpoint and the per-request log line.
func (c *Chain) Availability() map[string]bool {
	out := make(map[string]bool, len(c.providers))
	for _, p := range c.providers {
		out[p.Name()] = p.Available()
	}
	return out
}

// Complete runs the request through the chain.
//
// The loop is deliberately explicit: iterate in order, skip unavailable
// providers, return on the first success, collect failures otherwise.
// Attempts are strictly sequential — this is "try, then fall back", never
// "race and take the fastest", because every parallel attempt that loses
// the race would still have cost money.
func (c *Chain) Complete(ctx context.Context, message string, hist []provider.Turn) (*Result, error) {
	// Nothing configured at all? Bail before touching the network, with
	// a single synthetic attempt so the failure shape stays uniform.
	if !c.anyAvailable() {
		return nil, &AttemptsError{
			NoneConfigured: true,
			Attempts: []Attempt{
				{Provider: "none", Err: "no API keys configured"},
			},
		}
	}

	var attempts []Attempt

	for _, p := range c.providers {
		if !p.Available() {
			// Not an error, not an attempt — the provider simply isn't
			// part of this deployment. Log it so the fallback order is
			// visible in the request trace, and move on.
			log.Printf("provider %q skipped: no credential", p.Name())
			continue
		}

		text, err := p.Complete(ctx, message, hist)
		if err != nil {
			log.Printf("provider %q failed: %v", p.Name(), err)
			attempts = append(attempts, Attempt{Provider: p.Name(), Err: err.Error()})
			continue
		}

		// First success wins. Providers after this one are never
		// consulted — there's no reason to pay twice for one answer.
		return &Result{Text: text, Provider: p.Name(), Model: p.Model()}, nil
	}

	return nil, &AttemptsError{Attempts: attempts}
}

func (c *Chain) anyAvailable() bool {
	for _, p := range c.providers {
		if p.Available() {
			return true
		}
	}
	return false
}
