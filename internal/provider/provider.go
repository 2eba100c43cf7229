// Package provider implements the uniform call contract over the hosted
// LLM backends (Anthropic, OpenAI, Google) and the model router that
// selects between them.
package provider

import (
	"context"
	"time"
)

const (
	// maxOutputTokens caps completion length for the SDK-style backends.
	maxOutputTokens = 1024

	// CallTimeout bounds a single provider call. The relay applies it per
	// message so a hung backend cannot hold a handler open forever.
	CallTimeout = 30 * time.Second

	// emptyReplyText is substituted when a backend returns an empty or
	// absent completion; the reply text contract is never-empty.
	emptyReplyText = "Sorry, I could not generate a response."
)

// Provider is the uniform call contract every LLM backend satisfies.
// Each call is a fresh, stateless single-turn completion; no conversation
// history is retained or sent. No retries are performed.
type Provider interface {
	// Name returns the provider identifier: "anthropic", "openai" or "google".
	Name() string

	// Model returns the pinned backend model version this adapter calls.
	Model() string

	// Generate sends one user message and returns the completion with
	// normalized token counts. Network, auth and rate-limit failures are
	// returned as errors; the caller converts them into a user-facing
	// apology and a failed usage event.
	Generate(ctx context.Context, message string) (Reply, error)
}

// Reply is the normalized completion shape shared by all backends.
type Reply struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Credentials holds the optional per-provider API secrets.
type Credentials struct {
	Anthropic string
	OpenAI    string
	Google    string
}

// Empty reports whether no provider credential is configured at all.
func (c Credentials) Empty() bool {
	return c.Anthropic == "" && c.OpenAI == "" && c.Google == ""
}
