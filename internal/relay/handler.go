// Package relay implements the inbound-message dispatch core: it receives
// a chat message, routes it to an LLM provider, records usage, and
// produces the reply text. The same handler backs both ingress modes
// (long polling and webhooks).
package relay

import (
	"context"
	"fmt"
	"log"

	"github.com/clawdeck/clawdeck/internal/provider"
	"github.com/clawdeck/clawdeck/internal/usage"
)

// displayNames maps provider identifiers to the names shown to chat users
// in apology messages.
var displayNames = map[string]string{
	"anthropic": "Claude",
	"openai":    "GPT",
	"google":    "Gemini",
}

// Handler runs the Router → Provider → Recorder sequence for one message.
// It is stateless across messages: every call carries its own closure of
// chat id and text, and the selected model is re-read per message so a
// model change takes effect on the next message without a restart.
type Handler struct {
	router   *provider.Router
	recorder usage.Recorder
	model    ModelSource
	botID    string
}

// HandlerOpts holds parameters for creating a Handler.
type HandlerOpts struct {
	Router   *provider.Router
	Recorder usage.Recorder // optional; nil disables usage recording
	Model    ModelSource
	BotID    string
}

// NewHandler creates a Handler.
func NewHandler(opts HandlerOpts) (*Handler, error) {
	if opts.Router == nil {
		return nil, fmt.Errorf("relay: router is required")
	}
	if opts.Model == nil {
		return nil, fmt.Errorf("relay: model source is required")
	}
	return &Handler{
		router:   opts.Router,
		recorder: opts.Recorder,
		model:    opts.Model,
		botID:    opts.BotID,
	}, nil
}

// Handle produces the reply text for one inbound message. It never
// returns an empty string and never propagates a provider failure: the
// chat user always receives some text. Provider calls are attempted
// exactly once, bounded by provider.CallTimeout.
func (h *Handler) Handle(ctx context.Context, text string) string {
	// No credentials for any provider: echo in test mode, call nothing,
	// record nothing.
	if h.router.TestMode() {
		return provider.TestModeReply(text)
	}

	model := h.model.SelectedModel()
	p, ok := h.router.Route(model)
	if !ok {
		return provider.FallbackReply(model)
	}

	callCtx, cancel := context.WithTimeout(ctx, provider.CallTimeout)
	defer cancel()

	reply, err := p.Generate(callCtx, text)
	if err != nil {
		log.Printf("relay: %s call failed: %v", p.Name(), err)
		h.record(usage.NewEvent(h.botID, p.Model(), p.Name(), 0, 0, false, err.Error()))
		return apology(p.Name(), err)
	}

	h.record(usage.NewEvent(h.botID, p.Model(), p.Name(), reply.InputTokens, reply.OutputTokens, true, ""))
	return reply.Text
}

// record reports a usage event. Recording is strictly best-effort: any
// failure is logged and must never alter the reply.
func (h *Handler) record(event usage.Event) {
	if h.recorder == nil {
		return
	}
	if err := h.recorder.Record(context.Background(), event); err != nil {
		log.Printf("relay: record usage for bot %s: %v", event.BotID, err)
	}
}

// apology builds the user-facing failure reply, embedding the backend's
// own error text.
func apology(providerName string, err error) string {
	name := displayNames[providerName]
	if name == "" {
		name = providerName
	}
	return fmt.Sprintf("I'm having trouble connecting to %s right now. Error: %v", name, err)
}
