package provider

import (
	"fmt"
	"strings"
)

// testModeTemplate is the canned reply used when no provider credential is
// configured at all. It lets a bot be deployed and verified end-to-end
// before any API key is attached.
const testModeTemplate = "🤖 Test Mode Response\n\nYou said: %q\n\nThis is a test response. The bot is working! Add API keys to enable AI responses."

// routeRule maps a case-insensitive substring of the model identifier to
// a provider name. Rules are evaluated in order; first match wins. The
// substring match is a deliberate simplicity choice: the model identifier
// is an opaque routing key, not a validated enum.
type routeRule struct {
	substr   string
	provider string
}

var routeRules = []routeRule{
	{"claude", "anthropic"},
	{"gpt", "openai"},
	{"gemini", "google"},
}

// Router selects the Provider adapter for a model identifier. Adapters are
// constructed once and reused; routing itself is a pure lookup with no
// side effects.
type Router struct {
	creds     Credentials
	providers map[string]Provider
}

// RouterOpts holds parameters for creating a Router.
type RouterOpts struct {
	Credentials Credentials
	// Providers overrides the constructed adapters, keyed by provider
	// name. Used by tests to inject fakes.
	Providers map[string]Provider
}

// NewRouter creates a Router with one adapter per backend.
func NewRouter(opts RouterOpts) *Router {
	providers := opts.Providers
	if providers == nil {
		providers = map[string]Provider{
			"anthropic": NewAnthropic(AnthropicOpts{APIKey: opts.Credentials.Anthropic}),
			"openai":    NewOpenAI(OpenAIOpts{APIKey: opts.Credentials.OpenAI}),
			"google":    NewGoogle(GoogleOpts{APIKey: opts.Credentials.Google}),
		}
	}
	return &Router{creds: opts.Credentials, providers: providers}
}

// TestMode reports whether the router should bypass all adapters and echo.
// True exactly when no provider credential exists for any backend.
func (r *Router) TestMode() bool {
	return r.creds.Empty()
}

// TestModeReply builds the echo reply embedding the original message text.
func TestModeReply(message string) string {
	return fmt.Sprintf(testModeTemplate, message)
}

// FallbackReply is the deterministic text response for a model identifier
// that matches no routing rule. It is not an error.
func FallbackReply(model string) string {
	return fmt.Sprintf("Model %s is not configured properly.", model)
}

// Route resolves a model identifier to its Provider. A missing credential
// for the selected provider is not a routing failure: the adapter is still
// returned and the call is allowed to fail at the backend. ok is false
// only when no rule matches, in which case the caller should send
// FallbackReply.
func (r *Router) Route(model string) (Provider, bool) {
	lower := strings.ToLower(model)
	for _, rule := range routeRules {
		if strings.Contains(lower, rule.substr) {
			return r.providers[rule.provider], true
		}
	}
	return nil, false
}
