package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// anthropicModel is the pinned model version for claude-routed messages.
const anthropicModel = "claude-opus-4-20250514"

const defaultAnthropicBaseURL = "https://api.anthropic.com"

// Anthropic calls the Anthropic Messages API.
type Anthropic struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// AnthropicOpts holds parameters for creating an Anthropic adapter.
type AnthropicOpts struct {
	APIKey  string
	BaseURL string       // for testing; defaults to the public API
	Client  *http.Client // for testing; defaults to http.DefaultClient
}

// NewAnthropic creates an Anthropic adapter. The key may be empty; the
// backend then rejects the call and the failure surfaces as a normal
// provider error.
func NewAnthropic(opts AnthropicOpts) *Anthropic {
	a := &Anthropic{
		apiKey:  opts.APIKey,
		baseURL: opts.BaseURL,
		client:  opts.Client,
	}
	if a.baseURL == "" {
		a.baseURL = defaultAnthropicBaseURL
	}
	if a.client == nil {
		a.client = http.DefaultClient
	}
	return a
}

// Name implements Provider.
func (a *Anthropic) Name() string { return "anthropic" }

// Model implements Provider.
func (a *Anthropic) Model() string { return anthropicModel }

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate implements Provider via the Messages API.
func (a *Anthropic) Generate(ctx context.Context, message string) (Reply, error) {
	body, err := json.Marshal(anthropicRequest{
		Model:     anthropicModel,
		MaxTokens: maxOutputTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: message}},
	})
	if err != nil {
		return Reply{}, fmt.Errorf("anthropic: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return Reply{}, fmt.Errorf("anthropic: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := a.client.Do(req)
	if err != nil {
		return Reply{}, fmt.Errorf("anthropic: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Reply{}, fmt.Errorf("anthropic: read response: %w", err)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return Reply{}, fmt.Errorf("anthropic: decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return Reply{}, fmt.Errorf("anthropic: %s (status %d)", msg, resp.StatusCode)
	}

	text := ""
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		text = emptyReplyText
	}
	return Reply{
		Text:         text,
		InputTokens:  parsed.Usage.InputTokens,
		OutputTokens: parsed.Usage.OutputTokens,
	}, nil
}
