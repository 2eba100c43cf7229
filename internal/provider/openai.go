package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// openaiModel is the pinned model version for gpt-routed messages.
const openaiModel = "gpt-5"

const defaultOpenAIBaseURL = "https://api.openai.com"

// OpenAI calls the OpenAI Chat Completions API.
type OpenAI struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// OpenAIOpts holds parameters for creating an OpenAI adapter.
type OpenAIOpts struct {
	APIKey  string
	BaseURL string       // for testing; defaults to the public API
	Client  *http.Client // for testing; defaults to http.DefaultClient
}

// NewOpenAI creates an OpenAI adapter.
func NewOpenAI(opts OpenAIOpts) *OpenAI {
	o := &OpenAI{
		apiKey:  opts.APIKey,
		baseURL: opts.BaseURL,
		client:  opts.Client,
	}
	if o.baseURL == "" {
		o.baseURL = defaultOpenAIBaseURL
	}
	if o.client == nil {
		o.client = http.DefaultClient
	}
	return o
}

// Name implements Provider.
func (o *OpenAI) Name() string { return "openai" }

// Model implements Provider.
func (o *OpenAI) Model() string { return openaiModel }

type openaiRequest struct {
	Model     string          `json:"model"`
	Messages  []openaiMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Generate implements Provider via the Chat Completions API.
func (o *OpenAI) Generate(ctx context.Context, message string) (Reply, error) {
	body, err := json.Marshal(openaiRequest{
		Model:     openaiModel,
		Messages:  []openaiMessage{{Role: "user", Content: message}},
		MaxTokens: maxOutputTokens,
	})
	if err != nil {
		return Reply{}, fmt.Errorf("openai: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Reply{}, fmt.Errorf("openai: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return Reply{}, fmt.Errorf("openai: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Reply{}, fmt.Errorf("openai: read response: %w", err)
	}

	var parsed openaiResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return Reply{}, fmt.Errorf("openai: decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return Reply{}, fmt.Errorf("openai: %s (status %d)", msg, resp.StatusCode)
	}

	text := ""
	if len(parsed.Choices) > 0 {
		text = parsed.Choices[0].Message.Content
	}
	if text == "" {
		text = emptyReplyText
	}
	return Reply{
		Text:         text,
		InputTokens:  parsed.Usage.PromptTokens,
		OutputTokens: parsed.Usage.CompletionTokens,
	}, nil
}
