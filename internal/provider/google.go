package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"unicode/utf8"
)

// googleModel is the pinned model version for gemini-routed messages.
const googleModel = "gemini-2.0-flash-exp"

const defaultGoogleBaseURL = "https://generativelanguage.googleapis.com"

// Google calls the Gemini generateContent API.
//
// The generateContent response does not carry token counts on this call
// path, so Generate estimates them as ceil(len/4) characters for both the
// prompt and the completion. The estimate is a documented approximation
// and must stay stable for cost accounting.
type Google struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// GoogleOpts holds parameters for creating a Google adapter.
type GoogleOpts struct {
	APIKey  string
	BaseURL string       // for testing; defaults to the public API
	Client  *http.Client // for testing; defaults to http.DefaultClient
}

// NewGoogle creates a Google adapter.
func NewGoogle(opts GoogleOpts) *Google {
	g := &Google{
		apiKey:  opts.APIKey,
		baseURL: opts.BaseURL,
		client:  opts.Client,
	}
	if g.baseURL == "" {
		g.baseURL = defaultGoogleBaseURL
	}
	if g.client == nil {
		g.client = http.DefaultClient
	}
	return g
}

// Name implements Provider.
func (g *Google) Name() string { return "google" }

// Model implements Provider.
func (g *Google) Model() string { return googleModel }

type googleRequest struct {
	Contents []googleContent `json:"contents"`
}

type googleContent struct {
	Parts []googlePart `json:"parts"`
}

type googlePart struct {
	Text string `json:"text"`
}

type googleResponse struct {
	Candidates []struct {
		Content struct {
			Parts []googlePart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate implements Provider via the generateContent endpoint.
func (g *Google) Generate(ctx context.Context, message string) (Reply, error) {
	body, err := json.Marshal(googleRequest{
		Contents: []googleContent{{Parts: []googlePart{{Text: message}}}},
	})
	if err != nil {
		return Reply{}, fmt.Errorf("google: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", g.baseURL, googleModel, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Reply{}, fmt.Errorf("google: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return Reply{}, fmt.Errorf("google: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Reply{}, fmt.Errorf("google: read response: %w", err)
	}

	var parsed googleResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return Reply{}, fmt.Errorf("google: decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return Reply{}, fmt.Errorf("google: %s (status %d)", msg, resp.StatusCode)
	}

	text := ""
	if len(parsed.Candidates) > 0 && len(parsed.Candidates[0].Content.Parts) > 0 {
		text = parsed.Candidates[0].Content.Parts[0].Text
	}
	if text == "" {
		text = emptyReplyText
	}
	return Reply{
		Text:         text,
		InputTokens:  EstimateTokens(message),
		OutputTokens: EstimateTokens(text),
	}, nil
}

// EstimateTokens approximates a token count as ceil(characters/4).
// Characters, not bytes: multi-byte text must not inflate the count.
func EstimateTokens(s string) int {
	return (utf8.RuneCountInString(s) + 3) / 4
}
