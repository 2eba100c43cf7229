package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAnthropic_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "sk-ant-test" {
			t.Errorf("x-api-key = %q", got)
		}
		var req anthropicRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.MaxTokens != 1024 {
			t.Errorf("max_tokens = %d, want 1024", req.MaxTokens)
		}
		if len(req.Messages) != 1 || req.Messages[0].Content != "hi" {
			t.Errorf("messages = %+v", req.Messages)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{{"type": "text", "text": "hello back"}},
			"usage":   map[string]int{"input_tokens": 12, "output_tokens": 34},
		})
	}))
	defer srv.Close()

	a := NewAnthropic(AnthropicOpts{APIKey: "sk-ant-test", BaseURL: srv.URL})
	reply, err := a.Generate(context.Background(), "hi")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if reply.Text != "hello back" {
		t.Errorf("text = %q", reply.Text)
	}
	if reply.InputTokens != 12 || reply.OutputTokens != 34 {
		t.Errorf("tokens = %d/%d, want 12/34", reply.InputTokens, reply.OutputTokens)
	}
}

func TestAnthropic_BackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"type": "authentication_error", "message": "invalid x-api-key"},
		})
	}))
	defer srv.Close()

	a := NewAnthropic(AnthropicOpts{APIKey: "bad", BaseURL: srv.URL})
	_, err := a.Generate(context.Background(), "hi")
	if err == nil {
		t.Fatal("expected error for 401")
	}
	if !strings.Contains(err.Error(), "invalid x-api-key") {
		t.Errorf("error %q should carry backend message", err)
	}
}

func TestAnthropic_EmptyCompletionSubstituted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{},
			"usage":   map[string]int{"input_tokens": 5, "output_tokens": 0},
		})
	}))
	defer srv.Close()

	a := NewAnthropic(AnthropicOpts{APIKey: "k", BaseURL: srv.URL})
	reply, err := a.Generate(context.Background(), "hi")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if reply.Text != emptyReplyText {
		t.Errorf("text = %q, want substituted fallback", reply.Text)
	}
}

func TestOpenAI_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("authorization = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": "sure"}}},
			"usage":   map[string]int{"prompt_tokens": 7, "completion_tokens": 3},
		})
	}))
	defer srv.Close()

	o := NewOpenAI(OpenAIOpts{APIKey: "sk-test", BaseURL: srv.URL})
	reply, err := o.Generate(context.Background(), "hi")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if reply.Text != "sure" {
		t.Errorf("text = %q", reply.Text)
	}
	if reply.InputTokens+reply.OutputTokens != 10 {
		t.Errorf("tokens = %d/%d", reply.InputTokens, reply.OutputTokens)
	}
}

func TestOpenAI_RateLimitError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "Rate limit reached", "type": "rate_limit_error"},
		})
	}))
	defer srv.Close()

	o := NewOpenAI(OpenAIOpts{APIKey: "k", BaseURL: srv.URL})
	_, err := o.Generate(context.Background(), "hi")
	if err == nil {
		t.Fatal("expected error for 429")
	}
	if !strings.Contains(err.Error(), "Rate limit reached") {
		t.Errorf("error %q should carry backend message", err)
	}
}

func TestGoogle_Generate_EstimatesTokens(t *testing.T) {
	completion := strings.Repeat("b", 80)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "gemini-2.0-flash-exp") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("key"); got != "g-key" {
			t.Errorf("key = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]string{{"text": completion}}}},
			},
		})
	}))
	defer srv.Close()

	g := NewGoogle(GoogleOpts{APIKey: "g-key", BaseURL: srv.URL})
	prompt := strings.Repeat("a", 40)
	reply, err := g.Generate(context.Background(), prompt)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if reply.Text != completion {
		t.Errorf("text = %q", reply.Text)
	}
	if reply.InputTokens != 10 {
		t.Errorf("input tokens = %d, want 10 (40 chars / 4)", reply.InputTokens)
	}
	if reply.OutputTokens != 20 {
		t.Errorf("output tokens = %d, want 20 (80 chars / 4)", reply.OutputTokens)
	}
}

func TestGoogle_BackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "API key not valid", "status": "INVALID_ARGUMENT"},
		})
	}))
	defer srv.Close()

	g := NewGoogle(GoogleOpts{APIKey: "bad", BaseURL: srv.URL})
	_, err := g.Generate(context.Background(), "hi")
	if err == nil {
		t.Fatal("expected error for 400")
	}
	if !strings.Contains(err.Error(), "API key not valid") {
		t.Errorf("error %q should carry backend message", err)
	}
}

func TestEstimateTokens_RoundsUp(t *testing.T) {
	tests := []struct {
		length, want int
	}{
		{0, 0}, {1, 1}, {3, 1}, {4, 1}, {5, 2}, {40, 10}, {80, 20}, {81, 21},
	}
	for _, tt := range tests {
		s := strings.Repeat("x", tt.length)
		if got := EstimateTokens(s); got != tt.want {
			t.Errorf("EstimateTokens(len %d) = %d, want %d", tt.length, got, tt.want)
		}
	}
}

func TestEstimateTokens_CountsCharactersNotBytes(t *testing.T) {
	tests := []struct {
		s    string
		want int
	}{
		{"ありがとう", 2},                      // 5 chars, 15 bytes
		{"héllo", 2},                       // 5 chars, 6 bytes
		{"🙂🙂🙂🙂", 1},                        // 4 chars, 16 bytes
		{strings.Repeat("я", 40), 10},      // matches the 40-char ASCII case
		{"привет мир, как дела сегодня", 7}, // 28 chars
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.s); got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.s, got, tt.want)
		}
	}
}
