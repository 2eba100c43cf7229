package usage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/clawdeck/clawdeck/internal/models"
	"gorm.io/gorm"
)

// Event is one provider-call attempt, success or failure. Events are
// append-only history; an event is never mutated after creation.
type Event struct {
	BotID         string         `json:"botId"`
	Model         string         `json:"model"`
	Provider      string         `json:"provider"`
	InputTokens   int            `json:"inputTokens"`
	OutputTokens  int            `json:"outputTokens"`
	TotalTokens   int            `json:"totalTokens"`
	EstimatedCost float64        `json:"estimatedCost"`
	RequestType   string         `json:"requestType"`
	Success       bool           `json:"success"`
	ErrorMessage  string         `json:"errorMessage,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// NewEvent builds an Event with the derived fields filled in:
// total = input + output, cost from the static price table, and
// model-version/timestamp metadata.
func NewEvent(botID, model, provider string, inputTokens, outputTokens int, success bool, errorMessage string) Event {
	return Event{
		BotID:         botID,
		Model:         model,
		Provider:      provider,
		InputTokens:   inputTokens,
		OutputTokens:  outputTokens,
		TotalTokens:   inputTokens + outputTokens,
		EstimatedCost: Cost(model, inputTokens, outputTokens),
		RequestType:   "message",
		Success:       success,
		ErrorMessage:  errorMessage,
		Metadata: map[string]any{
			"modelVersion": model,
			"timestamp":    time.Now().UTC().Format(time.RFC3339),
		},
	}
}

// Recorder persists or forwards usage events. Implementations must treat
// recording as best-effort: a recording failure must never abort or alter
// the reply already sent to the chat user.
type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// DBRecorder writes events directly to the api_usages table. Used by the
// webhook-mode control plane, which owns a database connection.
type DBRecorder struct {
	db *gorm.DB
}

// NewDBRecorder creates a DBRecorder.
func NewDBRecorder(db *gorm.DB) (*DBRecorder, error) {
	if db == nil {
		return nil, fmt.Errorf("usage: db is required")
	}
	return &DBRecorder{db: db}, nil
}

// Record implements Recorder.
func (r *DBRecorder) Record(ctx context.Context, event Event) error {
	metadata := ""
	if event.Metadata != nil {
		data, err := json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("usage: marshal metadata: %w", err)
		}
		metadata = string(data)
	}
	row := models.APIUsage{
		BotID:         event.BotID,
		Model:         event.Model,
		Provider:      event.Provider,
		InputTokens:   event.InputTokens,
		OutputTokens:  event.OutputTokens,
		TotalTokens:   event.TotalTokens,
		EstimatedCost: event.EstimatedCost,
		RequestType:   event.RequestType,
		Success:       event.Success,
		ErrorMessage:  event.ErrorMessage,
		Metadata:      metadata,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("usage: record event: %w", err)
	}
	return nil
}

// HTTPRecorder posts events to the control plane's usage-ingestion
// endpoint. Used by poll-mode relay processes, which run detached from
// the platform database.
type HTTPRecorder struct {
	platformURL string
	client      *http.Client
}

// NewHTTPRecorder creates an HTTPRecorder posting to platformURL/api/usage.
func NewHTTPRecorder(platformURL string, client *http.Client) (*HTTPRecorder, error) {
	if platformURL == "" {
		return nil, fmt.Errorf("usage: platform URL is required")
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPRecorder{platformURL: platformURL, client: client}, nil
}

// Record implements Recorder.
func (r *HTTPRecorder) Record(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("usage: marshal event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.platformURL+"/api/usage", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("usage: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("usage: post event: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("usage: ingestion endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
