package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/clawdeck/clawdeck/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openUsageTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Bot{}, &models.APIUsage{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

func TestCost_KnownModel(t *testing.T) {
	// $15/1M input, $75/1M output: 1000 in + 500 out = 0.015 + 0.0375.
	got := Cost("claude-opus-4-20250514", 1000, 500)
	if math.Abs(got-0.0525) > 1e-9 {
		t.Errorf("cost = %v, want 0.0525", got)
	}
}

func TestCost_FreeTierModel(t *testing.T) {
	if got := Cost("gemini-2.0-flash-exp", 100000, 100000); got != 0 {
		t.Errorf("free-tier cost = %v, want 0", got)
	}
}

func TestCost_UnknownModelUsesDefaultRate(t *testing.T) {
	// Default rate is $1/1M input, $3/1M output.
	got := Cost("llama-3-70b", 1_000_000, 1_000_000)
	if math.Abs(got-4.0) > 1e-9 {
		t.Errorf("default cost = %v, want 4.0", got)
	}
}

func TestNewEvent_DerivedFields(t *testing.T) {
	ev := NewEvent("bot-1", "gpt-5", "openai", 100, 200, true, "")
	if ev.TotalTokens != 300 {
		t.Errorf("total = %d, want input+output = 300", ev.TotalTokens)
	}
	if ev.RequestType != "message" {
		t.Errorf("request type = %q", ev.RequestType)
	}
	if ev.Metadata["modelVersion"] != "gpt-5" {
		t.Errorf("metadata = %v", ev.Metadata)
	}
	if _, err := time.Parse(time.RFC3339, ev.Metadata["timestamp"].(string)); err != nil {
		t.Errorf("metadata timestamp: %v", err)
	}
}

func TestNewEvent_Failure(t *testing.T) {
	ev := NewEvent("bot-1", "gpt-5", "openai", 0, 0, false, "connection refused")
	if ev.Success {
		t.Error("success should be false")
	}
	if ev.ErrorMessage != "connection refused" {
		t.Errorf("error message = %q", ev.ErrorMessage)
	}
	if ev.TotalTokens != 0 || ev.EstimatedCost != 0 {
		t.Errorf("failed event should carry zero tokens and cost, got %d/%v", ev.TotalTokens, ev.EstimatedCost)
	}
}

func TestDBRecorder_RoundTrip(t *testing.T) {
	db := openUsageTestDB(t)
	rec, err := NewDBRecorder(db)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}

	ev := NewEvent("bot-7", "claude-opus-4-20250514", "anthropic", 1000, 500, true, "")
	if err := rec.Record(context.Background(), ev); err != nil {
		t.Fatalf("record: %v", err)
	}

	var row models.APIUsage
	if err := db.First(&row, "bot_id = ?", "bot-7").Error; err != nil {
		t.Fatalf("load row: %v", err)
	}
	if row.TotalTokens != 1500 {
		t.Errorf("total tokens = %d, want 1500", row.TotalTokens)
	}
	if math.Abs(row.EstimatedCost-0.0525) > 1e-9 {
		t.Errorf("cost = %v, want 0.0525", row.EstimatedCost)
	}
	var metadata map[string]any
	if err := json.Unmarshal([]byte(row.Metadata), &metadata); err != nil {
		t.Fatalf("metadata not valid JSON: %v", err)
	}
}

func TestHTTPRecorder_PostsEvent(t *testing.T) {
	var got Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/usage" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		fmt.Fprintln(w, `{"success":true}`)
	}))
	defer srv.Close()

	rec, err := NewHTTPRecorder(srv.URL, nil)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	ev := NewEvent("bot-2", "gpt-5", "openai", 10, 20, true, "")
	if err := rec.Record(context.Background(), ev); err != nil {
		t.Fatalf("record: %v", err)
	}
	if got.BotID != "bot-2" || got.TotalTokens != 30 {
		t.Errorf("posted event = %+v", got)
	}
}

func TestHTTPRecorder_RejectionIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	rec, _ := NewHTTPRecorder(srv.URL, nil)
	if err := rec.Record(context.Background(), Event{}); err == nil {
		t.Fatal("expected error for 400 response")
	}
}

// countingRecorder counts Record calls and optionally fails.
type countingRecorder struct {
	mu    sync.Mutex
	count int
	err   error
}

func (c *countingRecorder) Record(ctx context.Context, event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	return c.err
}

func (c *countingRecorder) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func TestAsyncRecorder_DeliversInBackground(t *testing.T) {
	inner := &countingRecorder{}
	a := NewAsyncRecorder(inner)

	for i := 0; i < 5; i++ {
		if err := a.Record(context.Background(), Event{BotID: "bot-1"}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	a.Close()

	if got := inner.calls(); got != 5 {
		t.Errorf("delivered = %d, want 5", got)
	}
}

func TestAsyncRecorder_RecordAfterCloseIsDropped(t *testing.T) {
	inner := &countingRecorder{}
	a := NewAsyncRecorder(inner)
	a.Close()

	// A late Record must drop the event quietly, not panic on the
	// closed queue.
	if err := a.Record(context.Background(), Event{BotID: "bot-1"}); err != nil {
		t.Fatalf("record after close: %v", err)
	}
	if got := inner.calls(); got != 0 {
		t.Errorf("delivered = %d, want 0", got)
	}
}

func TestAsyncRecorder_InnerFailureIsSwallowed(t *testing.T) {
	inner := &countingRecorder{err: fmt.Errorf("ingestion down")}
	a := NewAsyncRecorder(inner)

	// Record must not surface the inner failure.
	if err := a.Record(context.Background(), Event{BotID: "bot-1"}); err != nil {
		t.Fatalf("record returned error: %v", err)
	}
	a.Close()
	if inner.calls() != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls())
	}
}
