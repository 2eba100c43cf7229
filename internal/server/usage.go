package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/clawdeck/clawdeck/internal/models"
)

// ingestPayload is the body accepted by POST /api/usage. Field names
// match what usage.HTTPRecorder sends from poll-mode relays.
type ingestPayload struct {
	BotID         string         `json:"botId"`
	Model         string         `json:"model"`
	Provider      string         `json:"provider"`
	InputTokens   int            `json:"inputTokens"`
	OutputTokens  int            `json:"outputTokens"`
	TotalTokens   int            `json:"totalTokens"`
	EstimatedCost float64        `json:"estimatedCost"`
	RequestType   string         `json:"requestType"`
	Success       *bool          `json:"success"`
	ErrorMessage  string         `json:"errorMessage"`
	Metadata      map[string]any `json:"metadata"`
}

// handleUsageIngest appends one usage row. The reported numbers are
// stored as sent; the relay that made the provider call is the
// authority on token counts and cost.
func (s *Server) handleUsageIngest(c *gin.Context) {
	var p ingestPayload
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if p.BotID == "" || p.Model == "" || p.Provider == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required fields: botId, model, provider"})
		return
	}

	row := models.APIUsage{
		BotID:         p.BotID,
		Model:         p.Model,
		Provider:      p.Provider,
		InputTokens:   p.InputTokens,
		OutputTokens:  p.OutputTokens,
		TotalTokens:   p.TotalTokens,
		EstimatedCost: p.EstimatedCost,
		RequestType:   p.RequestType,
		Success:       p.Success == nil || *p.Success,
		ErrorMessage:  p.ErrorMessage,
	}
	if row.RequestType == "" {
		row.RequestType = "message"
	}
	if p.Metadata != nil {
		data, err := jsonMarshal(p.Metadata)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		row.Metadata = data
	}

	if err := s.db.WithContext(c.Request.Context()).Create(&row).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to log usage", "details": err.Error()})
		return
	}

	s.metrics.usageIngested.Inc()
	c.JSON(http.StatusOK, gin.H{"success": true, "usageId": row.ID})
}

// UsageStat is one aggregated row of GET /api/usage, grouped by model
// and provider.
type UsageStat struct {
	Model         string  `json:"model"`
	Provider      string  `json:"provider"`
	Requests      int64   `json:"requests"`
	InputTokens   int64   `json:"inputTokens"`
	OutputTokens  int64   `json:"outputTokens"`
	TotalTokens   int64   `json:"totalTokens"`
	EstimatedCost float64 `json:"estimatedCost"`
}

// handleUsageStats returns aggregated and recent usage, optionally
// filtered by botId and a createdAt window.
func (s *Server) handleUsageStats(c *gin.Context) {
	query := s.db.WithContext(c.Request.Context()).Model(&models.APIUsage{})
	if botID := c.Query("botId"); botID != "" {
		query = query.Where("bot_id = ?", botID)
	}
	if start := c.Query("startDate"); start != "" {
		t, err := parseDate(start)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid startDate"})
			return
		}
		query = query.Where("created_at >= ?", t)
	}
	if end := c.Query("endDate"); end != "" {
		t, err := parseDate(end)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid endDate"})
			return
		}
		query = query.Where("created_at <= ?", t)
	}

	var stats []UsageStat
	if err := query.Session(&gorm.Session{}).
		Select("model, provider, count(*) as requests, sum(input_tokens) as input_tokens, sum(output_tokens) as output_tokens, sum(total_tokens) as total_tokens, sum(estimated_cost) as estimated_cost").
		Group("model, provider").
		Find(&stats).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch usage stats", "details": err.Error()})
		return
	}

	var recent []models.APIUsage
	if err := query.Session(&gorm.Session{}).
		Order("created_at desc").
		Limit(100).
		Find(&recent).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch usage stats", "details": err.Error()})
		return
	}

	var totalCost float64
	for _, st := range stats {
		totalCost += st.EstimatedCost
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"stats":       stats,
		"recentUsage": recent,
		"totalCost":   totalCost,
	})
}

func jsonMarshal(v map[string]any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// parseDate accepts RFC 3339 timestamps or bare dates.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
