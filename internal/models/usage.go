package models

import "time"

// Provider names recorded on usage rows.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGoogle    = "google"
)

// APIUsage is one append-only record per attempted provider call,
// success or failure. Rows are never mutated after creation.
type APIUsage struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	BotID         string    `gorm:"size:36;not null;index" json:"botId"`
	Model         string    `gorm:"size:128;not null" json:"model"`
	Provider      string    `gorm:"size:16;not null" json:"provider"`
	InputTokens   int       `gorm:"default:0" json:"inputTokens"`
	OutputTokens  int       `gorm:"default:0" json:"outputTokens"`
	TotalTokens   int       `gorm:"default:0" json:"totalTokens"`
	EstimatedCost float64   `json:"estimatedCost"`
	RequestType   string    `gorm:"size:32;default:message" json:"requestType"`
	Success       bool      `gorm:"default:true" json:"success"`
	ErrorMessage  string    `gorm:"type:text" json:"errorMessage,omitempty"`
	Metadata      string    `gorm:"type:json" json:"metadata,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}
