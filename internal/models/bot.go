// Package models defines the GORM entities persisted by the control plane.
package models

import "time"

// Bot status values. Only a running bot processes inbound messages;
// every other status acknowledges and drops.
const (
	StatusDeploying = "deploying"
	StatusRunning   = "running"
	StatusPaused    = "paused"
	StatusError     = "error"
)

// Bot identifies one deployed relay instance. The bot token never
// leaves the database through the API: it is excluded from JSON.
type Bot struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	AccountID     string     `gorm:"size:36;not null;index" json:"accountId"`
	Handle        string     `gorm:"size:64" json:"handle"` // bot username on the chat platform
	BotToken      string     `gorm:"size:128;not null" json:"-"`
	Platform      string     `gorm:"size:16;default:telegram" json:"platform"`
	SelectedModel string     `gorm:"size:128" json:"selectedModel"`
	Status        string     `gorm:"size:16;default:deploying;index" json:"status"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	DeployedAt    *time.Time `json:"deployedAt"`

	Usage []APIUsage `gorm:"foreignKey:BotID" json:"-"`
}

// IsRunning reports whether the bot should process inbound messages.
func (b *Bot) IsRunning() bool {
	return b.Status == StatusRunning
}

// statusTransitions encodes the relay lifecycle: deploying → running ⇄ paused,
// and running|paused → error on unrecoverable configuration loss. Deletion is
// a row removal, not a status, so it is not listed here.
var statusTransitions = map[string][]string{
	StatusDeploying: {StatusRunning, StatusError},
	StatusRunning:   {StatusPaused, StatusError},
	StatusPaused:    {StatusRunning, StatusError},
	StatusError:     {StatusDeploying},
}

// CanTransition reports whether moving from the bot's current status to
// next is a legal lifecycle transition.
func (b *Bot) CanTransition(next string) bool {
	for _, s := range statusTransitions[b.Status] {
		if s == next {
			return true
		}
	}
	return false
}

// ValidStatus reports whether s is a known bot status.
func ValidStatus(s string) bool {
	switch s {
	case StatusDeploying, StatusRunning, StatusPaused, StatusError:
		return true
	}
	return false
}
