package relay

import (
	"log"

	"github.com/clawdeck/clawdeck/internal/models"
	"gorm.io/gorm"
)

// ModelSource resolves the selected model identifier for the current
// message. Implementations must be safe for concurrent use; the handler
// calls SelectedModel once per inbound message rather than caching the
// identifier at startup.
type ModelSource interface {
	SelectedModel() string
}

// StaticModel is a fixed model identifier, used by relay processes that
// receive their model through the environment and are redeployed on change.
type StaticModel string

// SelectedModel implements ModelSource.
func (s StaticModel) SelectedModel() string { return string(s) }

// DBModelSource re-reads the bot row on every message, so a model update
// on the control plane takes effect on the next message without a
// process restart. On a read failure it falls back to the last known
// identifier rather than dropping the message.
type DBModelSource struct {
	db       *gorm.DB
	botID    string
	fallback string
}

// NewDBModelSource creates a DBModelSource with an initial fallback model.
func NewDBModelSource(db *gorm.DB, botID, fallback string) *DBModelSource {
	return &DBModelSource{db: db, botID: botID, fallback: fallback}
}

// SelectedModel implements ModelSource.
func (s *DBModelSource) SelectedModel() string {
	var bot models.Bot
	if err := s.db.Select("selected_model").First(&bot, "id = ?", s.botID).Error; err != nil {
		log.Printf("relay: read model for bot %s: %v", s.botID, err)
		return s.fallback
	}
	if bot.SelectedModel == "" {
		return s.fallback
	}
	return bot.SelectedModel
}
