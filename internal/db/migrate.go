package db

import (
	"fmt"

	"github.com/clawdeck/clawdeck/internal/models"
	"gorm.io/gorm"
)

// AllModels returns every GORM model the control plane persists.
func AllModels() []interface{} {
	return []interface{}{
		&models.Bot{},
		&models.APIUsage{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
