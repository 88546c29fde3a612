package database

import (
	"errors"

	"gorm.io/gorm"

	"github.com/mcuredefined/backend/internal/models"
)

// MigrateContent ensures the content store tables exist. The user store is
// intentionally absent here: its schema belongs to the external auth service.
func MigrateContent(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}

	return db.AutoMigrate(
		&models.BlogPost{},
		&models.BlogTag{},
		&models.Review{},
		&models.ReviewTag{},
		&models.TimelineEntry{},
	)
}
