package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/dadav/ticktick/internal/models"
)

// AutoMigrate runs database schema migrations for all models.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.WorkSession{},
		&models.PausePeriod{},
		&models.TimerState{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
