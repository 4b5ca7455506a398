package db

import (
	"fmt"

	types "github.com/leasingborsen/listing-reconciler/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	// =========================
	// Reference data, listings + offers, then extraction sessions, staged records, changes
	// =========================
	if err := db.AutoMigrate(types.Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
