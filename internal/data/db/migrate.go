package db

import (
	"fmt"

	types "github.com/yungbote/cropyield-backend/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		// Dataset
		&types.CropRecord{},
		&types.UploadBatch{},

		// Model registry
		&types.ModelSnapshot{},
		&types.ActiveModel{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
