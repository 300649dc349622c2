package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/cropyield-backend/internal/data/repos/dataset"
	"github.com/yungbote/cropyield-backend/internal/data/repos/registry"
	"github.com/yungbote/cropyield-backend/internal/platform/logger"
)

type CropRecordRepo = dataset.CropRecordRepo
type UploadBatchRepo = dataset.UploadBatchRepo
type ModelSnapshotRepo = registry.ModelSnapshotRepo

func NewCropRecordRepo(db *gorm.DB, log *logger.Logger) CropRecordRepo {
	return dataset.NewCropRecordRepo(db, log)
}

func NewUploadBatchRepo(db *gorm.DB, log *logger.Logger) UploadBatchRepo {
	return dataset.NewUploadBatchRepo(db, log)
}

func NewModelSnapshotRepo(db *gorm.DB, log *logger.Logger) ModelSnapshotRepo {
	return registry.NewModelSnapshotRepo(db, log)
}
