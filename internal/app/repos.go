package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/cropyield-backend/internal/data/repos"
	"github.com/yungbote/cropyield-backend/internal/platform/logger"
)

type Repos struct {
	Records   repos.CropRecordRepo
	Uploads   repos.UploadBatchRepo
	Snapshots repos.ModelSnapshotRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Records:   repos.NewCropRecordRepo(db, log),
		Uploads:   repos.NewUploadBatchRepo(db, log),
		Snapshots: repos.NewModelSnapshotRepo(db, log),
	}
}
