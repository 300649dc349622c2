package domain

import (
	"github.com/yungbote/cropyield-backend/internal/domain/dataset"
	"github.com/yungbote/cropyield-backend/internal/domain/registry"
)

type (
	CropRecord  = dataset.CropRecord
	UploadBatch = dataset.UploadBatch

	ModelSnapshot = registry.ModelSnapshot
	ActiveModel   = registry.ActiveModel
)
