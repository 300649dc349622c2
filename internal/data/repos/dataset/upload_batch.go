package dataset

import (
	"gorm.io/gorm"

	types "github.com/yungbote/cropyield-backend/internal/domain"
	"github.com/yungbote/cropyield-backend/internal/pkg/dbctx"
	"github.com/yungbote/cropyield-backend/internal/platform/logger"
)

type UploadBatchRepo interface {
	Create(dbc dbctx.Context, row *types.UploadBatch) error
	List(dbc dbctx.Context, limit int) ([]*types.UploadBatch, error)
}

type uploadBatchRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUploadBatchRepo(db *gorm.DB, baseLog *logger.Logger) UploadBatchRepo {
	return &uploadBatchRepo{db: db, log: baseLog.With("repo", "UploadBatchRepo")}
}

func (r *uploadBatchRepo) Create(dbc dbctx.Context, row *types.UploadBatch) error {
	if row == nil {
		return nil
	}
	return dbc.DB(r.db).Create(row).Error
}

func (r *uploadBatchRepo) List(dbc dbctx.Context, limit int) ([]*types.UploadBatch, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	out := []*types.UploadBatch{}
	if err := dbc.DB(r.db).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
