package dataset

import (
	"gorm.io/gorm"

	types "github.com/yungbote/cropyield-backend/internal/domain"
	"github.com/yungbote/cropyield-backend/internal/pkg/dbctx"
	"github.com/yungbote/cropyield-backend/internal/platform/logger"
)

const insertBatchSize = 500

type CropRecordRepo interface {
	InsertMany(dbc dbctx.Context, rows []*types.CropRecord) (int, error)
	FetchAll(dbc dbctx.Context) ([]*types.CropRecord, error)
	Count(dbc dbctx.Context) (int64, error)
	Clear(dbc dbctx.Context) (int64, error)
}

type cropRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCropRecordRepo(db *gorm.DB, baseLog *logger.Logger) CropRecordRepo {
	return &cropRecordRepo{db: db, log: baseLog.With("repo", "CropRecordRepo")}
}

// InsertMany appends rows in a single transaction; either all rows land or none do.
func (r *cropRecordRepo) InsertMany(dbc dbctx.Context, rows []*types.CropRecord) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	t := dbc.DB(r.db)
	err := t.Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(rows, insertBatchSize).Error
	})
	if err != nil {
		return 0, err
	}
	r.log.Debug("inserted crop records", "rows", len(rows))
	return len(rows), nil
}

func (r *cropRecordRepo) FetchAll(dbc dbctx.Context) ([]*types.CropRecord, error) {
	out := []*types.CropRecord{}
	if err := dbc.DB(r.db).Order("id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *cropRecordRepo) Count(dbc dbctx.Context) (int64, error) {
	var n int64
	if err := dbc.DB(r.db).Model(&types.CropRecord{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *cropRecordRepo) Clear(dbc dbctx.Context) (int64, error) {
	res := dbc.DB(r.db).Where("1 = 1").Delete(&types.CropRecord{})
	if res.Error != nil {
		return 0, res.Error
	}
	r.log.Info("dataset cleared", "rows_deleted", res.RowsAffected)
	return res.RowsAffected, nil
}
