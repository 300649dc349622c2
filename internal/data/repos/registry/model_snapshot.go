package registry

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/cropyield-backend/internal/domain"
	"github.com/yungbote/cropyield-backend/internal/pkg/dbctx"
	domainerrors "github.com/yungbote/cropyield-backend/internal/pkg/errors"
	"github.com/yungbote/cropyield-backend/internal/platform/logger"
)

type ModelSnapshotRepo interface {
	Create(dbc dbctx.Context, row *types.ModelSnapshot) error
	NextVersion(dbc dbctx.Context, key string) (int, error)
	GetByVersion(dbc dbctx.Context, key string, version int) (*types.ModelSnapshot, error)
	ListByKey(dbc dbctx.Context, key string, limit int) ([]*types.ModelSnapshot, error)
	GetActive(dbc dbctx.Context, key string) (*types.ActiveModel, error)
	SwapActive(dbc dbctx.Context, key string, expectedVersion int, next *types.ModelSnapshot) error
}

type modelSnapshotRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewModelSnapshotRepo(db *gorm.DB, baseLog *logger.Logger) ModelSnapshotRepo {
	return &modelSnapshotRepo{db: db, log: baseLog.With("repo", "ModelSnapshotRepo")}
}

// Create inserts a new snapshot. A duplicate (model_key, version) surfaces as gorm.ErrDuplicatedKey.
func (r *modelSnapshotRepo) Create(dbc dbctx.Context, row *types.ModelSnapshot) error {
	if row == nil || strings.TrimSpace(row.ModelKey) == "" {
		return nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return dbc.DB(r.db).Create(row).Error
}

func (r *modelSnapshotRepo) NextVersion(dbc dbctx.Context, key string) (int, error) {
	var latest int
	if err := dbc.DB(r.db).
		Model(&types.ModelSnapshot{}).
		Where("model_key = ?", key).
		Select("COALESCE(MAX(version), 0)").
		Scan(&latest).Error; err != nil {
		return 0, err
	}
	return latest + 1, nil
}

func (r *modelSnapshotRepo) GetByVersion(dbc dbctx.Context, key string, version int) (*types.ModelSnapshot, error) {
	row := &types.ModelSnapshot{}
	if err := dbc.DB(r.db).
		Where("model_key = ? AND version = ?", key, version).
		First(row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return row, nil
}

func (r *modelSnapshotRepo) ListByKey(dbc dbctx.Context, key string, limit int) ([]*types.ModelSnapshot, error) {
	key = strings.TrimSpace(key)
	out := []*types.ModelSnapshot{}
	if key == "" {
		return out, nil
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if err := dbc.DB(r.db).
		Where("model_key = ?", key).
		Order("version DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *modelSnapshotRepo) GetActive(dbc dbctx.Context, key string) (*types.ActiveModel, error) {
	row := &types.ActiveModel{}
	if err := dbc.DB(r.db).Where("model_key = ?", key).First(row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return row, nil
}

// SwapActive moves the active pointer from expectedVersion (0 = no active model)
// to next. It fails with ErrConflict when the pointer moved in the meantime.
func (r *modelSnapshotRepo) SwapActive(dbc dbctx.Context, key string, expectedVersion int, next *types.ModelSnapshot) error {
	if next == nil {
		return domainerrors.ErrNotFound
	}
	now := time.Now().UTC()
	err := dbc.DB(r.db).Transaction(func(tx *gorm.DB) error {
		var res *gorm.DB
		if expectedVersion == 0 {
			res = tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&types.ActiveModel{
				ModelKey:   key,
				SnapshotID: next.ID,
				Version:    next.Version,
				UpdatedAt:  now,
			})
		} else {
			res = tx.Model(&types.ActiveModel{}).
				Where("model_key = ? AND version = ?", key, expectedVersion).
				Updates(map[string]interface{}{
					"snapshot_id": next.ID,
					"version":     next.Version,
					"updated_at":  now,
				})
		}
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domainerrors.ErrConflict
		}
		if err := tx.Model(&types.ModelSnapshot{}).
			Where("model_key = ? AND active = ?", key, true).
			Update("active", false).Error; err != nil {
			return err
		}
		return tx.Model(&types.ModelSnapshot{}).
			Where("id = ?", next.ID).
			Update("active", true).Error
	})
	if err != nil {
		return err
	}
	r.log.Info("active model swapped", "model_key", key, "from", expectedVersion, "to", next.Version)
	return nil
}
