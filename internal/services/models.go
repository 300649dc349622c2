package services

import (
	"context"
	"time"

	"gorm.io/datatypes"

	types "github.com/yungbote/cropyield-backend/internal/domain"
	"github.com/yungbote/cropyield-backend/internal/observability"
	domainerrors "github.com/yungbote/cropyield-backend/internal/pkg/errors"
	"github.com/yungbote/cropyield-backend/internal/platform/logger"
)

type ModelInfo struct {
	Version   int            `json:"version"`
	Active    bool           `json:"active"`
	ModelType string         `json:"model_type"`
	Target    string         `json:"target"`
	Metrics   datatypes.JSON `json:"metrics"`
	Params    datatypes.JSON `json:"params"`
	Schema    datatypes.JSON `json:"schema"`
	CreatedAt time.Time      `json:"created_at"`
}

type ModelList struct {
	Models []ModelInfo `json:"models"`
	// ActiveVersion is 0 when no model is active.
	ActiveVersion int `json:"active_version"`
}

type ModelService interface {
	List(ctx context.Context, limit int) (*ModelList, error)
	Activate(ctx context.Context, version int) (*types.ModelSnapshot, error)
}

type modelService struct {
	log      *logger.Logger
	registry ModelRegistry
}

func NewModelService(log *logger.Logger, registry ModelRegistry) ModelService {
	return &modelService{log: log.With("service", "ModelService"), registry: registry}
}

func (s *modelService) List(ctx context.Context, limit int) (*ModelList, error) {
	snaps, err := s.registry.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := &ModelList{Models: make([]ModelInfo, 0, len(snaps))}
	for _, sn := range snaps {
		if sn.Active {
			out.ActiveVersion = sn.Version
		}
		out.Models = append(out.Models, ModelInfo{
			Version:   sn.Version,
			Active:    sn.Active,
			ModelType: sn.ModelType,
			Target:    sn.Target,
			Metrics:   sn.MetricsJSON,
			Params:    sn.ParamsJSON,
			Schema:    sn.SchemaJSON,
			CreatedAt: sn.CreatedAt,
		})
	}
	return out, nil
}

func (s *modelService) Activate(ctx context.Context, version int) (*types.ModelSnapshot, error) {
	if version < 1 {
		return nil, domainerrors.Validation("version", "must be a positive integer")
	}
	snap, err := s.registry.Activate(ctx, version)
	if err != nil {
		return nil, err
	}
	observability.Current().SetActiveModel(snap.Version)
	s.log.Info("model version activated", "version", version)
	return snap, nil
}
