package services

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/cropyield-backend/internal/domain/dataset"
	"github.com/yungbote/cropyield-backend/internal/ml"
	"github.com/yungbote/cropyield-backend/internal/normalize"
	"github.com/yungbote/cropyield-backend/internal/observability"
	domainerrors "github.com/yungbote/cropyield-backend/internal/pkg/errors"
	"github.com/yungbote/cropyield-backend/internal/platform/logger"
)

type Prediction struct {
	Prediction   float64 `json:"prediction"`
	ModelVersion int     `json:"model_version"`
	ModelType    string  `json:"model_type"`
	Target       string  `json:"target"`
}

type PredictionService interface {
	Predict(ctx context.Context, record map[string]any) (*Prediction, error)
}

type predictionService struct {
	log        *logger.Logger
	normalizer *normalize.Normalizer
	registry   ModelRegistry
}

func NewPredictionService(log *logger.Logger, normalizer *normalize.Normalizer, registry ModelRegistry) PredictionService {
	return &predictionService{
		log:        log.With("service", "PredictionService"),
		normalizer: normalizer,
		registry:   registry,
	}
}

// Predict scores one record against the model that is active when the call
// starts. A model published mid-call does not affect it.
func (s *predictionService) Predict(ctx context.Context, record map[string]any) (*Prediction, error) {
	ctx, span := observability.Tracer().Start(ctx, "prediction.Predict")
	defer span.End()

	if len(record) == 0 {
		return nil, domainerrors.Validation("record", "is required")
	}
	loaded, err := s.registry.Active(ctx)
	if err != nil {
		span.RecordError(err)
		observability.Current().IncPrediction("no_model")
		return nil, err
	}
	art := loaded.Artifact

	rec, err := s.normalizeFor(record, art.Features)
	if err != nil {
		observability.Current().IncPrediction("invalid")
		return nil, err
	}
	v, err := ml.Score(art.Features, art.Encoder, art.Model, rec)
	if err != nil {
		span.RecordError(err)
		observability.Current().IncPrediction("invalid")
		return nil, err
	}
	observability.Current().IncPrediction("ok")
	span.SetAttributes(attribute.Int("model.version", loaded.Snapshot.Version))
	return &Prediction{
		Prediction:   v,
		ModelVersion: loaded.Snapshot.Version,
		ModelType:    string(art.ModelType),
		Target:       art.Target,
	}, nil
}

// normalizeFor normalizes record, dropping fields the model does not use when
// their values fail to parse.
func (s *predictionService) normalizeFor(record map[string]any, features []ml.FeatureSpec) (*dataset.CropRecord, error) {
	declared := map[string]bool{}
	for _, f := range features {
		declared[f.Name] = true
	}
	in := make(map[string]any, len(record))
	for k, v := range record {
		in[k] = v
	}
	for {
		rec, err := s.normalizer.NormalizeRecord(in)
		var ve *domainerrors.ValidationError
		if err == nil || !errors.As(err, &ve) || declared[ve.Field] {
			return rec, err
		}
		dropped := false
		for k := range in {
			if canon, _, ok := s.normalizer.Aliases().Resolve(k); ok && canon == ve.Field {
				delete(in, k)
				dropped = true
			}
		}
		if !dropped {
			return nil, err
		}
	}
}
