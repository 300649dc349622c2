package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/cropyield-backend/internal/artifact"
	"github.com/yungbote/cropyield-backend/internal/data/repos"
	types "github.com/yungbote/cropyield-backend/internal/domain"
	"github.com/yungbote/cropyield-backend/internal/ml"
	"github.com/yungbote/cropyield-backend/internal/normalize"
	"github.com/yungbote/cropyield-backend/internal/observability"
	"github.com/yungbote/cropyield-backend/internal/pkg/dbctx"
	"github.com/yungbote/cropyield-backend/internal/platform/logger"
)

// ModelRegistry is the subset of artifact.Registry the services rely on.
type ModelRegistry interface {
	Key() string
	Dir() string
	Publish(ctx context.Context, res *ml.Result) (*types.ModelSnapshot, error)
	Active(ctx context.Context) (*artifact.Loaded, error)
	Activate(ctx context.Context, version int) (*types.ModelSnapshot, error)
	List(ctx context.Context, limit int) ([]*types.ModelSnapshot, error)
}

// TrainRequest overrides the configured training defaults. Nil fields keep the default.
type TrainRequest struct {
	Target         string   `json:"target"`
	ModelType      string   `json:"model_type"`
	TestSize       *float64 `json:"test_size"`
	RandomState    *int64   `json:"random_state"`
	NEstimators    *int     `json:"n_estimators"`
	MaxDepth       *int     `json:"max_depth"`
	MinSamplesLeaf *int     `json:"min_samples_leaf"`
	MaxFeatures    *int     `json:"max_features"`
	Features       []string `json:"features"`

	// Progress, when set, receives the same stage updates that are logged.
	Progress func(pct int, msg string) `json:"-"`
}

type TrainResult struct {
	ModelDir    string     `json:"model_dir"`
	Version     int        `json:"version"`
	Active      bool       `json:"active"`
	Metrics     ml.Metrics `json:"metrics"`
	Features    []string   `json:"features"`
	ModelType   string     `json:"model_type"`
	Target      string     `json:"target"`
	DatasetRows int        `json:"dataset_rows"`
	LabeledRows int        `json:"labeled_rows"`
}

type TrainingService interface {
	Train(ctx context.Context, req TrainRequest) (*TrainResult, error)
	Retrain(ctx context.Context, req TrainRequest) (*TrainResult, error)
}

type trainingService struct {
	log        *logger.Logger
	normalizer *normalize.Normalizer
	records    repos.CropRecordRepo
	registry   ModelRegistry
	defaults   ml.Config

	// one fit at a time per process; the registry CAS handles other processes
	mu sync.Mutex
}

func NewTrainingService(log *logger.Logger, normalizer *normalize.Normalizer, records repos.CropRecordRepo, registry ModelRegistry, defaults ml.Config) TrainingService {
	return &trainingService{
		log:        log.With("service", "TrainingService"),
		normalizer: normalizer,
		records:    records,
		registry:   registry,
		defaults:   defaults,
	}
}

// column maps a requested column name the way upload headers are mapped, so
// "yield_kg_ha" and "cultura" name the stored yield and crop columns.
func (s *trainingService) column(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || s.normalizer == nil {
		return name
	}
	canon, san, ok := s.normalizer.Aliases().Resolve(name)
	if ok {
		return canon
	}
	if san == "" {
		return name
	}
	return san
}

func (s *trainingService) config(req TrainRequest) ml.Config {
	cfg := s.defaults
	if req.Target != "" {
		cfg.Target = req.Target
	}
	if req.ModelType != "" {
		cfg.ModelType = ml.ModelType(req.ModelType)
	}
	if req.TestSize != nil {
		cfg.TestSize = *req.TestSize
	}
	if req.RandomState != nil {
		cfg.Seed = *req.RandomState
	}
	if req.NEstimators != nil {
		cfg.Forest.NEstimators = *req.NEstimators
	}
	if req.MaxDepth != nil {
		cfg.Forest.MaxDepth = *req.MaxDepth
	}
	if req.MinSamplesLeaf != nil {
		cfg.Forest.MinSamplesLeaf = *req.MinSamplesLeaf
	}
	if req.MaxFeatures != nil {
		cfg.Forest.MaxFeatures = *req.MaxFeatures
	}
	if len(req.Features) > 0 {
		cfg.Features = append([]string(nil), req.Features...)
	}
	cfg.Target = s.column(cfg.Target)
	if len(cfg.Features) > 0 {
		features := make([]string, len(cfg.Features))
		for i, f := range cfg.Features {
			features[i] = s.column(f)
		}
		cfg.Features = features
	}
	return cfg
}

// Train fits a model on the whole stored dataset and publishes it as the next version.
func (s *trainingService) Train(ctx context.Context, req TrainRequest) (*TrainResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := observability.Tracer().Start(ctx, "training.Train")
	defer span.End()

	cfg := s.config(req)
	start := time.Now()
	progress := func(pct int, msg string) {
		s.log.Info("training progress", "pct", pct, "msg", msg)
		if req.Progress != nil {
			req.Progress(pct, msg)
		}
	}

	records, err := s.records.FetchAll(dbctx.Context{Ctx: ctx})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("dataset.rows", len(records)))

	// A client hanging up must not abort a fit halfway through.
	res, err := ml.Train(context.WithoutCancel(ctx), records, cfg, progress)
	if err != nil {
		span.RecordError(err)
		observability.Current().ObserveTraining(string(cfg.ModelType), "rejected", time.Since(start))
		s.log.Warn("training rejected", "error", err, "target", cfg.Target, "model_type", cfg.ModelType)
		return nil, err
	}

	progress(92, "publishing model artifact")
	snap, err := s.registry.Publish(context.WithoutCancel(ctx), res)
	if err != nil {
		span.RecordError(err)
		observability.Current().ObserveTraining(string(res.ModelType), "failed", time.Since(start))
		return nil, err
	}
	observability.Current().ObserveTraining(string(res.ModelType), "ok", time.Since(start))
	if snap.Active {
		observability.Current().SetActiveModel(snap.Version)
	}
	progress(100, "done")

	span.SetAttributes(
		attribute.Int("model.version", snap.Version),
		attribute.String("model.type", string(res.ModelType)),
		attribute.Float64("model.r2", res.Metrics.R2),
	)
	s.log.Info("model trained",
		"version", snap.Version,
		"model_type", res.ModelType,
		"target", res.Target,
		"r2", res.Metrics.R2,
		"mae", res.Metrics.MAE,
		"labeled_rows", res.LabeledRows,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &TrainResult{
		ModelDir:    s.registry.Dir(),
		Version:     snap.Version,
		Active:      snap.Active,
		Metrics:     res.Metrics,
		Features:    ml.FeatureNames(res.Features),
		ModelType:   string(res.ModelType),
		Target:      res.Target,
		DatasetRows: res.DatasetRows,
		LabeledRows: res.LabeledRows,
	}, nil
}

// Retrain re-reads the full store and trains again; it is Train under another name.
func (s *trainingService) Retrain(ctx context.Context, req TrainRequest) (*TrainResult, error) {
	return s.Train(ctx, req)
}
