package services

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/cropyield-backend/internal/analytics"
	"github.com/yungbote/cropyield-backend/internal/data/repos"
	"github.com/yungbote/cropyield-backend/internal/observability"
	"github.com/yungbote/cropyield-backend/internal/pkg/dbctx"
	"github.com/yungbote/cropyield-backend/internal/platform/logger"
)

type AnalyticsService interface {
	Analyze(ctx context.Context) (*analytics.Result, error)
}

type analyticsService struct {
	log     *logger.Logger
	records repos.CropRecordRepo
	cache   analytics.Cache
	opts    analytics.Options
}

func NewAnalyticsService(log *logger.Logger, records repos.CropRecordRepo, cache analytics.Cache, opts analytics.Options) AnalyticsService {
	if cache == nil {
		cache = analytics.NewMemoryCache(0)
	}
	return &analyticsService{
		log:     log.With("service", "AnalyticsService"),
		records: records,
		cache:   cache,
		opts:    opts,
	}
}

// Analyze describes the whole stored dataset. Results are cached by content
// fingerprint, so repeated calls on an unchanged dataset skip rendering.
func (s *analyticsService) Analyze(ctx context.Context) (*analytics.Result, error) {
	ctx, span := observability.Tracer().Start(ctx, "analytics.Analyze")
	defer span.End()

	records, err := s.records.FetchAll(dbctx.Context{Ctx: ctx})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("dataset.rows", len(records)))

	key := analytics.Fingerprint(records, s.opts)
	if res, ok := s.cache.Get(ctx, key); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		observability.Current().IncAnalyzeCache(true)
		return res, nil
	}
	observability.Current().IncAnalyzeCache(false)
	start := time.Now()
	res, err := analytics.Analyze(ctx, records, s.opts)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	observability.Current().ObserveRender(time.Since(start))
	s.cache.Set(ctx, key, res)
	s.log.Debug("dataset analyzed", "rows", len(records), "images", len(res.Images))
	return res, nil
}
