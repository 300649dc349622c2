package app

import (
	"context"

	apphttp "github.com/yungbote/cropyield-backend/internal/http"
	httpH "github.com/yungbote/cropyield-backend/internal/http/handlers"
	"github.com/yungbote/cropyield-backend/internal/observability"
	"github.com/yungbote/cropyield-backend/internal/platform/logger"
)

type Handlers struct {
	Health     *httpH.HealthHandler
	Dataset    *httpH.DatasetHandler
	Analytics  *httpH.AnalyticsHandler
	Training   *httpH.TrainingHandler
	Prediction *httpH.PredictionHandler
	Models     *httpH.ModelHandler
}

func wireHandlers(log *logger.Logger, s Services, ping func(ctx context.Context) error) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:     httpH.NewHealthHandler(ping),
		Dataset:    httpH.NewDatasetHandler(log, s.Dataset, s.Analytics),
		Analytics:  httpH.NewAnalyticsHandler(log, s.Analytics),
		Training:   httpH.NewTrainingHandler(log, s.Training),
		Prediction: httpH.NewPredictionHandler(log, s.Prediction),
		Models:     httpH.NewModelHandler(log, s.Models),
	}
}

func routerConfig(log *logger.Logger, cfg Config, h Handlers, m *observability.Metrics) apphttp.RouterConfig {
	return apphttp.RouterConfig{
		Log:               log,
		CORSOrigins:       cfg.HTTP.CORSOrigins,
		MaxUploadBytes:    cfg.HTTP.MaxUploadBytes,
		StaticDir:         cfg.HTTP.StaticDir,
		Tracing:           cfg.OTel.Enabled,
		ServiceName:       cfg.OTel.ServiceName,
		Metrics:           m,
		HealthHandler:     h.Health,
		DatasetHandler:    h.Dataset,
		AnalyticsHandler:  h.Analytics,
		TrainingHandler:   h.Training,
		PredictionHandler: h.Prediction,
		ModelHandler:      h.Models,
	}
}
