package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/cropyield-backend/internal/analytics"
	"github.com/yungbote/cropyield-backend/internal/platform/logger"
	"github.com/yungbote/cropyield-backend/internal/services"
)

type Services struct {
	Dataset    services.DatasetService
	Analytics  services.AnalyticsService
	Training   services.TrainingService
	Prediction services.PredictionService
	Models     services.ModelService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r Repos, c Clients) Services {
	log.Info("Wiring services...")
	opts := analytics.DefaultOptions()
	if cfg.Analytics.ProductionCrop != "" {
		opts.ProductionCrop = cfg.Analytics.ProductionCrop
	}
	return Services{
		Dataset:    services.NewDatasetService(db, log, c.Normalizer, r.Records, r.Uploads),
		Analytics:  services.NewAnalyticsService(log, r.Records, c.Cache, opts),
		Training:   services.NewTrainingService(log, c.Normalizer, r.Records, c.Registry, cfg.Training),
		Prediction: services.NewPredictionService(log, c.Normalizer, c.Registry),
		Models:     services.NewModelService(log, c.Registry),
	}
}
