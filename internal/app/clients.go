package app

import (
	"fmt"

	"github.com/yungbote/cropyield-backend/internal/analytics"
	"github.com/yungbote/cropyield-backend/internal/artifact"
	"github.com/yungbote/cropyield-backend/internal/normalize"
	"github.com/yungbote/cropyield-backend/internal/platform/logger"
)

// Clients are the stateful collaborators services share: the column alias
// table, the model registry and the analyze cache.
type Clients struct {
	Normalizer *normalize.Normalizer
	Registry   *artifact.Registry
	Cache      analytics.Cache
}

func wireClients(log *logger.Logger, cfg Config, r Repos) (Clients, error) {
	log.Info("Wiring clients...")

	aliases, err := normalize.LoadAliases(cfg.AliasesFile)
	if err != nil {
		return Clients{}, fmt.Errorf("load column aliases: %w", err)
	}

	registry := artifact.NewRegistry(cfg.Models.Key, r.Snapshots, artifact.NewStore(cfg.Models.Dir), log)

	// Redis is optional; without it the last analysis is kept in process.
	var cache analytics.Cache
	if cfg.Analytics.RedisAddr != "" {
		cache, err = analytics.NewRedisCache(cfg.Analytics.RedisAddr, cfg.Analytics.CacheTTL, log)
		if err != nil {
			return Clients{}, fmt.Errorf("init analyze cache: %w", err)
		}
	} else {
		cache = analytics.NewMemoryCache(cfg.Analytics.CacheTTL)
	}

	return Clients{
		Normalizer: normalize.New(aliases),
		Registry:   registry,
		Cache:      cache,
	}, nil
}
