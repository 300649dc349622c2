package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/cropyield-backend/internal/data/db"
	apphttp "github.com/yungbote/cropyield-backend/internal/http"
	"github.com/yungbote/cropyield-backend/internal/observability"
	"github.com/yungbote/cropyield-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Repos    Repos
	Clients  Clients
	Services Services
	Metrics  *observability.Metrics

	store        *db.Service
	handlers     Handlers
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

// New opens the store and wires every layer. It starts no goroutines; call
// Start for the background collectors and Run for the HTTP server.
func New(ctx context.Context, cfg Config) (*App, error) {
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	store, err := db.Open(cfg.Database, log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	theDB := store.DB()

	reposet := wireRepos(theDB, log)
	clientset, err := wireClients(log, cfg, reposet)
	if err != nil {
		_ = store.Close()
		log.Sync()
		return nil, err
	}

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.Init()
	}

	serviceset := wireServices(theDB, log, cfg, reposet, clientset)

	return &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Repos:        reposet,
		Clients:      clientset,
		Services:     serviceset,
		Metrics:      metrics,
		store:        store,
		handlers:     wireHandlers(log, serviceset, store.Ping),
		otelShutdown: observability.InitOTel(ctx, log, cfg.OTel),
	}, nil
}

// Start launches the metrics collectors. They stop on Close.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.Metrics != nil {
		a.Metrics.StartDBCollector(ctx, a.Log, a.DB, a.Cfg.Metrics.ScrapeInterval)
		a.Metrics.StartRedisCollector(ctx, a.Log, a.Cfg.Analytics.RedisAddr, a.Cfg.Metrics.ScrapeInterval)
	}
	if loaded, err := a.Clients.Registry.Active(ctx); err == nil {
		a.Metrics.SetActiveModel(loaded.Snapshot.Version)
		a.Log.Info("active model loaded", "version", loaded.Snapshot.Version, "model_type", loaded.Snapshot.ModelType)
	}
}

// Server builds the HTTP server over the wired handlers.
func (a *App) Server() *apphttp.Server {
	return apphttp.NewServer(a.Cfg.HTTP.Addr, routerConfig(a.Log, a.Cfg, a.handlers, a.Metrics))
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	if a == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Start()
	return a.Server().Run(ctx, a.Cfg.HTTP.ShutdownTimeout)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(context.Background()); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
	}
	if a.Clients.Cache != nil {
		_ = a.Clients.Cache.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.Log.Warn("database close failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
