package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/yungbote/cropyield-backend/internal/data/db"
	"github.com/yungbote/cropyield-backend/internal/ml"
	"github.com/yungbote/cropyield-backend/internal/observability"
)

const EnvPrefix = "CROPYIELD"

type HTTPConfig struct {
	Addr            string
	MaxUploadBytes  int64
	CORSOrigins     []string
	StaticDir       string
	ShutdownTimeout time.Duration
}

type ModelsConfig struct {
	Dir string
	Key string
}

type AnalyticsConfig struct {
	ProductionCrop string
	RedisAddr      string
	CacheTTL       time.Duration
}

type MetricsConfig struct {
	Enabled        bool
	ScrapeInterval time.Duration
}

type Config struct {
	LogMode     string
	HTTP        HTTPConfig
	Database    db.Config
	Models      ModelsConfig
	Training    ml.Config
	AliasesFile string
	Analytics   AnalyticsConfig
	Metrics     MetricsConfig
	OTel        observability.OtelConfig
}

// SetDefaults registers every key LoadConfig reads.
func SetDefaults(v *viper.Viper) {
	def := ml.DefaultConfig()

	v.SetDefault("log.mode", "development")

	v.SetDefault("http.addr", ":8000")
	v.SetDefault("http.max_upload_bytes", 32<<20)
	v.SetDefault("http.cors_origins", []string{"*"})
	v.SetDefault("http.static_dir", "")
	v.SetDefault("http.shutdown_timeout", 15*time.Second)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "cropyield.db")

	v.SetDefault("models.dir", "models")
	v.SetDefault("models.key", "crop_yield")

	v.SetDefault("training.target", def.Target)
	v.SetDefault("training.model_type", string(def.ModelType))
	v.SetDefault("training.min_rows", def.MinRows)
	v.SetDefault("training.test_size", def.TestSize)
	v.SetDefault("training.seed", def.Seed)
	v.SetDefault("training.n_estimators", def.Forest.NEstimators)
	v.SetDefault("training.max_depth", def.Forest.MaxDepth)
	v.SetDefault("training.min_samples_leaf", def.Forest.MinSamplesLeaf)
	v.SetDefault("training.max_features", def.Forest.MaxFeatures)

	v.SetDefault("normalize.aliases_file", "")

	v.SetDefault("analytics.production_crop", "soybean")
	v.SetDefault("analytics.cache.redis_addr", "")
	v.SetDefault("analytics.cache.ttl", 10*time.Minute)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.scrape_interval", 15*time.Second)

	v.SetDefault("otel.enabled", false)
	v.SetDefault("otel.service_name", "cropyield")
	v.SetDefault("otel.environment", "development")
	v.SetDefault("otel.endpoint", "")
	v.SetDefault("otel.insecure", false)
	v.SetDefault("otel.headers", "")
	v.SetDefault("otel.sample_ratio", 0.1)
}

// BindEnv makes every key overridable as CROPYIELD_<KEY>, with dots as underscores.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// LoadConfig reads a populated viper instance into a typed Config. LOG_MODE,
// when set, wins over log.mode.
func LoadConfig(v *viper.Viper) (Config, error) {
	cfg := Config{
		LogMode: v.GetString("log.mode"),
		HTTP: HTTPConfig{
			Addr:            v.GetString("http.addr"),
			MaxUploadBytes:  v.GetInt64("http.max_upload_bytes"),
			CORSOrigins:     splitList(v.GetStringSlice("http.cors_origins")),
			StaticDir:       v.GetString("http.static_dir"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
		},
		Database: db.Config{
			Driver: v.GetString("database.driver"),
			DSN:    v.GetString("database.dsn"),
		},
		Models: ModelsConfig{
			Dir: v.GetString("models.dir"),
			Key: v.GetString("models.key"),
		},
		Training: ml.Config{
			Target:    v.GetString("training.target"),
			ModelType: ml.ModelType(v.GetString("training.model_type")),
			TestSize:  v.GetFloat64("training.test_size"),
			Seed:      v.GetInt64("training.seed"),
			MinRows:   v.GetInt("training.min_rows"),
			Forest: ml.ForestParams{
				NEstimators:    v.GetInt("training.n_estimators"),
				MaxDepth:       v.GetInt("training.max_depth"),
				MinSamplesLeaf: v.GetInt("training.min_samples_leaf"),
				MaxFeatures:    v.GetInt("training.max_features"),
			},
		},
		AliasesFile: v.GetString("normalize.aliases_file"),
		Analytics: AnalyticsConfig{
			ProductionCrop: v.GetString("analytics.production_crop"),
			RedisAddr:      v.GetString("analytics.cache.redis_addr"),
			CacheTTL:       v.GetDuration("analytics.cache.ttl"),
		},
		Metrics: MetricsConfig{
			Enabled:        v.GetBool("metrics.enabled"),
			ScrapeInterval: v.GetDuration("metrics.scrape_interval"),
		},
		OTel: observability.OtelConfig{
			Enabled:     v.GetBool("otel.enabled"),
			ServiceName: v.GetString("otel.service_name"),
			Environment: v.GetString("otel.environment"),
			Endpoint:    v.GetString("otel.endpoint"),
			Insecure:    v.GetBool("otel.insecure"),
			Headers:     observability.ParseHeaders(v.GetString("otel.headers")),
			SampleRatio: v.GetFloat64("otel.sample_ratio"),
		},
	}
	if mode := strings.TrimSpace(os.Getenv("LOG_MODE")); mode != "" {
		cfg.LogMode = mode
	}
	if cfg.HTTP.Addr == "" {
		return cfg, fmt.Errorf("http.addr must not be empty")
	}
	if cfg.HTTP.MaxUploadBytes <= 0 {
		return cfg, fmt.Errorf("http.max_upload_bytes must be positive, got %d", cfg.HTTP.MaxUploadBytes)
	}
	if cfg.Models.Key == "" {
		return cfg, fmt.Errorf("models.key must not be empty")
	}
	if err := cfg.Training.Validate(); err != nil {
		return cfg, fmt.Errorf("training defaults: %w", err)
	}
	return cfg, nil
}

// splitList accepts both YAML lists and a comma-separated env value.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
