package http

import (
	nethttp "net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/cropyield-backend/internal/http/handlers"
	httpMW "github.com/yungbote/cropyield-backend/internal/http/middleware"
	"github.com/yungbote/cropyield-backend/internal/observability"
	"github.com/yungbote/cropyield-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	CORSOrigins    []string
	MaxUploadBytes int64
	// StaticDir, when set, is served for every path no API route claims.
	StaticDir   string
	Tracing     bool
	ServiceName string
	// Metrics, when set, instruments every route and is exposed at /metrics.
	Metrics *observability.Metrics

	HealthHandler     *httpH.HealthHandler
	DatasetHandler    *httpH.DatasetHandler
	AnalyticsHandler  *httpH.AnalyticsHandler
	TrainingHandler   *httpH.TrainingHandler
	PredictionHandler *httpH.PredictionHandler
	ModelHandler      *httpH.ModelHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Tracing {
		name := cfg.ServiceName
		if name == "" {
			name = "cropyield"
		}
		r.Use(otelgin.Middleware(name))
	}
	r.Use(httpMW.RequestID())
	if cfg.Log != nil {
		r.Use(httpMW.RequestLogger(cfg.Log))
	}
	r.Use(httpMW.CORS(cfg.CORSOrigins))
	if cfg.Metrics != nil {
		r.Use(httpMW.Metrics(cfg.Metrics))
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}

	// Dataset
	if cfg.DatasetHandler != nil {
		r.POST("/upload_csv", httpMW.MaxBodyBytes(cfg.MaxUploadBytes), cfg.DatasetHandler.UploadCSV)
		r.GET("/dataset/export", cfg.DatasetHandler.Export)
		r.GET("/dataset/uploads", cfg.DatasetHandler.ListUploads)
		r.DELETE("/dataset", cfg.DatasetHandler.Clear)
	}

	// Analytics
	if cfg.AnalyticsHandler != nil {
		r.POST("/analyze", cfg.AnalyticsHandler.Analyze)
	}

	// Models
	if cfg.TrainingHandler != nil {
		r.POST("/train", cfg.TrainingHandler.Train)
		r.POST("/retrain", cfg.TrainingHandler.Retrain)
	}
	if cfg.PredictionHandler != nil {
		r.POST("/predict", cfg.PredictionHandler.Predict)
	}
	if cfg.ModelHandler != nil {
		r.GET("/models", cfg.ModelHandler.List)
		r.POST("/models/:version/activate", cfg.ModelHandler.Activate)
	}

	if cfg.StaticDir != "" {
		fs := nethttp.FileServer(nethttp.Dir(cfg.StaticDir))
		r.NoRoute(func(c *gin.Context) {
			if c.Request.Method != nethttp.MethodGet && c.Request.Method != nethttp.MethodHead {
				c.Status(nethttp.StatusNotFound)
				return
			}
			fs.ServeHTTP(c.Writer, c.Request)
		})
	}

	return r
}
