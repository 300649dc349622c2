package observability

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/cropyield-backend/internal/platform/logger"
)

// Metrics holds the process-wide counters scraped at /metrics. Every method is
// nil-safe so callers never need to check whether metrics are enabled.
type Metrics struct {
	apiRequests  *CounterVec
	apiLatency   *HistogramVec
	apiInflight  *GaugeVec
	uploadRows   *CounterVec
	invalidCells *CounterVec
	analyzeCache *CounterVec
	renderTime   *HistogramVec
	trainRuns    *CounterVec
	trainTime    *HistogramVec
	activeModel  *GaugeVec
	predictions  *CounterVec
	dbStats      *GaugeVec
	redisUp      *GaugeVec
}

var instance atomic.Pointer[Metrics]

func NewMetrics() *Metrics {
	return &Metrics{
		apiRequests:  NewCounterVec("cropyield_api_requests_total", "HTTP requests by route and status.", []string{"method", "route", "status"}),
		apiLatency:   NewHistogramVec("cropyield_api_request_duration_seconds", "HTTP request latency.", []string{"method", "route"}, nil),
		apiInflight:  NewGaugeVec("cropyield_api_inflight_requests", "HTTP requests in flight.", nil),
		uploadRows:   NewCounterVec("cropyield_upload_rows_total", "Uploaded rows by outcome.", []string{"outcome"}),
		invalidCells: NewCounterVec("cropyield_upload_invalid_values_total", "Unparseable cells coerced to missing, by column.", []string{"column"}),
		analyzeCache: NewCounterVec("cropyield_analyze_cache_total", "Analyze cache lookups.", []string{"result"}),
		renderTime:   NewHistogramVec("cropyield_chart_render_duration_seconds", "Time to render the full chart set.", nil, nil),
		trainRuns:    NewCounterVec("cropyield_training_runs_total", "Training runs by model type and status.", []string{"model_type", "status"}),
		trainTime:    NewHistogramVec("cropyield_training_duration_seconds", "Training wall time.", []string{"model_type"}, []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}),
		activeModel:  NewGaugeVec("cropyield_active_model_version", "Version of the active model.", nil),
		predictions:  NewCounterVec("cropyield_predictions_total", "Predictions by status.", []string{"status"}),
		dbStats:      NewGaugeVec("cropyield_db_pool", "database/sql pool statistics.", []string{"stat"}),
		redisUp:      NewGaugeVec("cropyield_redis_up", "1 when the analyze cache Redis answered the last ping.", nil),
	}
}

// Init installs a fresh Metrics as the process instance and returns it.
func Init() *Metrics {
	m := NewMetrics()
	instance.Store(m)
	return m
}

// Current returns the installed instance, or nil when metrics are disabled.
func Current() *Metrics {
	return instance.Load()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.uploadRows, m.invalidCells,
		m.analyzeCache, m.renderTime,
		m.trainRuns, m.trainTime, m.activeModel,
		m.predictions,
		m.dbStats, m.redisUp,
	} {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.apiRequests.Inc(method, route, strconv.Itoa(status))
	m.apiLatency.Observe(dur.Seconds(), method, route)
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Add(1)
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Add(-1)
}

func (m *Metrics) ObserveUpload(saved, rejected int, invalid map[string]int) {
	if m == nil {
		return
	}
	m.uploadRows.Add(float64(saved), "saved")
	m.uploadRows.Add(float64(rejected), "rejected")
	for col, n := range invalid {
		m.invalidCells.Add(float64(n), col)
	}
}

func (m *Metrics) IncAnalyzeCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.analyzeCache.Inc("hit")
		return
	}
	m.analyzeCache.Inc("miss")
}

func (m *Metrics) ObserveRender(dur time.Duration) {
	if m == nil {
		return
	}
	m.renderTime.Observe(dur.Seconds())
}

func (m *Metrics) ObserveTraining(modelType, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.trainRuns.Inc(modelType, status)
	if status == "ok" {
		m.trainTime.Observe(dur.Seconds(), modelType)
	}
}

func (m *Metrics) SetActiveModel(version int) {
	if m == nil {
		return
	}
	m.activeModel.Set(float64(version))
}

func (m *Metrics) IncPrediction(status string) {
	if m == nil {
		return
	}
	m.predictions.Inc(status)
}

// StartDBCollector samples the sql.DB pool every interval until ctx is done.
func (m *Metrics) StartDBCollector(ctx context.Context, log *logger.Logger, db *gorm.DB, interval time.Duration) {
	if m == nil || db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		if log != nil {
			log.Warn("metrics: db stats unavailable", "error", err)
		}
		return
	}
	go tick(ctx, interval, func() {
		stats := sqlDB.Stats()
		m.dbStats.Set(float64(stats.OpenConnections), "open_connections")
		m.dbStats.Set(float64(stats.InUse), "in_use")
		m.dbStats.Set(float64(stats.Idle), "idle")
		m.dbStats.Set(float64(stats.WaitCount), "wait_count")
		m.dbStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
	})
}

// StartRedisCollector pings addr every interval and records reachability.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, addr string, interval time.Duration) {
	if m == nil || addr == "" {
		return
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	go func() {
		defer rdb.Close()
		tick(ctx, interval, func() {
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			if err := rdb.Ping(pingCtx).Err(); err != nil {
				m.redisUp.Set(0)
				if log != nil {
					log.Warn("metrics: redis ping failed", "error", err)
				}
				return
			}
			m.redisUp.Set(1)
		})
	}()
}

func tick(ctx context.Context, interval time.Duration, fn func()) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	fn()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn()
		}
	}
}
