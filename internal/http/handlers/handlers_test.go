package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/cropyield-backend/internal/analytics"
	"github.com/yungbote/cropyield-backend/internal/artifact"
	"github.com/yungbote/cropyield-backend/internal/data/repos"
	"github.com/yungbote/cropyield-backend/internal/data/repos/testutil"
	"github.com/yungbote/cropyield-backend/internal/ml"
	"github.com/yungbote/cropyield-backend/internal/normalize"
	"github.com/yungbote/cropyield-backend/internal/services"
)

func seasonCSV(rows int) string {
	var b strings.Builder
	b.WriteString("cultura,ano,area,chuva_mm,produtividade\n")
	for i := 0; i < rows; i++ {
		crop, base := "soja", 3.0
		if i%2 == 1 {
			crop, base = "milho", 5.5
		}
		rain := 1000 + (i*37)%300
		fmt.Fprintf(&b, "%s,%d,%d,%d,%.3f\n", crop, 2001+i, 400+i*15, rain, base+float64(rain)/1000)
	}
	return b.String()
}

func newTestEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := testutil.Logger(t)
	db := testutil.DB(t)
	norm := normalize.New(nil)
	records := repos.NewCropRecordRepo(db, log)
	registry := artifact.NewRegistry("crop_yield", repos.NewModelSnapshotRepo(db, log), artifact.NewStore(t.TempDir()), log)

	cfg := ml.DefaultConfig()
	cfg.Forest.NEstimators = 10

	dataset := NewDatasetHandler(log,
		services.NewDatasetService(db, log, norm, records, repos.NewUploadBatchRepo(db, log)),
		services.NewAnalyticsService(log, records, analytics.NewMemoryCache(0), analytics.DefaultOptions()),
	)
	training := NewTrainingHandler(log, services.NewTrainingService(log, norm, records, registry, cfg))
	prediction := NewPredictionHandler(log, services.NewPredictionService(log, norm, registry))
	models := NewModelHandler(log, services.NewModelService(log, registry))

	r := gin.New()
	r.GET("/healthcheck", NewHealthHandler(nil).HealthCheck)
	r.POST("/upload_csv", dataset.UploadCSV)
	r.GET("/dataset/export", dataset.Export)
	r.GET("/dataset/uploads", dataset.ListUploads)
	r.DELETE("/dataset", dataset.Clear)
	r.POST("/train", training.Train)
	r.POST("/retrain", training.Retrain)
	r.POST("/predict", prediction.Predict)
	r.GET("/models", models.List)
	r.POST("/models/:version/activate", models.Activate)
	return r
}

func do(t *testing.T, r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func uploadRequest(t *testing.T, target, filename, body string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

type errorBody struct {
	Detail string `json:"detail"`
	Error  struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var eb errorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &eb), rr.Body.String())
	return eb
}

func TestHealthCheck(t *testing.T) {
	r := newTestEngine(t)
	rr := do(t, r, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("healthcheck: want=200 ok got=%d %q", rr.Code, rr.Body.String())
	}
}

func TestReadyReportsPingFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/readyz", NewHealthHandler(func(ctx context.Context) error { return fmt.Errorf("down") }).Ready)
	rr := do(t, r, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz: want=%d got=%d", http.StatusServiceUnavailable, rr.Code)
	}
}

func TestUploadCSVReturnsSummaryAndCharts(t *testing.T) {
	r := newTestEngine(t)

	rr := do(t, r, uploadRequest(t, "/upload_csv", "safra.csv", seasonCSV(20)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body struct {
		RowsSaved    int               `json:"rows_saved"`
		RowsRejected int               `json:"rows_rejected"`
		BatchID      string            `json:"batch_id"`
		Columns      map[string]string `json:"columns"`
		Summary      analytics.Summary `json:"summary"`
		Images       map[string][]byte `json:"images"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, 20, body.RowsSaved)
	require.Equal(t, 0, body.RowsRejected)
	require.NotEmpty(t, body.BatchID)
	require.Equal(t, "crop", body.Columns["cultura"])
	require.Equal(t, 20, body.Summary.Rows)
	for _, name := range analytics.ChartNames {
		img, ok := body.Images[name]
		require.True(t, ok, "missing chart %s", name)
		require.True(t, bytes.HasPrefix(img, []byte("\x89PNG")), "chart %s is not a png", name)
	}

	rr = do(t, r, httptest.NewRequest(http.MethodGet, "/dataset/uploads", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "safra.csv")
}

func TestUploadCSVRejectsBadRequests(t *testing.T) {
	r := newTestEngine(t)

	rr := do(t, r, uploadRequest(t, "/upload_csv?mode=merge", "a.csv", seasonCSV(2)))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	eb := decodeError(t, rr)
	require.Equal(t, "validation_error", eb.Error.Code)
	require.Contains(t, eb.Detail, "mode")

	rr = do(t, r, httptest.NewRequest(http.MethodPost, "/upload_csv", strings.NewReader("x")))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "validation_error", decodeError(t, rr).Error.Code)

	rr = do(t, r, uploadRequest(t, "/upload_csv", "a.csv", "ano,area\n2020,10\n"))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUploadReplaceMode(t *testing.T) {
	r := newTestEngine(t)
	require.Equal(t, http.StatusOK, do(t, r, uploadRequest(t, "/upload_csv", "a.csv", seasonCSV(12))).Code)

	rr := do(t, r, uploadRequest(t, "/upload_csv?mode=replace", "b.csv", seasonCSV(5)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var body struct {
		Summary analytics.Summary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, 5, body.Summary.Rows)
}

func TestPredictBeforeTrain(t *testing.T) {
	r := newTestEngine(t)
	rr := do(t, r, jsonRequest(http.MethodPost, "/predict", `{"record":{"crop":"soybean","year":2022}}`))
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "no_model", decodeError(t, rr).Error.Code)
}

func TestTrainPredictAndModels(t *testing.T) {
	r := newTestEngine(t)
	require.Equal(t, http.StatusOK, do(t, r, uploadRequest(t, "/upload_csv", "safra.csv", seasonCSV(20))).Code)

	rr := do(t, r, jsonRequest(http.MethodPost, "/train", `{"model_type":"linear"}`))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var tr services.TrainResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tr))
	require.Equal(t, 1, tr.Version)
	require.Equal(t, "yield", tr.Target)
	require.GreaterOrEqual(t, tr.Metrics.MAE, 0.0)
	require.NotEmpty(t, tr.ModelDir)

	// empty body falls back to defaults
	rr = do(t, r, httptest.NewRequest(http.MethodPost, "/retrain", nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(t, r, jsonRequest(http.MethodPost, "/predict",
		`{"record":{"crop":"soybean","year":2022,"area":550,"rain_mm":1120}}`))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var p services.Prediction
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
	require.False(t, math.IsNaN(p.Prediction) || math.IsInf(p.Prediction, 0))
	require.Equal(t, 2, p.ModelVersion)

	rr = do(t, r, jsonRequest(http.MethodPost, "/predict", `{"record":{"crop":"soybean"}}`))
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	eb := decodeError(t, rr)
	require.Equal(t, "missing_features", eb.Error.Code)
	require.Contains(t, eb.Detail, "rain_mm")

	rr = do(t, r, httptest.NewRequest(http.MethodGet, "/models", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var list services.ModelList
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list.Models, 2)
	require.Equal(t, 2, list.ActiveVersion)

	rr = do(t, r, httptest.NewRequest(http.MethodPost, "/models/1/activate", nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Contains(t, rr.Body.String(), `"active_version":1`)

	rr = do(t, r, httptest.NewRequest(http.MethodPost, "/models/abc/activate", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	rr = do(t, r, httptest.NewRequest(http.MethodPost, "/models/9/activate", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestTrainRejectsBadInput(t *testing.T) {
	r := newTestEngine(t)

	rr := do(t, r, jsonRequest(http.MethodPost, "/train", `{"model_type":`))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "validation_error", decodeError(t, rr).Error.Code)

	rr = do(t, r, jsonRequest(http.MethodPost, "/train", `{}`))
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Equal(t, "insufficient_data", decodeError(t, rr).Error.Code)

	require.Equal(t, http.StatusOK, do(t, r, uploadRequest(t, "/upload_csv", "safra.csv", seasonCSV(20))).Code)
	rr = do(t, r, jsonRequest(http.MethodPost, "/train", `{"model_type":"svm"}`))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "config_error", decodeError(t, rr).Error.Code)
}

func TestTrainAcceptsAliasedColumns(t *testing.T) {
	r := newTestEngine(t)
	require.Equal(t, http.StatusOK, do(t, r, uploadRequest(t, "/upload_csv", "safra.csv", seasonCSV(20))).Code)

	rr := do(t, r, jsonRequest(http.MethodPost, "/train",
		`{"model_type":"linear","target":"yield_kg_ha","features":["cultura","chuva_mm"]}`))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var tr services.TrainResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tr))
	require.Equal(t, "yield", tr.Target)
	require.Equal(t, []string{"crop", "rain_mm"}, tr.Features)
}

func TestListLimitMustBeNumeric(t *testing.T) {
	r := newTestEngine(t)
	for _, target := range []string{"/dataset/uploads?limit=abc", "/models?limit=-1", "/models?limit=ten"} {
		rr := do(t, r, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusBadRequest, rr.Code, target)
		require.Equal(t, "validation_error", decodeError(t, rr).Error.Code)
	}
	rr := do(t, r, httptest.NewRequest(http.MethodGet, "/dataset/uploads?limit=5", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestExportAndClear(t *testing.T) {
	r := newTestEngine(t)
	require.Equal(t, http.StatusOK, do(t, r, uploadRequest(t, "/upload_csv", "safra.csv", seasonCSV(12))).Code)

	rr := do(t, r, httptest.NewRequest(http.MethodGet, "/dataset/export?format=csv", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	require.Contains(t, rr.Header().Get("Content-Disposition"), "dataset.csv")
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	require.Len(t, lines, 13)

	rr = do(t, r, httptest.NewRequest(http.MethodGet, "/dataset/export?format=pdf", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, r, httptest.NewRequest(http.MethodDelete, "/dataset", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"rows_deleted":12}`, rr.Body.String())
}
