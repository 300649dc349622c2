package http

import (
	"bytes"
	"mime/multipart"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	httpH "github.com/yungbote/cropyield-backend/internal/http/handlers"
	"github.com/yungbote/cropyield-backend/internal/observability"
	"github.com/yungbote/cropyield-backend/internal/platform/logger"
)

func TestRouterHealthAndRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(RouterConfig{HealthHandler: httpH.NewHealthHandler(nil)})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(nethttp.MethodGet, "/healthcheck", nil))
	if rr.Code != nethttp.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("healthcheck: want=200 ok got=%d %q", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("X-Request-Id") == "" {
		t.Fatalf("X-Request-Id: want non-empty")
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(nethttp.MethodGet, "/readyz", nil))
	if rr.Code != nethttp.StatusOK {
		t.Fatalf("readyz: want=200 got=%d", rr.Code)
	}
}

func TestRouterExposesMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := observability.NewMetrics()
	r := NewRouter(RouterConfig{Metrics: m, HealthHandler: httpH.NewHealthHandler(nil)})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(nethttp.MethodGet, "/healthcheck", nil))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(nethttp.MethodGet, "/metrics", nil))
	if rr.Code != nethttp.StatusOK {
		t.Fatalf("metrics: want=200 got=%d", rr.Code)
	}
	want := `cropyield_api_requests_total{method="GET",route="/healthcheck",status="200"} 1`
	if !strings.Contains(rr.Body.String(), want) {
		t.Fatalf("metrics: missing %q in\n%s", want, rr.Body.String())
	}
}

func TestRouterSkipsNilHandlers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(RouterConfig{})
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(nethttp.MethodPost, "/train", nil))
	if rr.Code != nethttp.StatusNotFound {
		t.Fatalf("train without handler: want=404 got=%d", rr.Code)
	}
}

func TestRouterServesStaticDir(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>dashboard</h1>"), 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}
	r := NewRouter(RouterConfig{StaticDir: dir, HealthHandler: httpH.NewHealthHandler(nil)})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(nethttp.MethodGet, "/", nil))
	if rr.Code != nethttp.StatusOK || !bytes.Contains(rr.Body.Bytes(), []byte("dashboard")) {
		t.Fatalf("static index: want=200 dashboard got=%d %q", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(nethttp.MethodPost, "/nope", nil))
	if rr.Code != nethttp.StatusNotFound {
		t.Fatalf("static post: want=404 got=%d", rr.Code)
	}
}

func TestRouterLimitsUploadSize(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(RouterConfig{
		MaxUploadBytes: 512,
		DatasetHandler: httpH.NewDatasetHandler(logger.Nop(), nil, nil),
	})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "big.csv")
	_, _ = fw.Write(bytes.Repeat([]byte("soja,2020,1,1,1\n"), 200))
	_ = mw.Close()
	req := httptest.NewRequest(nethttp.MethodPost, "/upload_csv", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != nethttp.StatusRequestEntityTooLarge {
		t.Fatalf("upload: want=%d got=%d body=%s", nethttp.StatusRequestEntityTooLarge, rr.Code, rr.Body.String())
	}
}
