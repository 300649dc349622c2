package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/x", 200, time.Millisecond)
	m.ObserveUpload(1, 2, map[string]int{"area": 1})
	m.IncPrediction("ok")
	if err := m.WritePrometheus(&bytes.Buffer{}); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
}

func TestMetricsWritePrometheus(t *testing.T) {
	m := NewMetrics()
	m.ObserveAPI("POST", "/train", 200, 300*time.Millisecond)
	m.ObserveAPI("POST", "/train", 200, 20*time.Millisecond)
	m.ObserveUpload(18, 2, map[string]int{"rain_mm": 3})
	m.ObserveTraining("linear", "ok", time.Second)
	m.ObserveTraining("linear", "failed", time.Second)
	m.SetActiveModel(4)

	if got := m.apiRequests.Value("POST", "/train", "200"); got != 2 {
		t.Fatalf("api requests: want=2 got=%v", got)
	}
	if got := m.trainTime.Count("linear"); got != 1 {
		t.Fatalf("train histogram count: want=1 got=%d", got)
	}

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`cropyield_api_requests_total{method="POST",route="/train",status="200"} 2`,
		`cropyield_api_request_duration_seconds_bucket{method="POST",route="/train",le="0.05"} 1`,
		`cropyield_api_request_duration_seconds_count{method="POST",route="/train"} 2`,
		`cropyield_upload_rows_total{outcome="rejected"} 2`,
		`cropyield_upload_invalid_values_total{column="rain_mm"} 3`,
		`cropyield_training_runs_total{model_type="linear",status="failed"} 1`,
		`cropyield_active_model_version 4`,
		"# TYPE cropyield_training_duration_seconds histogram",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestLabelEscaping(t *testing.T) {
	got := labelString([]string{"route"}, []string{`a"b\c`})
	if want := `{route="a\"b\\c"}`; got != want {
		t.Fatalf("labelString: want=%s got=%s", want, got)
	}
	if got := labelString([]string{"a", "b"}, []string{"x"}); got != `{a="x",b="unknown"}` {
		t.Fatalf("labelString padding: got=%s", got)
	}
}
