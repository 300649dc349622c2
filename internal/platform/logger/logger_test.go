package logger

import "testing"

func TestSanitizeKVsRedactsCredentials(t *testing.T) {
	got := sanitizeKVs([]interface{}{"database_dsn", "postgres://u:p@h/db", "rows", 3, "dangling"})
	if len(got) != 5 {
		t.Fatalf("len: want=5 got=%d", len(got))
	}
	if got[1] != "[REDACTED]" {
		t.Fatalf("dsn value: want=[REDACTED] got=%v", got[1])
	}
	if got[3] != 3 {
		t.Fatalf("rows value: want=3 got=%v", got[3])
	}
	if got[4] != "dangling" {
		t.Fatalf("dangling key: want=dangling got=%v", got[4])
	}
}

func TestNewSilentModeIsNop(t *testing.T) {
	log, err := New("test")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info("nothing to see", "k", "v")
	log.With("service", "x").Warn("still nothing")
}
