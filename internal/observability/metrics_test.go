package observability

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetrics_WritePrometheus(t *testing.T) {
	m := NewMetrics()
	m.ObserveAPI("POST", "/api/apply", 200, 30*time.Millisecond)
	m.ObserveApply("create", "applied", 20*time.Millisecond)
	m.ObserveApply("create", "applied", 40*time.Millisecond)
	m.ObserveApply("delete", "error", time.Millisecond)
	m.IncChangeClassified("update", "fuzzy")
	m.ObserveLockWait("local", 0)

	if got := m.AppliedCount("create", "applied"); got != 2 {
		t.Fatalf("AppliedCount: want=2 got=%v", got)
	}

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"# TYPE lr_changes_applied_total counter",
		`lr_changes_applied_total{change_type="create",status="applied"} 2.000000`,
		`lr_api_requests_total{method="POST",route="/api/apply",status="200"} 1.000000`,
		`lr_apply_change_duration_seconds_bucket{change_type="create",status="applied",le="0.025"} 1`,
		`lr_apply_change_duration_seconds_bucket{change_type="create",status="applied",le="+Inf"} 2`,
		`lr_changes_classified_total{change_type="update",match_method="fuzzy"} 1.000000`,
		`lr_listing_lock_wait_seconds_count{backend="local"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("WritePrometheus: missing %q in:\n%s", want, out)
		}
	}
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/", 200, time.Millisecond)
	m.ObserveApply("create", "applied", time.Millisecond)
	m.IncAggregateConflict("apply")
	if got := m.AppliedCount("create", "applied"); got != 0 {
		t.Fatalf("AppliedCount on nil: want=0 got=%v", got)
	}

	rec := httptest.NewRecorder()
	m.WriteHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("WriteHTTP on nil: want=503 got=%d", rec.Code)
	}
}

func TestLabelString_EscapesAndDefaults(t *testing.T) {
	got := labelString([]string{"a", "b"}, []string{`x"y`})
	if got != `{a="x\"y",b="unknown"}` {
		t.Fatalf("labelString: got=%s", got)
	}
	if got := withLe("", "1"); got != `{le="1"}` {
		t.Fatalf("withLe: got=%s", got)
	}
}
