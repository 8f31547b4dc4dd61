package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveBeforeInitIsNoop(t *testing.T) {
	if projectionTotal != nil {
		t.Skip("metrics already initialised by another test")
	}
	ObserveProjection(nil, time.Millisecond)
	IncSkipped("missing_start_date")
	AddFallbackCycles(2)
	IncChangeMessage(errors.New("boom"))
	ObserveHTTP("GET", "/api/calendar", 200, time.Millisecond)
}

func TestCounters(t *testing.T) {
	Init()
	Init()

	before := testutil.ToFloat64(projectionTotal.WithLabelValues(ResultError))
	ObserveProjection(errors.New("boom"), 10*time.Millisecond)
	if got := testutil.ToFloat64(projectionTotal.WithLabelValues(ResultError)); got != before+1 {
		t.Errorf("projections_total{error} = %v, want %v", got, before+1)
	}

	IncSkipped("")
	if got := testutil.ToFloat64(skippedTotal.WithLabelValues("unknown")); got < 1 {
		t.Errorf("empty reason should count as unknown, got %v", got)
	}

	fb := testutil.ToFloat64(fallbackTotal)
	AddFallbackCycles(0)
	AddFallbackCycles(3)
	if got := testutil.ToFloat64(fallbackTotal); got != fb+3 {
		t.Errorf("fallback_cycles_total = %v, want %v", got, fb+3)
	}

	ObserveHTTP("GET", "", 404, time.Millisecond)
	if got := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "unmatched", "404")); got < 1 {
		t.Errorf("unmatched route should be counted, got %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	Init()
	IncExport(nil)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "subcal_exports_total") {
		t.Error("exposition should contain subcal_exports_total")
	}
}
