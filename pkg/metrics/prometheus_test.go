package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCollector_Counters(t *testing.T) {
	m := NewMetricsCollector(nil)

	m.RecordCacheLookup("patterns", true)
	m.RecordCacheLookup("patterns", false)
	m.RecordCacheLookup("patterns", false)
	m.RecordTransfer(true)
	m.RecordTransfer(false)
	m.ObserveQuery("risk_score", time.Millisecond, errors.New("boom"))
	m.RecordAlert("high_risk_ratio", "high")
	m.SetBlacklistSize(3)

	if got := testutil.ToFloat64(m.cacheLookups.WithLabelValues("patterns", "miss")); got != 2 {
		t.Errorf("expected 2 misses, got %v", got)
	}
	if got := testutil.ToFloat64(m.cacheLookups.WithLabelValues("patterns", "hit")); got != 1 {
		t.Errorf("expected 1 hit, got %v", got)
	}
	if got := testutil.ToFloat64(m.transfersIngested); got != 1 {
		t.Errorf("expected 1 ingested transfer, got %v", got)
	}
	if got := testutil.ToFloat64(m.queryErrors.WithLabelValues("risk_score")); got != 1 {
		t.Errorf("expected 1 query error, got %v", got)
	}
	if got := testutil.ToFloat64(m.blacklistSize); got != 3 {
		t.Errorf("expected blacklist size 3, got %v", got)
	}
}

func TestMetricsCollector_Handler(t *testing.T) {
	m := NewMetricsCollector(nil)
	m.ObserveRiskScore(80)

	w := httptest.NewRecorder()
	m.GetHandler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	if !strings.Contains(w.Body.String(), "fincrime_risk_score_count 1") {
		t.Errorf("expected risk score histogram in output, got:\n%s", w.Body.String())
	}
}
