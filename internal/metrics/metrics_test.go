package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New()

	m.Tick()
	m.Tick()
	m.Plan("OPEN")
	m.Skip("max_positions")
	m.Skip("max_positions")
	m.Order("market")
	m.Order("stop")

	if got := testutil.ToFloat64(m.Ticks); got != 2 {
		t.Errorf("ticks = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Plans.WithLabelValues("OPEN")); got != 1 {
		t.Errorf("plans{OPEN} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Skips.WithLabelValues("max_positions")); got != 2 {
		t.Errorf("skips{max_positions} = %v, want 2", got)
	}
	if got := testutil.CollectAndCount(m.Orders); got != 2 {
		t.Errorf("order series = %d, want 2", got)
	}
}

func TestAccountGauges(t *testing.T) {
	m := New()
	m.Account(10250.5, 0.02)

	if got := testutil.ToFloat64(m.Equity); got != 10250.5 {
		t.Errorf("equity = %v", got)
	}
	if got := testutil.ToFloat64(m.Drawdown); got != 0.02 {
		t.Errorf("drawdown = %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Tick()
	m.Plan("CLOSE")
	m.Skip("no_action")
	m.Order("market")
	m.Account(1, 0)
}

func TestHandler(t *testing.T) {
	m := New()
	m.Tick()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "trader_ticks_total 1") {
		t.Errorf("body missing trader_ticks_total")
	}
}
