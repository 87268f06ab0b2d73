package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
)

func TestFeeAppliedCountsRevenue(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.FeeApplied("TOPUP", "customer", decimal.RequireFromString("100.00"))
	m.FeeApplied("TOPUP", "customer", decimal.RequireFromString("2.50"))

	if got := testutil.ToFloat64(m.feesApplied.WithLabelValues("TOPUP", "customer")); got != 2 {
		t.Fatalf("expected 2 applied fees, got %v", got)
	}
	if got := testutil.ToFloat64(m.feeRevenue.WithLabelValues("TOPUP")); got != 102.5 {
		t.Fatalf("expected revenue 102.5, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.HTTPRequest("GET", "/healthz", 200, time.Millisecond)
	m.FeeFailed("SPLIT")
	m.IntentStatus("SETTLED")
}
