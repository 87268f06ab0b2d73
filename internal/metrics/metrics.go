// Package metrics holds the Prometheus collectors of the service. Every
// method is safe on a nil *Metrics so components can run without metrics in
// tests.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

// Metrics bundles the service collectors.
type Metrics struct {
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	feesApplied   *prometheus.CounterVec
	feeRevenue    *prometheus.CounterVec
	feeFailures   *prometheus.CounterVec
	intents       *prometheus.CounterVec
	splitMembers  *prometheus.CounterVec
	providerCalls *prometheus.CounterVec
	settlements   *prometheus.CounterVec
}

// New registers the collectors with reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bridge_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		feesApplied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_fees_applied_total",
			Help: "Fee lines applied by transaction type and payer.",
		}, []string{"tx_type", "payer"}),
		feeRevenue: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_fee_revenue_total",
			Help: "Fee revenue collected by transaction type.",
		}, []string{"tx_type"}),
		feeFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_fee_failures_total",
			Help: "Fee lines whose billing write or fund movement failed.",
		}, []string{"tx_type"}),
		intents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_payment_intents_total",
			Help: "Payment intent transitions by resulting status.",
		}, []string{"status"}),
		splitMembers: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_split_members_total",
			Help: "Split member outcomes by method and status.",
		}, []string{"method", "status"}),
		providerCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_provider_calls_total",
			Help: "External provider calls by action and outcome.",
		}, []string{"action", "ok"}),
		settlements: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_settlement_updates_total",
			Help: "Provider status updates by source and outcome.",
		}, []string{"source", "outcome"}),
	}
}

func (m *Metrics) HTTPRequest(method, route string, status int, took time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(took.Seconds())
}

func (m *Metrics) FeeApplied(txType, payer string, amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.feesApplied.WithLabelValues(txType, payer).Inc()
	m.feeRevenue.WithLabelValues(txType).Add(amount.InexactFloat64())
}

func (m *Metrics) FeeFailed(txType string) {
	if m == nil {
		return
	}
	m.feeFailures.WithLabelValues(txType).Inc()
}

func (m *Metrics) IntentStatus(status string) {
	if m == nil {
		return
	}
	m.intents.WithLabelValues(status).Inc()
}

func (m *Metrics) SplitMember(method, status string) {
	if m == nil {
		return
	}
	m.splitMembers.WithLabelValues(method, status).Inc()
}

func (m *Metrics) ProviderCall(action string, ok bool) {
	if m == nil {
		return
	}
	m.providerCalls.WithLabelValues(action, strconv.FormatBool(ok)).Inc()
}

func (m *Metrics) Settlement(source, outcome string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(source, outcome).Inc()
}
