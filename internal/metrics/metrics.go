// Package metrics exposes Prometheus instruments for the relay and ledger.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ChatRequests counts chat requests by terminal outcome.
	ChatRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_chat_requests_total",
			Help: "Chat requests by outcome (completed, disconnected, upstream_error, stream_error, rejected).",
		},
		[]string{"outcome"},
	)

	// RelayEvents counts events forwarded to callers by type.
	RelayEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_relay_events_total",
			Help: "Events forwarded to callers by event type.",
		},
		[]string{"type"},
	)

	// UpstreamLatency observes time until the upstream response headers arrive.
	UpstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_upstream_header_seconds",
			Help:    "Time from request start to upstream response headers.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"model"},
	)

	// BilledDollars sums final costs committed by the ledger.
	BilledDollars = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_billed_dollars_total",
			Help: "Final cost committed to the ledger, by tier and usage source.",
		},
		[]string{"tier", "source"},
	)

	// LedgerFailures counts ledger steps that failed and were logged.
	LedgerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_ledger_failures_total",
			Help: "Ledger failures by stage (account, debit, refill, turn).",
		},
		[]string{"stage"},
	)

	// AutoRefills counts auto-refill attempts by result.
	AutoRefills = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_auto_refills_total",
			Help: "Auto-refill attempts by result (succeeded, declined, error).",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(ChatRequests)
	prometheus.MustRegister(RelayEvents)
	prometheus.MustRegister(UpstreamLatency)
	prometheus.MustRegister(BilledDollars)
	prometheus.MustRegister(LedgerFailures)
	prometheus.MustRegister(AutoRefills)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
