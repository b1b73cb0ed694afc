package metrics

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/aidarbekov/walletd/internal/health"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Auth metrics

	MagicLinksIssuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "walletd",
		Name:      "magic_links_issued_total",
		Help:      "Total magic links issued.",
	})

	MagicLinkVerifiesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "walletd",
		Name:      "magic_link_verifies_total",
		Help:      "Total magic link verification attempts, by outcome.",
	}, []string{"outcome"})

	// Wallet metrics

	TokenOpsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "walletd",
		Name:      "token_ops_total",
		Help:      "Total token mutations, by operation.",
	}, []string{"op"})

	// Sync metrics

	SyncEventsSentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "walletd",
		Name:      "sync_events_sent_total",
		Help:      "Sync envelopes sent to other contexts, by type and outcome.",
	}, []string{"type", "outcome"})

	SyncEventsReceivedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "walletd",
		Name:      "sync_events_received_total",
		Help:      "Sync envelopes received from other contexts, by type.",
	}, []string{"type"})

	// Mode gauges: 1 for the active backend/transport, 0 otherwise.

	StorageMode = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "walletd",
		Name:      "storage_mode",
		Help:      "Active storage backend. 1 = active.",
	}, []string{"mode"})

	SyncTransportMode = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "walletd",
		Name:      "sync_transport_mode",
		Help:      "Active cross-context transport. 1 = active.",
	}, []string{"mode"})

	// Janitor metrics

	LinksSweptTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "walletd",
		Name:      "magic_links_swept_total",
		Help:      "Stale magic links removed by the janitor.",
	})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "walletd",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "walletd",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		MagicLinksIssuedTotal,
		MagicLinkVerifiesTotal,
		TokenOpsTotal,
		SyncEventsSentTotal,
		SyncEventsReceivedTotal,
		StorageMode,
		SyncTransportMode,
		LinksSweptTotal,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

func NewServer(addr string, checker healthChecker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, checker.Liveness(r.Context()))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, checker.Readiness(r.Context()))
	})
	return &http.Server{Addr: addr, Handler: mux}
}

type healthChecker interface {
	Liveness(ctx context.Context) health.HealthResult
	Readiness(ctx context.Context) health.HealthResult
}

func writeHealth(w http.ResponseWriter, result health.HealthResult) {
	w.Header().Set("Content-Type", "application/json")
	if result.Status != "up" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(result)
}
