// Package api provides Prometheus metrics for the ledger engine.
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dvnam/ledger-engine/engine"
)

// Metrics holds all Prometheus metrics for the ledger.
type Metrics struct {
	// Transaction metrics
	TransactionsSubmitted prometheus.Counter
	TransactionsApplied   prometheus.Counter
	TransactionsRejected  *prometheus.CounterVec
	SettleLatency         prometheus.Histogram

	// System metrics
	PendingTotal prometheus.Gauge
	Accounts     prometheus.Gauge
	WorkerLoad   *prometheus.GaugeVec
	QueueDepth   *prometheus.GaugeVec
}

// NewMetrics creates a new Metrics instance with the given namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		TransactionsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_submitted_total",
			Help:      "Total number of transactions accepted by the dispatcher",
		}),
		TransactionsApplied: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_applied_total",
			Help:      "Total number of transactions successfully applied",
		}),
		TransactionsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_rejected_total",
			Help:      "Total number of rejected transactions by reason",
		}, []string{"reason"}),
		SettleLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "settle_latency_seconds",
			Help:      "Time from submission to settling in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),

		PendingTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_transactions",
			Help:      "Current number of accepted but unsettled transactions",
		}),
		Accounts: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "accounts",
			Help:      "Number of accounts seen by the dispatcher",
		}),
		WorkerLoad: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_load",
			Help:      "In-flight transactions assigned per worker",
		}, []string{"worker"}),
		QueueDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_queue_depth",
			Help:      "Queued messages per worker",
		}, []string{"worker"}),
	}
}

// RecordSubmit records one accepted transaction.
func (m *Metrics) RecordSubmit() {
	m.TransactionsSubmitted.Inc()
}

// RecordResult records one settled transaction.
func (m *Metrics) RecordResult(res engine.Result) {
	m.SettleLatency.Observe(res.Latency.Seconds())

	switch {
	case res.Err == nil:
		m.TransactionsApplied.Inc()
	case errors.Is(res.Err, engine.ErrInsufficientFunds):
		m.TransactionsRejected.WithLabelValues("insufficient_funds").Inc()
	case errors.Is(res.Err, engine.ErrUnknownAccount):
		m.TransactionsRejected.WithLabelValues("unknown_account").Inc()
	default:
		m.TransactionsRejected.WithLabelValues("other").Inc()
	}
}

// UpdateStats refreshes the system gauges from a ledger snapshot.
func (m *Metrics) UpdateStats(stats engine.Stats) {
	m.PendingTotal.Set(float64(stats.PendingTotal))
	m.Accounts.Set(float64(stats.Accounts))

	for w, load := range stats.WorkerLoads {
		m.WorkerLoad.WithLabelValues(strconv.Itoa(w)).Set(float64(load))
	}
	for w, depth := range stats.QueueDepths {
		m.QueueDepth.WithLabelValues(strconv.Itoa(w)).Set(float64(depth))
	}
}

// MetricsServer runs an HTTP server exposing /metrics endpoint.
type MetricsServer struct {
	server *http.Server
}

// NewMetricsServer creates a new metrics server on the given address.
func NewMetricsServer(addr string) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return &MetricsServer{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start starts the metrics server (blocking).
func (s *MetricsServer) Start() error {
	return s.server.ListenAndServe()
}

// StartAsync starts the metrics server in a goroutine.
func (s *MetricsServer) StartAsync() {
	go func() {
		_ = s.server.ListenAndServe()
	}()
}

// Stop gracefully stops the metrics server.
func (s *MetricsServer) Stop() error {
	return s.server.Close()
}
