// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingest metrics
	TweetsFetched    prometheus.Counter
	TweetsStored     prometheus.Counter
	SignalsExtracted prometheus.Counter
	IngestErrors     *prometheus.CounterVec

	// Execution metrics
	SignalsClaimed  prometheus.Counter
	TradesCompleted prometheus.Counter
	TradesFailed    *prometheus.CounterVec
	TradesRejected  *prometheus.CounterVec

	// Latency metrics
	IngestDuration    prometheus.Histogram
	ExecutionDuration *prometheus.HistogramVec
	RPCCallLatency    *prometheus.HistogramVec

	// Health metrics
	LastSuccessfulPoll prometheus.Gauge
	PendingSignals     prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "signal_trader"
	}

	return &Metrics{
		TweetsFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "tweets_fetched_total",
			Help:      "Total number of tweets fetched from timelines",
		}),
		TweetsStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "tweets_stored_total",
			Help:      "Total number of new tweets stored",
		}),
		SignalsExtracted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "signals_extracted_total",
			Help:      "Total number of token signals extracted and stored",
		}),
		IngestErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "errors_total",
			Help:      "Total number of ingest errors by stage",
		}, []string{"stage"}),

		SignalsClaimed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "signals_claimed_total",
			Help:      "Total number of signals claimed for execution",
		}),
		TradesCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "trades_completed_total",
			Help:      "Total number of trades confirmed on-chain",
		}),
		TradesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "trades_failed_total",
			Help:      "Total number of failed trade attempts by reason",
		}, []string{"reason"}),
		TradesRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "trades_rejected_total",
			Help:      "Total number of trades rejected by risk limits",
		}, []string{"limit"}),

		IngestDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "pass_duration_seconds",
			Help:      "Duration of one account ingest pass",
			Buckets:   prometheus.DefBuckets,
		}),
		ExecutionDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "duration_seconds",
			Help:      "Duration of swap execution by outcome",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}, []string{"outcome"}),
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_duration_seconds",
			Help:      "Latency of Solana RPC calls by method",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		LastSuccessfulPoll: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_poll_timestamp_seconds",
			Help:      "Unix timestamp of the last successful dispatch pass",
		}),
		PendingSignals: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "pending_signals",
			Help:      "Number of signals awaiting execution at last poll",
		}),
	}
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
