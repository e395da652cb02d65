package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the ledger and payout core.
type Metrics struct {
	// --- Ledger ---
	LedgerOps        *prometheus.CounterVec
	LedgerOpDuration *prometheus.HistogramVec
	RebuildDuration  prometheus.Gauge
	RebuildTxTotal   prometheus.Counter

	// --- Payout workflow ---
	PayoutSubmitted    *prometheus.CounterVec
	PayoutTransitions  *prometheus.CounterVec
	PayoutAutoApproved prometheus.Counter
	PayoutSettleFailed prometheus.Counter

	// --- External providers ---
	ProviderCalls    *prometheus.CounterVec
	ProviderDuration *prometheus.HistogramVec
	ProviderTimeouts *prometheus.CounterVec
	FraudFlagsRaised *prometheus.CounterVec

	// --- Persistence ---
	PersistBatchDur    prometheus.Histogram
	PersistBatchSize   prometheus.Histogram
	PersistRowsWritten prometheus.Counter
	PersistErrors      *prometheus.CounterVec

	// --- Publication ---
	PublishDrops    prometheus.Counter
	PublishedEvents *prometheus.CounterVec
	PublishErrors   prometheus.Counter

	// --- Reconciliation ---
	ReconcileRuns        *prometheus.CounterVec
	ReconcileDiscrepancy prometheus.Gauge
	ReconcileDuration    prometheus.Histogram

	// --- HTTP API ---
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	opBuckets := []float64{
		0.000005, 0.00001, 0.000025, 0.00005, 0.0001,
		0.00025, 0.0005, 0.001, 0.005, 0.01,
	}

	return &Metrics{
		LedgerOps: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "drawdash_ledger_ops_total",
			Help: "Ledger operations by outcome",
		}, []string{"op", "result"}),

		LedgerOpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "drawdash_ledger_op_duration_seconds",
			Help:    "Time to apply a ledger operation",
			Buckets: opBuckets,
		}, []string{"op"}),

		RebuildDuration: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "drawdash_ledger_rebuild_duration_seconds",
			Help: "Startup balance rebuild time",
		}),

		RebuildTxTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "drawdash_ledger_rebuild_transactions_total",
			Help: "Transactions replayed on startup",
		}),

		PayoutSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "drawdash_payout_submitted_total",
			Help: "Withdrawal submissions by outcome",
		}, []string{"result"}),

		PayoutTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "drawdash_payout_transitions_total",
			Help: "Payout request state transitions",
		}, []string{"from", "to"}),

		PayoutAutoApproved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "drawdash_payout_auto_approved_total",
			Help: "Requests auto-approved below the low-risk threshold",
		}),

		PayoutSettleFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "drawdash_payout_settle_failed_total",
			Help: "Settlement failures leaving a request in processing (operator queue)",
		}),

		ProviderCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "drawdash_provider_calls_total",
			Help: "Fraud/compliance provider calls by outcome",
		}, []string{"provider", "outcome"}),

		ProviderDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "drawdash_provider_call_duration_seconds",
			Help:    "Provider round-trip latency",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}, []string{"provider"}),

		ProviderTimeouts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "drawdash_provider_timeouts_total",
			Help: "Provider calls resolved by the conservative high-risk fallback",
		}, []string{"provider"}),

		FraudFlagsRaised: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "drawdash_fraud_flags_raised_total",
			Help: "Fraud flags opened by severity",
		}, []string{"severity"}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "drawdash_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "drawdash_persist_batch_size",
			Help:    "Records per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
		}),

		PersistRowsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "drawdash_persist_rows_written_total",
			Help: "Rows written to Postgres",
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "drawdash_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "drawdash_publish_drops_total",
			Help: "Events dropped due to full publish channel",
		}),

		PublishedEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "drawdash_published_events_total",
			Help: "Events published to NATS",
		}, []string{"subject"}),

		PublishErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "drawdash_publish_errors_total",
			Help: "NATS publish failures",
		}),

		ReconcileRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "drawdash_reconcile_runs_total",
			Help: "Reconciliation runs by resulting status",
		}, []string{"status"}),

		ReconcileDiscrepancy: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "drawdash_reconcile_discrepancy_ore",
			Help: "Last observed discrepancy (actual minus expected, øre)",
		}),

		ReconcileDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "drawdash_reconcile_duration_seconds",
			Help:    "Time to reconcile one date",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "drawdash_http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"route", "status"}),

		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "drawdash_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}, []string{"route"}),
	}
}
