package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iho/boardbalance/internal/domain"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Reconciliation metrics
	Reconciliations     *prometheus.CounterVec
	ItemsRewritten      prometheus.Counter
	ReconcileDuration   prometheus.Histogram
	RollupsTotal        *prometheus.CounterVec
	RollupDuration      prometheus.Histogram
	WebhookEvents       *prometheus.CounterVec
	DuplicateDeliveries prometheus.Counter

	// Board API metrics
	UpstreamRequests *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
	UpstreamRetries  *prometheus.CounterVec
	PagesRead        prometheus.Counter

	// Lock metrics
	LockWait *prometheus.HistogramVec
}

// New creates all metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Reconciliations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boardbalance_reconciliations_total",
				Help: "Total reconciliations by outcome",
			},
			[]string{"status"},
		),
		ItemsRewritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "boardbalance_items_rewritten_total",
			Help: "Total balance cells written back",
		}),
		ReconcileDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "boardbalance_reconcile_duration_seconds",
			Help:    "Duration of reconciliations, board read and write-back included",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		RollupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boardbalance_rollups_total",
				Help: "Total rollups by outcome",
			},
			[]string{"status"},
		),
		RollupDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "boardbalance_rollup_duration_seconds",
			Help:    "Duration of rollups",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		WebhookEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boardbalance_webhook_events_total",
				Help: "Inbound webhook deliveries by kind",
			},
			[]string{"kind"},
		),
		DuplicateDeliveries: factory.NewCounter(prometheus.CounterOpts{
			Name: "boardbalance_webhook_duplicates_total",
			Help: "Webhook deliveries answered from the idempotency store",
		}),

		UpstreamRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boardbalance_upstream_requests_total",
				Help: "Board API requests by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		UpstreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "boardbalance_upstream_duration_seconds",
				Help:    "Board API request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		UpstreamRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boardbalance_upstream_retries_total",
				Help: "Board API requests retried after a transient failure",
			},
			[]string{"operation"},
		),
		PagesRead: factory.NewCounter(prometheus.CounterOpts{
			Name: "boardbalance_pages_read_total",
			Help: "Board item pages fetched",
		}),

		LockWait: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "boardbalance_board_lock_wait_seconds",
				Help:    "Time spent waiting for the per-board lock",
				Buckets: []float64{.001, .01, .1, .5, 1, 5, 15, 30, 60},
			},
			[]string{"outcome"},
		),
	}
}

// ObserveReconciliation records a finished reconciliation.
func (m *Metrics) ObserveReconciliation(status domain.RunStatus, itemsWritten int, duration time.Duration) {
	m.Reconciliations.WithLabelValues(string(status)).Inc()
	m.ItemsRewritten.Add(float64(itemsWritten))
	m.ReconcileDuration.Observe(duration.Seconds())
}

// ObserveRollup records a finished rollup.
func (m *Metrics) ObserveRollup(success bool, duration time.Duration) {
	status := "succeeded"
	if !success {
		status = "failed"
	}
	m.RollupsTotal.WithLabelValues(status).Inc()
	m.RollupDuration.Observe(duration.Seconds())
}

// ObserveUpstream records one board API request.
func (m *Metrics) ObserveUpstream(operation, outcome string, duration time.Duration) {
	m.UpstreamRequests.WithLabelValues(operation, outcome).Inc()
	m.UpstreamDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveLockWait records how long a board lock took to acquire.
func (m *Metrics) ObserveLockWait(acquired bool, wait time.Duration) {
	outcome := "acquired"
	if !acquired {
		outcome = "timeout"
	}
	m.LockWait.WithLabelValues(outcome).Observe(wait.Seconds())
}
