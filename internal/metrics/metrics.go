package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Alert outcomes recorded in the alerts_total counter.
const (
	OutcomeSent                  = "sent"
	OutcomeFailed                = "failed"
	OutcomeSkipped               = "skipped"
	OutcomeSuppressedCooldown    = "suppressed_cooldown"
	OutcomeSuppressedMaintenance = "suppressed_maintenance"
)

// Metrics holds all Prometheus metrics for the watcher
type Metrics struct {
	LinesProcessed prometheus.Counter
	Failovers      prometheus.Counter
	Alerts         *prometheus.CounterVec
	ErrorRate      prometheus.Gauge
	WindowEntries  prometheus.Gauge
	ActivePool     *prometheus.GaugeVec
}

// New creates a new Metrics instance registered on the default registry
// NewWithRegistry creates a new Metrics instance with a custom registry
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		LinesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "watcher_log_lines_processed_total",
			Help: "Total number of access-log lines processed",
		}),
		Failovers: factory.NewCounter(prometheus.CounterOpts{
			Name: "watcher_failovers_total",
			Help: "Total number of pool changes observed in the access log",
		}),
		Alerts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "watcher_alerts_total",
				Help: "Alerts raised by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		ErrorRate: factory.NewGauge(prometheus.GaugeOpts{
			Name: "watcher_upstream_error_rate_percent",
			Help: "Upstream 5xx percentage over the sliding window at the last check",
		}),
		WindowEntries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "watcher_window_entries",
			Help: "Number of entries currently held in the sliding window",
		}),
		ActivePool: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "watcher_active_pool",
				Help: "1 for the pool that served the most recent request, 0 otherwise",
			},
			[]string{"pool"},
		),
	}
}

// SetActivePool marks pool as the one currently serving traffic.
func (m *Metrics) SetActivePool(pool string) {
	m.ActivePool.Reset()
	m.ActivePool.WithLabelValues(pool).Set(1)
}

// Handler returns the Prometheus metrics HTTP handler for gatherer
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
