// Package watcher turns a stream of access-log lines into failover and
// upstream error-rate alerts.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/eugenenazirov/bluegreen/internal/accesslog"
	"github.com/eugenenazirov/bluegreen/internal/config"
	"github.com/eugenenazirov/bluegreen/internal/metrics"
	"github.com/eugenenazirov/bluegreen/internal/notify"
	"github.com/eugenenazirov/bluegreen/internal/storage"
)

// Alert kinds, also used as cooldown keys.
const (
	AlertFailover  = "failover"
	AlertErrorRate = "error_rate"
)

// errorRateCheckEvery is how many window entries pass between error-rate checks.
const errorRateCheckEvery = 10

// Notifier delivers an alert message.
type Notifier interface {
	Notify(ctx context.Context, msg notify.Message) error
}

// Monitor holds the watcher state. Process must not be called concurrently.
type Monitor struct {
	cfg         config.WatcherConfig
	notifier    Notifier
	store       storage.AlertStore
	window      *storage.Window[accesslog.Entry]
	metrics     *metrics.Metrics
	logger      *zap.Logger
	now         func() time.Time
	maintenance func() bool
	lastPool    string
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) Option {
	return func(m *Monitor) {
		m.now = clock
	}
}

// WithMaintenance overrides how maintenance mode is looked up per line.
func WithMaintenance(fn func() bool) Option {
	return func(m *Monitor) {
		m.maintenance = fn
	}
}

// New creates a Monitor. By default maintenance mode is re-read from the
// environment for every line, falling back to cfg.MaintenanceMode.
func New(cfg config.WatcherConfig, notifier Notifier, store storage.AlertStore, m *metrics.Metrics, logger *zap.Logger, opts ...Option) *Monitor {
	mon := &Monitor{
		cfg:      cfg,
		notifier: notifier,
		store:    store,
		window:   storage.NewWindow[accesslog.Entry](cfg.WindowSize),
		metrics:  m,
		logger:   logger,
		now: func() time.Time {
			return time.Now().UTC()
		},
		maintenance: func() bool {
			return config.MaintenanceMode(cfg.MaintenanceMode)
		},
	}
	for _, opt := range opts {
		opt(mon)
	}
	return mon
}

// Process handles one access-log line.
func (m *Monitor) Process(ctx context.Context, line string) {
	maintenance := m.maintenance()

	entry := accesslog.Parse(line)
	m.logger.Debug("log line parsed",
		zap.String("pool", entry.Pool),
		zap.String("upstream_status", entry.UpstreamStatus),
	)

	m.window.Push(entry)
	m.metrics.LinesProcessed.Inc()
	m.metrics.WindowEntries.Set(float64(m.window.Len()))

	if entry.Pool != "" && m.lastPool != "" && entry.Pool != m.lastPool {
		m.metrics.Failovers.Inc()
		m.raise(ctx, AlertFailover, maintenance, m.failoverMessage(m.lastPool, entry))
	}

	if n := m.window.Len(); n > 0 && n%errorRateCheckEvery == 0 {
		rate, total, errs := m.ErrorRate()
		m.metrics.ErrorRate.Set(rate)
		if rate >= m.cfg.ErrorRateThreshold {
			m.raise(ctx, AlertErrorRate, maintenance, m.errorRateMessage(rate, total, errs))
		}
	}

	if entry.Pool != "" {
		m.lastPool = entry.Pool
		m.metrics.SetActivePool(entry.Pool)
	}
}

// ErrorRate returns the 5xx percentage over the window along with the
// window size and the number of 5xx entries.
func (m *Monitor) ErrorRate() (rate float64, total, errs int) {
	total = m.window.Len()
	if total == 0 {
		return 0, 0, 0
	}
	m.window.Each(func(e accesslog.Entry) {
		if e.IsServerError() {
			errs++
		}
	})
	return float64(errs) / float64(total) * 100, total, errs
}

// LastPool returns the most recent non-empty pool seen.
func (m *Monitor) LastPool() string {
	return m.lastPool
}

func (m *Monitor) raise(ctx context.Context, kind string, maintenance bool, msg notify.Message) {
	log := m.logger.With(zap.String("alert", kind))

	if maintenance {
		log.Info("maintenance mode on; alert suppressed")
		m.metrics.Alerts.WithLabelValues(kind, metrics.OutcomeSuppressedMaintenance).Inc()
		return
	}

	now := m.now()
	if storage.InCooldown(m.store, kind, m.cfg.AlertCooldown, now) {
		log.Info("alert suppressed due to cooldown")
		m.metrics.Alerts.WithLabelValues(kind, metrics.OutcomeSuppressedCooldown).Inc()
		return
	}

	outcome := metrics.OutcomeSent
	if err := m.notifier.Notify(ctx, msg); err != nil {
		if errors.Is(err, notify.ErrNoWebhook) {
			outcome = metrics.OutcomeSkipped
		} else {
			outcome = metrics.OutcomeFailed
			log.Error("failed to send alert", zap.Error(err))
		}
	}
	m.metrics.Alerts.WithLabelValues(kind, outcome).Inc()
	m.store.MarkAlert(kind, now)
}

func (m *Monitor) failoverMessage(from string, entry accesslog.Entry) notify.Message {
	return notify.Message{
		Text: fmt.Sprintf(":rotating_light: *Failover detected*: pool changed from *%s* → *%s*", from, entry.Pool),
		Attachments: []notify.Attachment{{
			Fallback: "Failover Detected",
			Fields: []notify.Field{
				{Title: "From", Value: from, Short: true},
				{Title: "To", Value: entry.Pool, Short: true},
				{Title: "Recent Release", Value: orUnknown(entry.Release), Short: true},
				{Title: "Upstream", Value: orUnknown(entry.UpstreamAddr), Short: true},
				{Title: "Time", Value: m.now().UTC().Format(time.RFC3339), Short: true},
			},
		}},
	}
}

func (m *Monitor) errorRateMessage(rate float64, total, errs int) notify.Message {
	threshold := strconv.FormatFloat(m.cfg.ErrorRateThreshold, 'g', -1, 64)
	return notify.Message{
		Text: fmt.Sprintf(":warning: *High upstream 5xx rate*: %.2f%% 5xx over last %d requests (%d errors). Threshold: %s%%",
			rate, total, errs, threshold),
		Attachments: []notify.Attachment{{
			Fallback: "High error rate",
			Fields: []notify.Field{
				{Title: "Window", Value: strconv.Itoa(total), Short: true},
				{Title: "Errors", Value: strconv.Itoa(errs), Short: true},
				{Title: "Threshold (%)", Value: threshold, Short: true},
				{Title: "Last Pool", Value: orUnknown(m.lastPool), Short: true},
				{Title: "Time", Value: m.now().UTC().Format(time.RFC3339), Short: true},
			},
		}},
	}
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
