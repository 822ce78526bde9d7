// Package metrics exposes prometheus counters for the price monitor.
// All methods are safe on a nil *Metrics so callers may run without metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Cycles            prometheus.Counter
	CycleDuration     prometheus.Histogram
	Fetches           *prometheus.CounterVec // labels: asset, result
	LastPrice         *prometheus.GaugeVec   // labels: asset
	Alerts            *prometheus.CounterVec // labels: asset, direction
	Notifications     *prometheus.CounterVec // labels: result
	LedgerWriteErrors prometheus.Counter
	Digests           *prometheus.CounterVec // labels: result
}

// New registers all metrics on reg, prometheus.DefaultRegisterer when nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		Cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crypto_alert_cycles_total",
			Help: "Total monitor cycles run",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crypto_alert_cycle_duration_seconds",
			Help:    "Duration of a full monitor cycle",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crypto_alert_price_fetches_total",
			Help: "Price fetches by asset and result (ok or failure reason)",
		}, []string{"asset", "result"}),
		LastPrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "crypto_alert_last_price",
			Help: "Last successfully fetched price",
		}, []string{"asset"}),
		Alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crypto_alert_alerts_total",
			Help: "Threshold alerts by asset and direction",
		}, []string{"asset", "direction"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crypto_alert_notifications_total",
			Help: "Notification attempts by result",
		}, []string{"result"}),
		LedgerWriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crypto_alert_ledger_write_errors_total",
			Help: "Failed ledger appends",
		}),
		Digests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crypto_alert_digests_total",
			Help: "Digest runs by result",
		}, []string{"result"}),
	}
	reg.MustRegister(
		m.Cycles, m.CycleDuration, m.Fetches, m.LastPrice,
		m.Alerts, m.Notifications, m.LedgerWriteErrors, m.Digests,
	)
	return m
}

func (m *Metrics) ObserveCycle(start time.Time) {
	if m == nil {
		return
	}
	m.Cycles.Inc()
	m.CycleDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveFetch(asset, result string, price float64) {
	if m == nil {
		return
	}
	m.Fetches.WithLabelValues(asset, result).Inc()
	if result == "ok" {
		m.LastPrice.WithLabelValues(asset).Set(price)
	}
}

func (m *Metrics) ObserveAlert(asset, direction string) {
	if m == nil {
		return
	}
	m.Alerts.WithLabelValues(asset, direction).Inc()
}

func (m *Metrics) ObserveNotify(result string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveLedgerWriteError() {
	if m == nil {
		return
	}
	m.LedgerWriteErrors.Inc()
}

func (m *Metrics) ObserveDigest(result string) {
	if m == nil {
		return
	}
	m.Digests.WithLabelValues(result).Inc()
}
