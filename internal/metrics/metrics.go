// Package metrics provides Prometheus metrics for slotwatch.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "slotwatch"

var (
	// CyclesTotal counts finished poll cycles by result status.
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Total number of poll cycles by result",
		},
		[]string{"result"},
	)

	// CycleDuration measures poll cycle duration.
	CycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of poll cycles in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		},
		[]string{"result"},
	)

	// LoginsTotal counts login attempts by outcome.
	LoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Total number of portal logins",
		},
		[]string{"outcome"},
	)

	// NotificationsTotal counts notifier deliveries by outcome.
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Total number of notifications by outcome",
		},
		[]string{"outcome"},
	)

	// LimitedAccounts tracks accounts currently holding a daily-limit mark.
	LimitedAccounts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "limited_accounts",
			Help:      "Number of accounts marked as daily-limited",
		},
	)

	// Paused is 1 while polling is globally paused.
	Paused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "paused",
			Help:      "Global pause status (1 = paused, 0 = polling)",
		},
	)
)

// RecordCycle records one finished cycle.
func RecordCycle(result string, seconds float64) {
	CyclesTotal.WithLabelValues(result).Inc()
	CycleDuration.WithLabelValues(result).Observe(seconds)
}

// RecordLogin records a login attempt ("ok" or "failed").
func RecordLogin(outcome string) {
	LoginsTotal.WithLabelValues(outcome).Inc()
}

// RecordNotification records a delivery outcome (sent, failed, dropped, deduped).
func RecordNotification(outcome string) {
	NotificationsTotal.WithLabelValues(outcome).Inc()
}

func SetLimitedAccounts(n int) {
	LimitedAccounts.Set(float64(n))
}

func SetPaused(paused bool) {
	if paused {
		Paused.Set(1)
		return
	}
	Paused.Set(0)
}
