package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fundscore/internal/domain"
)

// Metrics holds the scoring pipeline's Prometheus collectors. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Runs          *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	Funds         *prometheus.GaugeVec
	Suppressed    *prometheus.GaugeVec
	LastSuccess   *prometheus.GaugeVec
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fundscore_runs_total",
				Help: "Scoring runs by category and outcome",
			},
			[]string{"category", "status"},
		),

		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fundscore_stage_duration_seconds",
				Help:    "Duration of each pipeline stage in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"category", "stage"},
		),

		Funds: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fundscore_funds",
				Help: "Funds in the last run by category and state",
			},
			[]string{"category", "state"},
		),

		Suppressed: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fundscore_suppressed_metrics",
				Help: "Metrics suppressed category-wide in the last run",
			},
			[]string{"category"},
		),

		LastSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fundscore_last_success_timestamp_seconds",
				Help: "Unix time of the last successful run per category",
			},
			[]string{"category"},
		),
	}

	m.registry.MustRegister(m.Runs, m.StageDuration, m.Funds, m.Suppressed, m.LastSuccess)
	return m
}

// ObserveStage records how long a stage took.
func (m *Metrics) ObserveStage(category, stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(category, stage).Observe(d.Seconds())
}

// RunFinished counts a run outcome.
func (m *Metrics) RunFinished(category, status string) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(category, status).Inc()
	if status == domain.RunStatusCompleted {
		m.LastSuccess.WithLabelValues(category).SetToCurrentTime()
	}
}

// SetFunds publishes the fund counts of a finished run.
func (m *Metrics) SetFunds(category string, universe, eligible, excluded, ranked, suppressed int) {
	if m == nil {
		return
	}
	m.Funds.WithLabelValues(category, "universe").Set(float64(universe))
	m.Funds.WithLabelValues(category, "eligible").Set(float64(eligible))
	m.Funds.WithLabelValues(category, "excluded").Set(float64(excluded))
	m.Funds.WithLabelValues(category, "ranked").Set(float64(ranked))
	m.Suppressed.WithLabelValues(category).Set(float64(suppressed))
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
