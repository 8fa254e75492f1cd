// Package metrics provides observability for the filters module.
// Cycle-level collectors track orchestration throughput; per-filter gauges
// expose the last update outcome and instant for each list.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	CycleDuration     prometheus.Histogram
	UpdateTasks       *prometheus.CounterVec
	UpdateStatus      *prometheus.GaugeVec
	UpdateTime        *prometheus.GaugeVec
	RulesTotal        *prometheus.GaugeVec
	EngineNotifyTotal prometheus.Counter
	CatalogRefreshes  prometheus.Counter
}

// New creates a Metrics instance with all filters module collectors registered
// on the default registry.
func New() *Metrics {
	return &Metrics{
		CycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sieve_filters_update_cycle_duration_seconds",
			Help:    "Duration of full filter update cycles",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}),
		UpdateTasks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sieve_filters_update_tasks_total",
			Help: "Per-filter update tasks by result",
		}, []string{"result"}),
		UpdateStatus: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sieve_filters_update_status",
			Help: "Whether the last update of this filter succeeded (1) or failed (0)",
		}, []string{"filter_id"}),
		UpdateTime: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sieve_filters_update_timestamp_seconds",
			Help: "Unix time of the last successful update of this filter",
		}, []string{"filter_id"}),
		RulesTotal: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sieve_filters_rules_total",
			Help: "Effective rule lines in the resolved content of this filter",
		}, []string{"filter_id"}),
		EngineNotifyTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sieve_filters_engine_notifications_total",
			Help: "Debounced rebuild notifications delivered downstream",
		}),
		CatalogRefreshes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sieve_filters_catalog_refreshes_total",
			Help: "Catalog index refresh attempts",
		}),
	}
}

// ObserveCycle records the duration of one update cycle.
// Call with time.Now() captured at cycle start.
func (m *Metrics) ObserveCycle(start time.Time) {
	if m != nil {
		m.CycleDuration.Observe(time.Since(start).Seconds())
	}
}

// RecordTaskSuccess marks one filter as freshly updated.
func (m *Metrics) RecordTaskSuccess(filterID string, ruleCount int) {
	if m != nil {
		m.UpdateTasks.WithLabelValues("success").Inc()
		m.UpdateStatus.WithLabelValues(filterID).Set(1)
		m.UpdateTime.WithLabelValues(filterID).SetToCurrentTime()
		m.RulesTotal.WithLabelValues(filterID).Set(float64(ruleCount))
	}
}

// RecordTaskFailure marks one filter's update as failed.
func (m *Metrics) RecordTaskFailure(filterID string) {
	if m != nil {
		m.UpdateTasks.WithLabelValues("failure").Inc()
		m.UpdateStatus.WithLabelValues(filterID).Set(0)
	}
}

// IncrementEngineNotifications counts a delivered rebuild signal.
func (m *Metrics) IncrementEngineNotifications() {
	if m != nil {
		m.EngineNotifyTotal.Inc()
	}
}

// IncrementCatalogRefreshes counts a catalog refresh attempt.
func (m *Metrics) IncrementCatalogRefreshes() {
	if m != nil {
		m.CatalogRefreshes.Inc()
	}
}
