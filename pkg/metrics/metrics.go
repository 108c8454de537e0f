// Package metrics exposes solver run statistics in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arnavshah/shift-solver-api/pkg/models"
)

// Collector holds the solver metrics on its own registry. A nil *Collector is
// valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	solveRuns      *prometheus.CounterVec
	assignedSlots  prometheus.Counter
	shortfalls     prometheus.Counter
	criticalShifts prometheus.Counter
	solveDuration  prometheus.Histogram
	fairness       prometheus.Gauge
	manualAssigns  *prometheus.CounterVec
	rangeDays      *prometheus.CounterVec
}

// NewCollector creates and registers the solver metrics
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		solveRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "solver_runs_total",
			Help: "Solve runs by outcome",
		}, []string{"outcome"}),
		assignedSlots: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "solver_assigned_slots_total",
			Help: "People added to shifts by the batch solver",
		}),
		shortfalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "solver_shortfalls_total",
			Help: "Role buckets left unfilled after a solve run",
		}),
		criticalShifts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "solver_critical_shifts_total",
			Help: "Shifts processed in the critical phase",
		}),
		solveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "solver_run_duration_seconds",
			Help:    "Wall time of one solve run",
			Buckets: prometheus.DefBuckets,
		}),
		fairness: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "solver_fairness_score",
			Help: "Fairness score of the most recent solve run",
		}),
		manualAssigns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "solver_manual_assignments_total",
			Help: "Interactive assignment attempts by result",
		}, []string{"result"}),
		rangeDays: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "solver_range_days_total",
			Help: "Days processed by multi-day runs by status",
		}, []string{"status"}),
	}

	c.registry.MustRegister(
		c.solveRuns,
		c.assignedSlots,
		c.shortfalls,
		c.criticalShifts,
		c.solveDuration,
		c.fairness,
		c.manualAssigns,
		c.rangeDays,
		collectors.NewGoCollector(),
	)
	return c
}

// Registry returns the registry the metrics live on
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// RecordSolve records one successful solve run
func (c *Collector) RecordSolve(res *models.SolveResult, elapsed time.Duration) {
	if c == nil || res == nil {
		return
	}
	c.solveRuns.WithLabelValues("success").Inc()
	c.assignedSlots.Add(float64(res.AssignedCount))
	c.shortfalls.Add(float64(len(res.Diagnostics.Shortfalls)))
	c.criticalShifts.Add(float64(len(res.Diagnostics.CriticalShiftIDs)))
	c.solveDuration.Observe(elapsed.Seconds())
	c.fairness.Set(res.FairnessScore)
}

// RecordSolveError records a solve run that returned an error
func (c *Collector) RecordSolveError() {
	if c == nil {
		return
	}
	c.solveRuns.WithLabelValues("error").Inc()
}

// RecordManual records an interactive assignment attempt. result is
// "accepted" or a rejection reason.
func (c *Collector) RecordManual(result string) {
	if c == nil {
		return
	}
	c.manualAssigns.WithLabelValues(result).Inc()
}

// RecordDay records the status of one day of a multi-day run
func (c *Collector) RecordDay(status models.DayStatus) {
	if c == nil {
		return
	}
	c.rangeDays.WithLabelValues(string(status)).Inc()
}

// Handler serves the metrics in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
