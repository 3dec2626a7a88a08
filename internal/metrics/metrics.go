package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors, registered via Register.
var (
	regOK atomic.Bool

	jobLaunches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "jobkeep",
			Subsystem: "jobs",
			Name:      "launches_total",
			Help:      "Number of successful job launches.",
		},
	)
	jobOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jobkeep",
			Subsystem: "jobs",
			Name:      "outcomes_total",
			Help:      "Number of jobs reaching a terminal status.",
		}, []string{"status"},
	)
	jobsPruned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "jobkeep",
			Subsystem: "jobs",
			Name:      "pruned_total",
			Help:      "Number of terminal jobs removed by prune.",
		},
	)
	activeJobs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "jobkeep",
			Subsystem: "jobs",
			Name:      "active",
			Help:      "Jobs currently running with a live monitor.",
		},
	)
	depStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jobkeep",
			Subsystem: "deps",
			Name:      "starts_total",
			Help:      "Number of dependency process start attempts by result.",
		}, []string{"name", "result"},
	)
	depRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jobkeep",
			Subsystem: "deps",
			Name:      "retries_total",
			Help:      "Number of dependency start retries.",
		}, []string{"name"},
	)
)

// Register registers all collectors with r. Safe to call multiple times;
// calls after the first success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{jobLaunches, jobOutcomes, jobsPruned, activeJobs, depStarts, depRetries}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler serves Prometheus metrics for the default gatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Helpers below no-op until Register has been called.

func IncLaunch() {
	if regOK.Load() {
		jobLaunches.Inc()
	}
}

func IncOutcome(status string) {
	if regOK.Load() {
		jobOutcomes.WithLabelValues(status).Inc()
	}
}

func AddPruned(n int) {
	if regOK.Load() {
		jobsPruned.Add(float64(n))
	}
}

func IncActive() {
	if regOK.Load() {
		activeJobs.Inc()
	}
}

func DecActive() {
	if regOK.Load() {
		activeJobs.Dec()
	}
}

func IncDepStart(name, result string) {
	if regOK.Load() {
		depStarts.WithLabelValues(name, result).Inc()
	}
}

func IncDepRetry(name string) {
	if regOK.Load() {
		depRetries.WithLabelValues(name).Inc()
	}
}
