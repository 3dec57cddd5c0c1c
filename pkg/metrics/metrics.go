// Package metrics exposes the Control Service and Babysitter's
// Prometheus metrics. Grounded on cuemby-warren's pkg/metrics/metrics.go:
// package-level vars registered once in init, a Handler() wrapping
// promhttp, a Timer helper for histogram observations.
//
// Only APIRequestsTotal and APIRequestDuration are updated, by the
// Control Service's metrics middleware. The job, datum and Babysitter
// metrics are registered and exported, but no code path increments or
// observes them, so they stay at zero.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	JobsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "falconeri_jobs_created_total",
		Help: "Total number of Jobs created via POST /jobs.",
	})

	JobsRetriedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "falconeri_jobs_retried_total",
		Help: "Total number of Jobs created via POST /jobs/<id>/retry.",
	})

	DatumsReservedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "falconeri_datums_reserved_total",
		Help: "Total number of successful reserve_next_datum claims.",
	})

	DatumsCompletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "falconeri_datums_completed_total",
		Help: "Total number of Datums that finished, by terminal status.",
	}, []string{"status"})

	BabysitterTickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "falconeri_babysitter_tick_duration_seconds",
		Help:    "Duration of a single Babysitter reconcile tick.",
		Buckets: prometheus.DefBuckets,
	})

	BabysitterZombiesMarkedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "falconeri_babysitter_zombies_marked_total",
		Help: "Total number of Datums marked error because their pod vanished.",
	})

	BabysitterVanishedJobsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "falconeri_babysitter_vanished_jobs_total",
		Help: "Total number of Jobs marked error because their Kubernetes workload vanished.",
	})

	APIRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "falconeri_api_requests_total",
		Help: "Total number of Control Service HTTP requests by method, path and status.",
	}, []string{"method", "path", "status"})

	APIRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "falconeri_api_request_duration_seconds",
		Help:    "Control Service HTTP request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

func init() {
	prometheus.MustRegister(
		JobsCreatedTotal,
		JobsRetriedTotal,
		DatumsReservedTotal,
		DatumsCompletedTotal,
		BabysitterTickDuration,
		BabysitterZombiesMarkedTotal,
		BabysitterVanishedJobsTotal,
		APIRequestsTotal,
		APIRequestDuration,
	)
}

// Handler returns the Prometheus scrape handler for GET /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures an operation's duration for later histogram observation.
type Timer struct {
	start time.Time
}

// NewTimer starts a Timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time on histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time on a labeled histogram.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}
