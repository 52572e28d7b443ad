// Package metrics exposes Prometheus counters and histograms for job
// outcomes, registered against a private registry so multiple servers
// (notably in tests) never collide on the global default registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the metrics this server updates on every job outcome.
type Collector struct {
	registry *prometheus.Registry

	jobsProcessed prometheus.Counter
	jobsFailed    prometheus.Counter
	jobsRetried   prometheus.Counter
	jobsDead      prometheus.Counter
	jobDuration   prometheus.Histogram
}

// New creates a Collector with its own private registry.
func New() *Collector {
	registry := prometheus.NewRegistry()
	c := &Collector{
		registry: registry,
		jobsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "workhorse_jobs_processed_total",
			Help: "Jobs that completed without error.",
		}),
		jobsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "workhorse_jobs_failed_total",
			Help: "Jobs whose handler returned an error, retryable or not.",
		}),
		jobsRetried: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "workhorse_jobs_retried_total",
			Help: "Failures that were scheduled for a future retry.",
		}),
		jobsDead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "workhorse_jobs_dead_total",
			Help: "Failures whose retries were exhausted and were sent to the morgue.",
		}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "workhorse_job_duration_seconds",
			Help:    "Time spent executing a job through the middleware chain.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	registry.MustRegister(c.jobsProcessed, c.jobsFailed, c.jobsRetried, c.jobsDead, c.jobDuration)
	return c
}

func (c *Collector) ObserveSuccess(seconds float64) {
	c.jobsProcessed.Inc()
	c.jobDuration.Observe(seconds)
}

func (c *Collector) ObserveFailure(seconds float64) {
	c.jobsFailed.Inc()
	c.jobDuration.Observe(seconds)
}

func (c *Collector) IncRetried() { c.jobsRetried.Inc() }
func (c *Collector) IncDead()    { c.jobsDead.Inc() }

// RetriedCounter and DeadCounter expose the underlying counters for
// tests that need to assert on an exact value via promtest/testutil.
func (c *Collector) RetriedCounter() prometheus.Counter { return c.jobsRetried }
func (c *Collector) DeadCounter() prometheus.Counter    { return c.jobsDead }

// Handler serves this collector's registry in Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
