// Package metrics exposes orchestration transitions as prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"imageproxy/internal/domain"
	"imageproxy/internal/imagegen"
)

// Collector implements imagegen.Observer on top of a private registry, so
// tests and multiple instances never touch the global default registry.
type Collector struct {
	registry *prometheus.Registry

	submissions *prometheus.CounterVec
	polls       *prometheus.CounterVec
	results     *prometheus.CounterVec
	pollsPerJob prometheus.Histogram
	duration    *prometheus.HistogramVec
}

// NewCollector registers the generation metrics plus the Go and process
// collectors under namespace.
func NewCollector(namespace string) *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_submissions_total",
			Help:      "Remote job submissions by outcome",
		},
		[]string{"outcome"},
	)
	c.polls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_polls_total",
			Help:      "Status polls by outcome",
		},
		[]string{"outcome"},
	)
	c.results = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_results_total",
			Help:      "Finished generation requests by result kind",
		},
		[]string{"result"},
	)
	c.pollsPerJob = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_polls_per_job",
			Help:      "Status polls needed before a job resolved",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 30},
		},
	)
	c.duration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Wall time of a generation request",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 45, 60, 90},
		},
		[]string{"result"},
	)

	c.registry.MustRegister(
		c.submissions,
		c.polls,
		c.results,
		c.pollsPerJob,
		c.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Handler serves the registry in the prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) SubmitStarted(context.Context, domain.GenerationRequest) {}

func (c *Collector) SubmitFailed(_ context.Context, err error) {
	c.submissions.WithLabelValues(submitOutcome(err)).Inc()
}

func (c *Collector) SubmitAccepted(context.Context, domain.JobHandle) {
	c.submissions.WithLabelValues("accepted").Inc()
}

func (c *Collector) PollStarted(context.Context, domain.JobHandle, int) {}

func (c *Collector) PollFailed(context.Context, domain.JobHandle, int, error) {
	c.polls.WithLabelValues("error").Inc()
}

func (c *Collector) PollPending(context.Context, domain.JobHandle, int, domain.JobStatus) {
	c.polls.WithLabelValues("pending").Inc()
}

func (c *Collector) Completed(_ context.Context, _ domain.JobHandle, attempt int, _ domain.JobStatus) {
	c.polls.WithLabelValues("succeeded").Inc()
	c.pollsPerJob.Observe(float64(attempt))
}

func (c *Collector) RemoteFailed(_ context.Context, _ domain.JobHandle, attempt int, _ domain.JobStatus) {
	c.polls.WithLabelValues("failed").Inc()
	c.pollsPerJob.Observe(float64(attempt))
}

func (c *Collector) TimedOut(_ context.Context, _ domain.JobHandle, attempts int) {
	c.pollsPerJob.Observe(float64(attempts))
}

func (c *Collector) Finished(_ context.Context, result domain.Result, elapsed time.Duration) {
	kind := string(result.Kind)
	c.results.WithLabelValues(kind).Inc()
	c.duration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func submitOutcome(err error) string {
	var upstream *domain.UpstreamError
	switch {
	case errors.Is(err, domain.ErrCredentialsUnavailable):
		return "no_credentials"
	case errors.As(err, &upstream):
		return "rejected"
	case errors.Is(err, domain.ErrInvalidRemoteResponse):
		return "invalid"
	default:
		return "error"
	}
}

var _ imagegen.Observer = (*Collector)(nil)
