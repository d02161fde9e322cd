package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Generate outcomes.
const (
	OutcomeCanned        = "canned"
	OutcomeGenerated     = "generated"
	OutcomeInvalid       = "invalid"
	OutcomeUnavailable   = "unavailable"
	OutcomeUpstreamError = "upstream_error"
	OutcomeTruncated     = "truncated"
	OutcomeAborted       = "aborted"
)

// Subscription check results.
const (
	CheckActive   = "active"
	CheckInactive = "inactive"
	CheckExpired  = "expired"
)

// Recorder owns the service counters on its own registry.
type Recorder struct {
	registry      *prometheus.Registry
	generate      *prometheus.CounterVec
	fragments     prometheus.Counter
	subscriptions prometheus.Counter
	checks        *prometheus.CounterVec
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		generate: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "handbook",
			Name:      "generate_requests_total",
			Help:      "Generate requests by outcome.",
		}, []string{"outcome"}),
		fragments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "handbook",
			Name:      "stream_fragments_total",
			Help:      "Text fragments written to generate responses.",
		}),
		subscriptions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "handbook",
			Name:      "subscriptions_total",
			Help:      "Successful subscribe calls.",
		}),
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "handbook",
			Name:      "subscription_checks_total",
			Help:      "Subscription status checks by result.",
		}, []string{"result"}),
	}
	r.registry.MustRegister(
		r.generate,
		r.fragments,
		r.subscriptions,
		r.checks,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) Generate(outcome string) {
	r.generate.WithLabelValues(outcome).Inc()
}

func (r *Recorder) Fragment() {
	r.fragments.Inc()
}

func (r *Recorder) Subscribed() {
	r.subscriptions.Inc()
}

func (r *Recorder) StatusChecked(result string) {
	r.checks.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
