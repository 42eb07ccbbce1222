// Package metrics holds the Prometheus instruments for the social graph.
//
// Instruments are registered on a caller-supplied registry so that each test
// can use its own prometheus.NewRegistry() without duplicate-registration
// panics. All methods are safe on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "socialgraph"

type Metrics struct {
	// FollowTransitions counts follow edges entering a state.
	// Labels: status (unfollowed, requested, followed)
	FollowTransitions *prometheus.CounterVec

	// RequestResponses counts accepted and declined follow requests.
	// Labels: decision (accept, decline)
	RequestResponses *prometheus.CounterVec

	// LikeToggles counts like toggles by resulting state.
	// Labels: liked (true, false)
	LikeToggles *prometheus.CounterVec

	CommentsCreated prometheus.Counter
	PostsCreated    prometheus.Counter
	Signups         prometheus.Counter

	// HTTPRequestDuration observes request latency.
	// Labels: method, route, status
	HTTPRequestDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers every instrument on reg.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		FollowTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "follow_transitions_total",
			Help:      "Follow edges moved into a status by a toggle.",
		}, []string{"status"}),
		RequestResponses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "request_responses_total",
			Help:      "Follow requests accepted or declined.",
		}, []string{"decision"}),
		LikeToggles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engagement",
			Name:      "like_toggles_total",
			Help:      "Like toggles by resulting state.",
		}, []string{"liked"}),
		CommentsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engagement",
			Name:      "comments_created_total",
			Help:      "Comments added to posts.",
		}),
		PostsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engagement",
			Name:      "posts_created_total",
			Help:      "Posts created.",
		}),
		Signups: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "identity",
			Name:      "signups_total",
			Help:      "Accounts created.",
		}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		gatherer: reg,
	}
}

// NewWithRuntime is New plus the Go runtime and process collectors. Used by
// the server; tests stick to New.
func NewWithRuntime() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return New(reg)
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) FollowTransition(status string) {
	if m == nil {
		return
	}
	m.FollowTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) RequestResponse(decision string) {
	if m == nil {
		return
	}
	m.RequestResponses.WithLabelValues(decision).Inc()
}

func (m *Metrics) LikeToggle(liked bool) {
	if m == nil {
		return
	}
	label := "false"
	if liked {
		label = "true"
	}
	m.LikeToggles.WithLabelValues(label).Inc()
}

func (m *Metrics) CommentCreated() {
	if m == nil {
		return
	}
	m.CommentsCreated.Inc()
}

func (m *Metrics) PostCreated() {
	if m == nil {
		return
	}
	m.PostsCreated.Inc()
}

func (m *Metrics) Signup() {
	if m == nil {
		return
	}
	m.Signups.Inc()
}

// ObserveHTTP records one finished request.
func (m *Metrics) ObserveHTTP(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.WithLabelValues(method, route, status).Observe(seconds)
}
