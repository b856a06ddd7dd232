package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/blackmichael/subreddit-relay/internal/domain"
)

const namespace = "relay"

// Metrics holds the relay's Prometheus collectors on a dedicated registry.
// It implements domain.Metrics.
type Metrics struct {
	Registry *prometheus.Registry

	PostsTotal   *prometheus.CounterVec
	SendsTotal   *prometheus.CounterVec
	FeedRestarts prometheus.Counter
}

var _ domain.Metrics = (*Metrics)(nil)

// New registers the relay collectors, plus the Go runtime and process
// collectors, on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		PostsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "posts_total",
				Help:      "Posts processed by outcome",
			},
			[]string{"outcome"},
		),
		SendsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sends_total",
				Help:      "Channel send attempts by method and result",
			},
			[]string{"method", "result"}, // "ok", "error"
		),
		FeedRestarts: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feed_restarts_total",
				Help:      "Times the source feed was resubscribed after failing",
			},
		),
	}
}

// PostProcessed counts a finished pipeline pass.
func (m *Metrics) PostProcessed(outcome domain.Outcome) {
	m.PostsTotal.WithLabelValues(string(outcome)).Inc()
}

// SendAttempted counts one transport call.
func (m *Metrics) SendAttempted(method string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.SendsTotal.WithLabelValues(method, result).Inc()
}

// FeedRestarted counts a feed resubscription.
func (m *Metrics) FeedRestarted() {
	m.FeedRestarts.Inc()
}
