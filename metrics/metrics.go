// Package metrics exposes Prometheus metrics for the web server and the
// auth activity it records.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/goliatone/go-router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goliatone/r6-tools/auth"
)

const namespace = "r6tools"

var _ auth.ActivitySink = &Metrics{}

// Metrics holds all Prometheus metrics for the server.
// Pass to components that need to record metrics.
type Metrics struct {
	AuthEvents       *prometheus.CounterVec
	StateTransitions *prometheus.CounterVec
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	now              func() time.Time
}

// New creates and registers all metrics with the given registry.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		AuthEvents: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_events_total",
				Help:      "Total auth activity events by type",
			},
			[]string{"event"}, // event=auth.signin.success, auth.signout...
		),
		StateTransitions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_state_transitions_total",
				Help:      "Total auth provider state transitions",
			},
			[]string{"from", "to"},
		),
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests handled",
			},
			[]string{"method", "result"}, // result=ok/error
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		now: time.Now,
	}
}

// Record implements auth.ActivitySink.
func (m *Metrics) Record(_ context.Context, event auth.ActivityEvent) error {
	m.AuthEvents.WithLabelValues(string(event.EventType)).Inc()

	if event.EventType == auth.ActivityEventStateChanged {
		m.StateTransitions.WithLabelValues(event.FromStatus.String(), event.ToStatus.String()).Inc()
	}

	return nil
}

// Middleware times every request and counts handler errors
func (m *Metrics) Middleware() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			start := m.now()
			err := next(ctx)

			result := "ok"
			if err != nil {
				result = "error"
			}

			method := ctx.Method()
			m.RequestsTotal.WithLabelValues(method, result).Inc()
			m.RequestDuration.WithLabelValues(method).Observe(m.now().Sub(start).Seconds())

			return err
		}
	}
}

// Handler serves the metrics gathered by g
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
