package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the push service collectors on a private registry so several
// instances (tests, embedded servers) never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	consumed      prometheus.Counter
	delivered     prometheus.Counter
	failed        prometheus.Counter
	retried       prometheus.Counter
	gone          prometheus.Counter
	subscriptions *prometheus.CounterVec
	sendDuration  prometheus.Histogram
}

// New returns a Metrics collector with all series registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		consumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "push_messages_consumed_total",
			Help: "Order events consumed from the push queue",
		}),
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "push_messages_delivered_total",
			Help: "Order events delivered to every target subscription",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "push_messages_failed_total",
			Help: "Order events that could not be delivered",
		}),
		retried: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "push_send_retries_total",
			Help: "Web push send attempts that were retried",
		}),
		gone: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "push_endpoints_gone_total",
			Help: "Endpoints removed after a 404/410 from the push service",
		}),
		subscriptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "push_subscription_requests_total",
			Help: "Subscribe/unsubscribe requests handled by the API",
		}, []string{"operation", "result"}),
		sendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "push_send_duration_seconds",
			Help:    "Latency of single web push sends",
			Buckets: prometheus.DefBuckets,
		}),
	}
	m.registry.MustRegister(
		m.consumed, m.delivered, m.failed, m.retried, m.gone,
		m.subscriptions, m.sendDuration,
		prometheus.NewGoCollector(),
	)
	return m
}

func (m *Metrics) IncConsumed()  { m.consumed.Inc() }
func (m *Metrics) IncDelivered() { m.delivered.Inc() }
func (m *Metrics) IncFailed()    { m.failed.Inc() }
func (m *Metrics) IncRetried()   { m.retried.Inc() }
func (m *Metrics) IncGone()      { m.gone.Inc() }

// ObserveSend records the duration of one web push send in seconds.
func (m *Metrics) ObserveSend(seconds float64) { m.sendDuration.Observe(seconds) }

// IncSubscription counts an API subscribe/unsubscribe outcome.
func (m *Metrics) IncSubscription(operation, result string) {
	m.subscriptions.WithLabelValues(operation, result).Inc()
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
