package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels shared by use case metrics and logs.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics holds the collectors the shop exports.
type Metrics struct {
	registry *prometheus.Registry

	useCaseRequests *prometheus.CounterVec
	useCaseDuration *prometheus.HistogramVec
	purchaseLines   *prometheus.CounterVec
	purchaseAmount  prometheus.Counter
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry, so tests can build as many
// instances as they need.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		useCaseRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "usecase_requests_total",
			Help: "Use case invocations by outcome.",
		}, []string{"use_case", "outcome"}),
		useCaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "usecase_duration_seconds",
			Help: "Use case latency.", Buckets: prometheus.DefBuckets,
		}, []string{"use_case"}),
		purchaseLines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "purchase_lines_total",
			Help: "Cart lines processed by purchases, by result.",
		}, []string{"result"}),
		purchaseAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "purchase_amount_cents_total",
			Help: "Sum of issued ticket amounts in minor units.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help: "HTTP request latency by route.", Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	reg.MustRegister(m.useCaseRequests, m.useCaseDuration, m.purchaseLines, m.purchaseAmount, m.httpRequests, m.httpDuration)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveUseCase(useCase, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.useCaseRequests.WithLabelValues(useCase, outcome).Inc()
	m.useCaseDuration.WithLabelValues(useCase).Observe(elapsed.Seconds())
}

func (m *Metrics) ObservePurchase(purchased, notPurchased int, amountCents int64) {
	if m == nil {
		return
	}
	m.purchaseLines.WithLabelValues("purchased").Add(float64(purchased))
	m.purchaseLines.WithLabelValues("not_purchased").Add(float64(notPurchased))
	m.purchaseAmount.Add(float64(amountCents))
}

func (m *Metrics) ObserveHTTP(route, method, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, status).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}
