package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the service's collectors on a private prometheus registry.
type Registry struct {
	reg *prometheus.Registry

	Quotes         *prometheus.CounterVec // by status
	Checkouts      *prometheus.CounterVec // by outcome
	WebhookEvents  *prometheus.CounterVec // by outcome
	Notifications  *prometheus.CounterVec // by outcome
	OrderEvents    *prometheus.CounterVec // by outcome
	ExtractSeconds *prometheus.HistogramVec
	QuoteWords     prometheus.Histogram
	HTTPDuration   *prometheus.HistogramVec // by method, route, status
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	quotes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rq_quotes_total",
		Help: "Quotes built, by result status.",
	}, []string{"status"})
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rq_checkouts_total",
		Help: "Checkout attempts, by outcome.",
	}, []string{"outcome"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rq_webhook_events_total",
		Help: "Payment events received, by outcome.",
	}, []string{"outcome"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rq_notifications_total",
		Help: "Receipt and confirmation sends, by outcome.",
	}, []string{"outcome"})
	orderEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rq_order_events_total",
		Help: "Order events published to the stream, by outcome.",
	}, []string{"outcome"})
	extract := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rq_extract_seconds",
		Help:    "Text extraction latency per document, by format.",
		Buckets: prometheus.DefBuckets,
	}, []string{"format"})
	words := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "rq_quote_words",
		Help:    "Total words per priced quote.",
		Buckets: prometheus.ExponentialBuckets(100, 4, 8),
	})

	httpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rq_http_request_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	r.MustRegister(quotes, checkouts, webhooks, notifications, orderEvents, extract, words, httpDuration)
	return &Registry{
		reg:            r,
		Quotes:         quotes,
		Checkouts:      checkouts,
		WebhookEvents:  webhooks,
		Notifications:  notifications,
		OrderEvents:    orderEvents,
		ExtractSeconds: extract,
		QuoteWords:     words,
		HTTPDuration:   httpDuration,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
