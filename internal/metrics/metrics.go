package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Webhook outcomes used as the "outcome" label.
const (
	OutcomeCreated      = "created"
	OutcomeDuplicate    = "duplicate"
	OutcomeUnauthorized = "unauthorized"
	OutcomeInvalid      = "invalid"
	OutcomeMisconfig    = "misconfigured"
	OutcomeFailed       = "failed"
)

type Registry struct {
	reg           *prometheus.Registry
	Webhooks      *prometheus.CounterVec
	SalesInserted prometheus.Counter
	Unattributed  prometheus.Counter
	IngestLatency prometheus.Histogram
	PublishErrors *prometheus.CounterVec
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sheettools_shopify_webhooks_total",
		Help: "Shopify order webhooks by outcome.",
	}, []string{"outcome"})
	inserted := prometheus.NewCounter(prometheus.CounterOpts{Name: "sheettools_sales_inserted_total"})
	unattributed := prometheus.NewCounter(prometheus.CounterOpts{Name: "sheettools_sales_unattributed_total"})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sheettools_ingest_latency_seconds",
		Buckets: prometheus.DefBuckets,
	})
	publishErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sheettools_event_publish_errors_total",
	}, []string{"sink"})

	r.MustRegister(webhooks, inserted, unattributed, latency, publishErrors)
	return &Registry{
		reg:           r,
		Webhooks:      webhooks,
		SalesInserted: inserted,
		Unattributed:  unattributed,
		IngestLatency: latency,
		PublishErrors: publishErrors,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
