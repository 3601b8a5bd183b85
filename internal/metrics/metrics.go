// Package metrics holds the Prometheus collectors for enrichment and the
// background retrier.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "linkvault"

// Metrics is safe to share; a nil *Metrics disables recording.
type Metrics struct {
	registry *prometheus.Registry

	Enrichments       *prometheus.CounterVec
	ExtractorDuration *prometheus.HistogramVec
	BreakerOpen       prometheus.Gauge
	MetadataRetries   *prometheus.CounterVec
}

// New registers all collectors on a fresh registry, together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Enrichments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_total",
			Help:      "Enrichments by outcome (extracted, cached or fallback).",
		}, []string{"outcome"}),
		ExtractorDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extractor_request_duration_seconds",
			Help:      "Duration of calls to the text extraction endpoint.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15},
		}, []string{"outcome"}),
		BreakerOpen: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "extractor_breaker_open",
			Help:      "1 while the extractor circuit breaker is open.",
		}),
		MetadataRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metadata_retry_total",
			Help:      "Background metadata attempts by result (success, failed, dropped).",
		}, []string{"result"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveEnrichment(outcome string) {
	if m == nil {
		return
	}
	m.Enrichments.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveExtractor(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.ExtractorDuration.WithLabelValues(outcome).Observe(seconds)
}

func (m *Metrics) SetBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.BreakerOpen.Set(1)
		return
	}
	m.BreakerOpen.Set(0)
}

func (m *Metrics) ObserveRetry(result string) {
	if m == nil {
		return
	}
	m.MetadataRetries.WithLabelValues(result).Inc()
}
