// Package metrics exposes the Prometheus metrics of the dashboard and the
// archive worker on a private registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kindlecrm"

// Upload results.
const (
	UploadOK      = "ok"
	UploadInvalid = "invalid"
	UploadError   = "error"
)

// Composition results.
const (
	ComposeOK      = "ok"
	ComposeInvalid = "invalid"
	ComposeFailed  = "failed"
)

type Metrics struct {
	registry *prometheus.Registry

	uploads          *prometheus.CounterVec
	rowsLoaded       prometheus.Counter
	invalidDates     prometheus.Counter
	invalidAmounts   prometheus.Counter
	compositions     *prometheus.CounterVec
	composeLatency   prometheus.Histogram
	draftsArchived   *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	activeSessions   prometheus.Gauge
	rateLimitedTotal prometheus.Counter
}

// New registers every metric on a fresh registry, together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	auto := promauto.With(reg)

	return &Metrics{
		registry: reg,
		uploads: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "CSV uploads by result.",
		}, []string{"result"}),
		rowsLoaded: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_loaded_total",
			Help:      "Donation rows loaded from valid uploads.",
		}),
		invalidDates: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_dates_total",
			Help:      "Donation dates that could not be parsed and were nulled.",
		}),
		invalidAmounts: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_amounts_total",
			Help:      "Donation amounts that could not be parsed and were nulled.",
		}),
		compositions: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compositions_total",
			Help:      "Message compositions by message type and result.",
		}, []string{"message_type", "result"}),
		composeLatency: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "composition_duration_seconds",
			Help:      "Latency of calls to the message composer.",
			Buckets:   []float64{.1, .25, .5, 1, 2, 4, 8, 16, 30},
		}),
		draftsArchived: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drafts_archived_total",
			Help:      "Drafts written to the archive sheet by result.",
		}, []string{"result"}),
		httpRequests: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "status_code"}),
		httpDuration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		activeSessions: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions held by the in-memory store.",
		}),
		rateLimitedTotal: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveUpload records the outcome of one upload.
func (m *Metrics) ObserveUpload(result string, rows, invalidDates, invalidAmounts int) {
	m.uploads.WithLabelValues(result).Inc()
	m.rowsLoaded.Add(float64(rows))
	m.invalidDates.Add(float64(invalidDates))
	m.invalidAmounts.Add(float64(invalidAmounts))
}

func (m *Metrics) ObserveComposition(messageType, result string, took time.Duration) {
	m.compositions.WithLabelValues(messageType, result).Inc()
	if result != ComposeInvalid {
		m.composeLatency.Observe(took.Seconds())
	}
}

func (m *Metrics) ObserveArchive(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.draftsArchived.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveHTTP(route, method string, status int, took time.Duration) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(took.Seconds())
}

func (m *Metrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

func (m *Metrics) IncRateLimited() {
	m.rateLimitedTotal.Inc()
}
