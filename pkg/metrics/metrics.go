// Package metrics defines the Prometheus metric collectors used by the codec
// service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal       *prometheus.CounterVec
	HTTPRequestDuration     *prometheus.HistogramVec
	HTTPRequestsInFlight    prometheus.Gauge
	SentencesEncodedTotal   *prometheus.CounterVec
	SentencesDecodedTotal   prometheus.Counter
	DecodeFailuresTotal     *prometheus.CounterVec
	AgreementFallbacksTotal *prometheus.CounterVec
	PayloadBytesTotal       *prometheus.CounterVec
	CacheHitsTotal          prometheus.Counter
	CacheMissesTotal        prometheus.Counter
	CodecDuration           *prometheus.HistogramVec
	DictionaryLemmas        *prometheus.GaugeVec
	MessagesReassembled     *prometheus.CounterVec
	CircuitBreakerState     *prometheus.GaugeVec
}

// New creates all metrics and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all metrics and registers them with reg. Tests
// pass a fresh prometheus.NewRegistry() so collectors never collide.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		SentencesEncodedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentences_encoded_total",
				Help: "Total sentences produced by sentence form.",
			},
			[]string{"form"},
		),
		SentencesDecodedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sentences_decoded_total",
				Help: "Total sentences decoded back to values.",
			},
		),
		DecodeFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "decode_failures_total",
				Help: "Total failed decodes by reason (lemma_not_found, malformed_token, overflow, invalid_chunk).",
			},
			[]string{"reason"},
		),
		AgreementFallbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agreement_fallbacks_total",
				Help: "Tokens rendered with the window's first form because no form agreed.",
			},
			[]string{"category"},
		),
		PayloadBytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payload_bytes_total",
				Help: "Payload bytes processed by direction (encode, decode).",
			},
			[]string{"direction"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "decode_cache_hits_total",
				Help: "Total number of decode cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "decode_cache_misses_total",
				Help: "Total number of decode cache misses.",
			},
		),
		CodecDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "codec_duration_seconds",
				Help:    "Payload encode/decode latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
			},
			[]string{"op"},
		),
		DictionaryLemmas: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dictionary_lemmas",
				Help: "Raw lemma count per category of the loaded dictionary.",
			},
			[]string{"category"},
		),
		MessagesReassembled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_messages_total",
				Help: "Relayed messages by outcome (complete, expired, failed).",
			},
			[]string{"outcome"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SentencesEncodedTotal,
		m.SentencesDecodedTotal,
		m.DecodeFailuresTotal,
		m.AgreementFallbacksTotal,
		m.PayloadBytesTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CodecDuration,
		m.DictionaryLemmas,
		m.MessagesReassembled,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
