// Package metrics holds the Prometheus collectors of the relay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Send outcomes.
const (
	ResultSent           = "sent"
	ResultInvalid        = "invalid"
	ResultNotConfigured  = "not_configured"
	ResultSegmentFailed  = "segment_failed"
	ResultPersistFailed  = "persist_failed"
	ResultDeliveryFailed = "delivery_failed"
)

// Segmentation failure reasons.
const (
	ReasonSuffixTooLong = "suffix_too_long"
	ReasonExhausted     = "exhausted"
)

type Metrics struct {
	MessagesTotal       *prometheus.CounterVec
	PartsSentTotal      prometheus.Counter
	SegmentFailures     *prometheus.CounterVec
	PartsPerMessage     prometheus.Histogram
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		MessagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smsrelay_messages_total",
				Help: "Total number of SMS send requests by outcome",
			},
			[]string{"result"},
		),
		PartsSentTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "smsrelay_parts_sent_total",
				Help: "Total number of SMS parts handed to the delivery channel",
			},
		),
		SegmentFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smsrelay_segment_failures_total",
				Help: "Total number of messages that could not be segmented",
			},
			[]string{"reason"},
		),
		PartsPerMessage: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "smsrelay_parts_per_message",
				Help:    "Number of parts per segmented message",
				Buckets: []float64{1, 2, 3, 5, 10, 20, 50, 100, 1000},
			},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smsrelay_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_class"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "smsrelay_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		),
	}
}

// StatusClass buckets an HTTP status code as 2xx, 4xx and so on.
func StatusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
