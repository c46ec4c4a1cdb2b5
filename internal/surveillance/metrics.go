// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package surveillance

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courtrec_surveillance_request_total",
			Help: "Total number of web API request attempts against the video system",
		},
		[]string{"api", "method", "status_class"},
	)
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "courtrec_surveillance_request_duration_seconds",
			Help:    "Duration of web API requests per attempt",
			Buckets: prometheus.ExponentialBuckets(0.05, 2.0, 8),
		},
		[]string{"api", "method", "status_class"},
	)
	requestRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courtrec_surveillance_request_retries_total",
			Help: "Number of web API retries performed",
		},
		[]string{"api", "method", "status_class"},
	)
	apiFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courtrec_surveillance_api_failures_total",
			Help: "Envelopes returned with success=false, by API and error code",
		},
		[]string{"api", "code"},
	)
	sessionLogins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courtrec_surveillance_logins_total",
			Help: "Login attempts per session kind and outcome",
		},
		[]string{"session", "outcome"}, // outcome=success|failure
	)
	copyPolls = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "courtrec_surveillance_copy_polls",
		Help:    "Status polls needed per copy task",
		Buckets: []float64{1, 2, 5, 10, 30, 60, 120, 240},
	})
	copyOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courtrec_surveillance_copy_total",
		Help: "Copy tasks by terminal state",
	}, []string{"state"}) // state=finished|timed_out|failed
)

func statusClass(err error, status int) string {
	if err != nil {
		return "error"
	}
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	}
	return "unknown"
}

func recordAttemptMetrics(api, method string, status int, duration time.Duration, err error, retry bool) {
	class := statusClass(err, status)
	requestTotal.WithLabelValues(api, method, class).Inc()
	requestDuration.WithLabelValues(api, method, class).Observe(duration.Seconds())
	if retry {
		requestRetries.WithLabelValues(api, method, class).Inc()
	}
}

func recordAPIFailure(api string, code int) {
	apiFailures.WithLabelValues(api, strconv.Itoa(code)).Inc()
}
