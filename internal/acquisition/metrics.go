// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package acquisition

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courtrec_acquisition_runs_total",
		Help: "Acquisition runs by terminal state",
	}, []string{"state"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "courtrec_acquisition_run_duration_seconds",
		Help:    "Wall time of one acquisition run",
		Buckets: []float64{1, 5, 30, 60, 300, 900, 1800, 3600},
	})

	bookingsSeen = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courtrec_acquisition_bookings_total",
		Help: "Bookings evaluated by the eligibility filter, by decision",
	}, []string{"decision"})

	dispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courtrec_acquisition_dispatch_total",
		Help: "Auto-download dispatches by outcome and reason",
	}, []string{"status", "reason"})

	dispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "courtrec_acquisition_dispatch_duration_seconds",
		Help:    "Duration of one auto-download dispatch",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 11),
	})

	lastRunTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "courtrec_acquisition_last_run_timestamp_seconds",
		Help: "Unix time the last acquisition run finished",
	})

	schedulerSkips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courtrec_acquisition_scheduler_skips_total",
		Help: "Scheduled slots that did not run, by reason",
	}, []string{"reason"}) // reason=locked|lock_error
)

func recordRun(s *RunSummary) {
	runsTotal.WithLabelValues(string(s.State)).Inc()
	runDuration.Observe(s.FinishedAt.Sub(s.StartedAt).Seconds())
	lastRunTimestamp.Set(float64(s.FinishedAt.Unix()))
}
