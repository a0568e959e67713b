// Copyright 2026 The otv-backend Authors
// This file is part of the otv-backend library.

// Package metrics exposes job health to operators.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "otv",
		Name:      "job_runs_total",
		Help:      "Completed job invocations.",
	}, []string{"job"})

	JobFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "otv",
		Name:      "job_failures_total",
		Help:      "Job invocations that returned an error or panicked.",
	}, []string{"job"})

	JobDroppedTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "otv",
		Name:      "job_dropped_ticks_total",
		Help:      "Cron ticks dropped because the prior invocation was still running.",
	}, []string{"job"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "otv",
		Name:      "job_duration_seconds",
		Help:      "Wall-clock job duration.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"job"})
)

// Serve exposes the registry on addr. Runs until the listener fails.
func Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logrus.WithError(err).Error("Metrics listener stopped")
	}
}
