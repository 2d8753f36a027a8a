// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package apispec

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var generatorTracer = otel.Tracer("apispec.generator")

var (
	// runsTotal counts pipeline runs.
	//
	// Labels:
	//   - status: "success" or "error"
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "apispec",
			Subsystem: "generator",
			Name:      "runs_total",
			Help:      "Total generator pipeline runs.",
		},
		[]string{"status"},
	)

	// runDuration measures a full pipeline run, scan through assembly.
	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "apispec",
			Subsystem: "generator",
			Name:      "run_duration_seconds",
			Help:      "Duration of generator pipeline runs in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	// lastEndpoints reports the endpoint count of the latest successful run.
	lastEndpoints = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "apispec",
			Subsystem: "generator",
			Name:      "endpoints",
			Help:      "Endpoints found by the latest successful run.",
		},
	)
)

func recordRun(start time.Time, endpoints int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	runsTotal.WithLabelValues(status).Inc()
	runDuration.Observe(time.Since(start).Seconds())
	if err == nil {
		lastEndpoints.Set(float64(endpoints))
	}
}
