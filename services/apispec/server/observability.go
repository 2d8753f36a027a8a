// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var serverTracer = otel.Tracer("apispec.server")

var (
	// regenerationsTotal counts served-document regenerations.
	//
	// Labels:
	//   - status: "success", "warning" (document produced with errors) or "error"
	regenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "apispec",
			Subsystem: "server",
			Name:      "regenerations_total",
			Help:      "Total document regenerations by the server.",
		},
		[]string{"status"},
	)

	// wsClients tracks connected websocket clients.
	wsClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "apispec",
			Subsystem: "server",
			Name:      "websocket_clients",
			Help:      "Connected websocket clients.",
		},
	)

	// watchEventsTotal counts relevant file events seen by the watcher.
	watchEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "apispec",
			Subsystem: "server",
			Name:      "watch_events_total",
			Help:      "Relevant file system events seen by the watcher.",
		},
	)
)
