// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extract

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

// extractTracerName is the OTel tracer name for extraction spans.
const extractTracerName = "apispec.extract"

var extractTracer = otel.Tracer(extractTracerName)

// Package-level Prometheus metrics for extraction.
// Auto-registered via promauto so no explicit registry wiring is needed.
var (
	// filesTotal counts processed source files.
	//
	// Labels:
	//   - status: "ok", "read_error", "too_large", "invalid_content"
	filesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "apispec",
			Subsystem: "extract",
			Name:      "files_total",
			Help:      "Total source files processed by outcome.",
		},
		[]string{"status"},
	)

	// endpointsTotal counts matched RPC method annotations, duplicates included.
	endpointsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "apispec",
			Subsystem: "extract",
			Name:      "endpoints_total",
			Help:      "Total RPC method annotations matched.",
		},
	)

	// dataTypesTotal counts matched serializable structures, duplicates included.
	dataTypesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "apispec",
			Subsystem: "extract",
			Name:      "data_types_total",
			Help:      "Total serializable structures matched.",
		},
	)

	// duplicatesTotal counts registry overwrites.
	//
	// Labels:
	//   - kind: "endpoint" or "data_type"
	duplicatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "apispec",
			Subsystem: "extract",
			Name:      "duplicates_total",
			Help:      "Total duplicate definitions overwritten in the registry.",
		},
		[]string{"kind"},
	)
)

// location formats file:line, or just file when line is unknown.
func location(file string, line int) string {
	if line <= 0 {
		return file
	}
	return file + ":" + strconv.Itoa(line)
}
