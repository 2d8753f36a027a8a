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
	"log/slog"
	"sort"

	"github.com/AleutianAI/apispec/services/apispec/schema"
)

// =============================================================================
// Extracted Entities
// =============================================================================

// Endpoint is one annotated RPC method.
type Endpoint struct {
	// RPCName is the externally exposed method name. Unique registry key.
	RPCName string

	// MethodName is the identifier of the annotated function.
	MethodName string

	// Description is the joined doc comment, or NoDescription.
	Description string

	// Parameters are the declared parameters in source order, self excluded.
	Parameters []Parameter

	// ReturnExpr is the raw return type expression ("void" when absent).
	ReturnExpr string

	// ReturnType is ReturnExpr mapped through schema.Map.
	ReturnType schema.Type

	// File is the source path relative to the scan root, forward slashes.
	File string

	// Line is the 1-based line of the annotation.
	Line int
}

// Parameter is one declared RPC parameter.
type Parameter struct {
	Name     string
	Type     schema.Type
	Required bool
}

// DataType is one serializable structure.
type DataType struct {
	// Name is the structure name. Unique registry key.
	Name string

	// Kind is always "object".
	Kind string

	// Fields maps serialized field name to its schema type.
	Fields map[string]schema.Type

	// File is the source path relative to the scan root, forward slashes.
	File string
}

// DuplicateKind distinguishes endpoint and data type collisions.
type DuplicateKind string

const (
	DuplicateEndpoint DuplicateKind = "endpoint"
	DuplicateDataType DuplicateKind = "data_type"
)

// Duplicate records one overwrite of an existing registry key.
type Duplicate struct {
	Kind DuplicateKind

	// Name is the colliding key.
	Name string

	// PreviousFile and PreviousLine locate the definition that was replaced.
	// PreviousLine is zero for data types.
	PreviousFile string
	PreviousLine int

	// File and Line locate the definition that won.
	File string
	Line int
}

// =============================================================================
// Registry
// =============================================================================

// Registry collects endpoints and data types during one pipeline pass.
//
// Description:
//
//	Keys are write-once-per-definition with last-write-wins overwrite
//	semantics. Every overwrite is logged as a warning and recorded so callers
//	can surface duplicate definitions instead of losing them silently.
//
// Thread Safety:
//
//	Not safe for concurrent mutation. The pipeline that fills a Registry is
//	sequential; once the pass completes the Registry is treated as read-only.
type Registry struct {
	endpoints  map[string]Endpoint
	dataTypes  map[string]DataType
	duplicates []Duplicate
	logger     *slog.Logger
}

// NewRegistry creates an empty Registry. A nil logger uses slog.Default().
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		endpoints: make(map[string]Endpoint),
		dataTypes: make(map[string]DataType),
		logger:    logger,
	}
}

// PutEndpoint inserts or overwrites the endpoint keyed by its RPC name.
func (r *Registry) PutEndpoint(ep Endpoint) {
	if prev, exists := r.endpoints[ep.RPCName]; exists {
		dup := Duplicate{
			Kind:         DuplicateEndpoint,
			Name:         ep.RPCName,
			PreviousFile: prev.File,
			PreviousLine: prev.Line,
			File:         ep.File,
			Line:         ep.Line,
		}
		r.duplicates = append(r.duplicates, dup)
		duplicatesTotal.WithLabelValues(string(DuplicateEndpoint)).Inc()
		r.logger.Warn("duplicate RPC method definition, last one wins",
			slog.String("rpc_method", ep.RPCName),
			slog.String("previous", location(prev.File, prev.Line)),
			slog.String("winner", location(ep.File, ep.Line)),
		)
	}
	r.endpoints[ep.RPCName] = ep
}

// PutDataType inserts or overwrites the data type keyed by its name.
func (r *Registry) PutDataType(dt DataType) {
	if prev, exists := r.dataTypes[dt.Name]; exists {
		r.duplicates = append(r.duplicates, Duplicate{
			Kind:         DuplicateDataType,
			Name:         dt.Name,
			PreviousFile: prev.File,
			File:         dt.File,
		})
		duplicatesTotal.WithLabelValues(string(DuplicateDataType)).Inc()
		r.logger.Warn("duplicate data structure definition, last one wins",
			slog.String("struct", dt.Name),
			slog.String("previous", prev.File),
			slog.String("winner", dt.File),
		)
	}
	r.dataTypes[dt.Name] = dt
}

// Endpoint returns the endpoint registered under rpcName.
func (r *Registry) Endpoint(rpcName string) (Endpoint, bool) {
	ep, ok := r.endpoints[rpcName]
	return ep, ok
}

// DataType returns the data type registered under name.
func (r *Registry) DataType(name string) (DataType, bool) {
	dt, ok := r.dataTypes[name]
	return dt, ok
}

// Endpoints returns all endpoints sorted by RPC name.
func (r *Registry) Endpoints() []Endpoint {
	out := make([]Endpoint, 0, len(r.endpoints))
	for _, ep := range r.endpoints {
		out = append(out, ep)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RPCName < out[j].RPCName })
	return out
}

// DataTypes returns all data types sorted by name.
func (r *Registry) DataTypes() []DataType {
	out := make([]DataType, 0, len(r.dataTypes))
	for _, dt := range r.dataTypes {
		out = append(out, dt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// EndpointCount returns the number of distinct RPC names.
func (r *Registry) EndpointCount() int { return len(r.endpoints) }

// DataTypeCount returns the number of distinct structure names.
func (r *Registry) DataTypeCount() int { return len(r.dataTypes) }

// Duplicates returns every recorded overwrite in the order it happened.
func (r *Registry) Duplicates() []Duplicate {
	out := make([]Duplicate, len(r.duplicates))
	copy(out, r.duplicates)
	return out
}
