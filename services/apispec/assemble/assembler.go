// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package assemble composes the API document from a filled registry and
// writes it to disk.
package assemble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-openapi/spec"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/apispec/services/apispec/extract"
	"github.com/AleutianAI/apispec/services/apispec/group"
)

var assembleTracer = otel.Tracer("apispec.assemble")

// ErrNilRegistry is returned when Assemble is called without a registry.
var ErrNilRegistry = errors.New("registry must not be nil")

// Defaults for Options fields left empty.
const (
	DefaultTitle  = "SuperRelay Auto-Generated API"
	DefaultSource = "automatic source analysis"
)

// Options configures document-level metadata.
type Options struct {
	Title string

	// Description overrides the generated "... (N API methods found)" text.
	Description string

	Servers []Server

	// Source is recorded as info.x-generated.source.
	Source string
}

// Assembler builds Documents.
//
// Thread Safety: Safe for concurrent use if the Grouper is; Assemble keeps no state.
type Assembler struct {
	opts    Options
	grouper *group.Grouper
	logger  *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewAssembler creates an Assembler.
//
// Inputs:
//
//	opts - Document metadata. Empty Title and Source take defaults.
//	grouper - Endpoint classifier. Nil classifies everything as group.OtherCategory.
//	logger - Nil uses slog.Default().
func NewAssembler(opts Options, grouper *group.Grouper, logger *slog.Logger) *Assembler {
	if opts.Title == "" {
		opts.Title = DefaultTitle
	}
	if opts.Source == "" {
		opts.Source = DefaultSource
	}
	if grouper == nil {
		grouper = group.NewGrouper(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		opts:    opts,
		grouper: grouper,
		logger:  logger,
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
	}
}

// Assemble composes the document for reg.
//
// Description:
//
//	Every endpoint becomes a POST operation at /<rpc name> tagged with its
//	category; every data type becomes a component schema. Tags list the
//	configured categories in declared order, followed by group.OtherCategory
//	only when some endpoint fell through to it. The timestamp is UTC with
//	millisecond precision so it survives a JSON round trip unchanged.
//
// Inputs:
//
//	ctx - Context for tracing.
//	reg - Filled registry. Must not be nil.
//	version - Document version.
//
// Outputs:
//
//	*Document - The assembled document.
//	error - ErrNilRegistry.
func (a *Assembler) Assemble(ctx context.Context, reg *extract.Registry, version string) (*Document, error) {
	_, span := assembleTracer.Start(ctx, "assemble.Assembler.Assemble")
	defer span.End()

	if reg == nil {
		return nil, ErrNilRegistry
	}

	endpoints := reg.Endpoints()
	dataTypes := reg.DataTypes()

	description := a.opts.Description
	if description == "" {
		description = fmt.Sprintf("Automatically generated API documentation (%d API methods found)", len(endpoints))
	}

	servers := a.opts.Servers
	if servers == nil {
		servers = []Server{}
	}

	doc := &Document{
		OpenAPI: OpenAPIVersion,
		Info: Info{
			Title:       a.opts.Title,
			Version:     version,
			Description: description,
			Generated: Generated{
				Timestamp:      strfmt.DateTime(a.now().UTC().Truncate(time.Millisecond)),
				Source:         a.opts.Source,
				RunID:          a.newID(),
				MethodsFound:   len(endpoints),
				DataTypesFound: len(dataTypes),
			},
		},
		Servers:    servers,
		Paths:      make(map[string]PathItem, len(endpoints)),
		Components: Components{Schemas: make(map[string]spec.Schema, len(dataTypes))},
	}

	usesOther := false
	for _, ep := range endpoints {
		category := a.grouper.Categorize(ep.RPCName)
		if category == group.OtherCategory {
			usesOther = true
		}
		doc.Paths[PathFor(ep.RPCName)] = PathItem{Post: buildOperation(ep, category)}
	}

	doc.Tags = make([]Tag, 0, len(a.grouper.Categories())+1)
	for _, name := range a.grouper.Categories() {
		doc.Tags = append(doc.Tags, Tag{Name: name, Description: a.grouper.Description(name)})
	}
	if usesOther {
		doc.Tags = append(doc.Tags, Tag{Name: group.OtherCategory, Description: "Uncategorized methods"})
	}

	for _, dt := range dataTypes {
		doc.Components.Schemas[dt.Name] = buildComponent(dt)
	}

	span.SetAttributes(
		attribute.Int("endpoints", len(endpoints)),
		attribute.Int("data_types", len(dataTypes)),
		attribute.String("version", version),
	)
	a.logger.Debug("document assembled",
		slog.Int("endpoints", len(endpoints)),
		slog.Int("data_types", len(dataTypes)),
		slog.String("run_id", doc.Info.Generated.RunID),
	)

	return doc, nil
}

// =============================================================================
// Operation Construction
// =============================================================================

func buildOperation(ep extract.Endpoint, category string) *Operation {
	return &Operation{
		Summary:     fmt.Sprintf("%s - %s", ep.MethodName, ep.RPCName),
		Description: fmt.Sprintf("%s\n\n**Source**: `%s:%d`", ep.Description, ep.File, ep.Line),
		OperationID: ep.RPCName,
		Tags:        []string{category},
		RequestBody: RequestBody{
			Required: true,
			Content: map[string]MediaType{
				JSONMediaType: {Schema: requestSchema(ep)},
			},
		},
		Responses: map[string]Response{
			"200": {
				Description: "Success response - " + ep.ReturnExpr,
				Content: map[string]MediaType{
					JSONMediaType: {Schema: responseSchema(ep)},
				},
			},
		},
	}
}

// requestSchema builds the JSON-RPC request envelope for ep.
//
// params is a positional array; minItems counts required parameters and
// maxItems all of them. Per-position detail is carried in x-parameters.
func requestSchema(ep extract.Endpoint) spec.Schema {
	required := int64(0)
	names := make([]string, 0, len(ep.Parameters))
	detail := make([]map[string]any, 0, len(ep.Parameters))
	for _, p := range ep.Parameters {
		if p.Required {
			required++
		}
		names = append(names, p.Name)
		detail = append(detail, map[string]any{
			"name":     p.Name,
			"required": p.Required,
			"schema":   p.Type.ToSpec(),
		})
	}
	total := int64(len(ep.Parameters))

	params := spec.ArrayProperty(&spec.Schema{})
	params.Description = fmt.Sprintf("Parameters: %v", names)
	params.MinItems = &required
	params.MaxItems = &total
	params.AddExtension("x-parameters", detail)

	return envelope(map[string]spec.Schema{
		"jsonrpc": stringExample("2.0"),
		"method":  stringExample(ep.RPCName),
		"params":  *params,
		"id":      integerExample(1),
	})
}

func responseSchema(ep extract.Endpoint) spec.Schema {
	return envelope(map[string]spec.Schema{
		"jsonrpc": stringExample("2.0"),
		"result":  ep.ReturnType.ToSpec(),
		"id":      *spec.Int64Property(),
	})
}

func envelope(props map[string]spec.Schema) spec.Schema {
	s := spec.Schema{}
	s.Type = spec.StringOrArray{"object"}
	s.Properties = spec.SchemaProperties(props)
	return s
}

func stringExample(v string) spec.Schema {
	s := *spec.StringProperty()
	s.Example = v
	return s
}

func integerExample(v int64) spec.Schema {
	s := spec.Schema{}
	s.Type = spec.StringOrArray{"integer"}
	s.Example = v
	return s
}

// =============================================================================
// Component Construction
// =============================================================================

func buildComponent(dt extract.DataType) spec.Schema {
	props := make(spec.SchemaProperties, len(dt.Fields))
	for name, t := range dt.Fields {
		props[name] = t.ToSpec()
	}
	kind := dt.Kind
	if kind == "" {
		kind = "object"
	}
	s := spec.Schema{}
	s.Type = spec.StringOrArray{kind}
	s.Properties = props
	s.AddExtension("x-source-file", dt.File)
	return s
}
