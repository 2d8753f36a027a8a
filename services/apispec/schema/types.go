// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package schema maps raw Rust type expressions onto a small canonical
// schema-type model and renders that model as OpenAPI schema objects.
package schema

import (
	"github.com/go-openapi/spec"
)

// ComponentsRefPrefix is the JSON pointer prefix for component schema references.
const ComponentsRefPrefix = "#/components/schemas/"

// Type is a canonical schema type.
//
// Description:
//
//	Type is a closed tagged variant: Primitive, Array, Reference or Object.
//	Every variant can render itself back into a canonical type expression
//	(Canonical) and into an OpenAPI schema object (ToSpec).
//
// Thread Safety: All variants are immutable values and safe for concurrent use.
type Type interface {
	// Canonical returns a type expression that maps back to the same Type.
	Canonical() string

	// ToSpec renders the type as an OpenAPI schema object.
	ToSpec() spec.Schema

	isType()
}

// Primitive is a scalar type from the fixed primitive table.
type Primitive struct {
	// Name is the source-level type name that matched (e.g. "u64", "Address").
	Name string

	// Kind is the JSON schema type: "string", "integer", "number" or "boolean".
	Kind string

	// Format is the optional JSON schema format (e.g. "int64", "double").
	Format string

	// Description is the optional human-readable description (domain aliases).
	Description string
}

// Array is a homogeneous ordered collection.
type Array struct {
	// Item is the element type. Never nil when produced by Map.
	Item Type
}

// Reference names a structure expected in the components registry.
// Resolution is not enforced.
type Reference struct {
	Name string
}

// Object is the fallback for type expressions the mapper does not recognize.
type Object struct {
	// Expr is the trimmed, unwrapped type expression that was not recognized.
	Expr string

	// Description explains the fallback, always "Custom type: " + Expr.
	Description string
}

func (Primitive) isType() {}
func (Array) isType()     {}
func (Reference) isType() {}
func (Object) isType()    {}

// Canonical returns the source type name.
func (p Primitive) Canonical() string { return p.Name }

// Canonical returns "Vec<item>".
func (a Array) Canonical() string {
	if a.Item == nil {
		return SequenceWrapper + ">"
	}
	return SequenceWrapper + a.Item.Canonical() + ">"
}

// Canonical returns the referenced name.
func (r Reference) Canonical() string { return r.Name }

// Canonical returns the unrecognized expression.
func (o Object) Canonical() string { return o.Expr }

// ToSpec renders the primitive with its kind, format and description.
func (p Primitive) ToSpec() spec.Schema {
	s := spec.Schema{}
	s.Type = spec.StringOrArray{p.Kind}
	s.Format = p.Format
	s.Description = p.Description
	return s
}

// ToSpec renders an array schema with the item schema inlined.
func (a Array) ToSpec() spec.Schema {
	var item spec.Schema
	if a.Item != nil {
		item = a.Item.ToSpec()
	} else {
		item = Object{Description: "Custom type: "}.ToSpec()
	}
	return *spec.ArrayProperty(&item)
}

// ToSpec renders a $ref into the components section.
//
// A name that cannot form a valid reference URI degrades to an object schema
// so that rendering never fails.
func (r Reference) ToSpec() spec.Schema {
	ref, err := spec.NewRef(ComponentsRefPrefix + r.Name)
	if err != nil {
		return Object{Expr: r.Name, Description: "Custom type: " + r.Name}.ToSpec()
	}
	return spec.Schema{SchemaProps: spec.SchemaProps{Ref: ref}}
}

// ToSpec renders a generic object schema carrying the fallback description.
func (o Object) ToSpec() spec.Schema {
	s := spec.Schema{}
	s.Type = spec.StringOrArray{"object"}
	s.Description = o.Description
	return s
}
