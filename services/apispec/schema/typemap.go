// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package schema

import (
	"strings"
)

// Wrapper syntax recognized by Map. Each wrapper is unwrapped one level at a time.
const (
	// ResultWrapper marks the outcome of a fallible RPC call.
	ResultWrapper = "RpcResult<"

	// OptionalWrapper marks a value that may be absent.
	OptionalWrapper = "Option<"

	// SequenceWrapper marks a homogeneous ordered collection.
	SequenceWrapper = "Vec<"

	// ReferencePrefix marks project RPC types that live in the components section.
	ReferencePrefix = "Rpc"

	// customTypePrefix prefixes the description of unrecognized expressions.
	customTypePrefix = "Custom type: "
)

// primitives is the fixed primitive table keyed by source type name.
var primitives = map[string]Primitive{
	"String":  {Name: "String", Kind: "string"},
	"str":     {Name: "str", Kind: "string"},
	"u64":     {Name: "u64", Kind: "integer", Format: "int64"},
	"u32":     {Name: "u32", Kind: "integer", Format: "int32"},
	"i64":     {Name: "i64", Kind: "integer", Format: "int64"},
	"i32":     {Name: "i32", Kind: "integer", Format: "int32"},
	"bool":    {Name: "bool", Kind: "boolean"},
	"f64":     {Name: "f64", Kind: "number", Format: "double"},
	"f32":     {Name: "f32", Kind: "number", Format: "float"},
	"Bytes":   {Name: "Bytes", Kind: "string", Description: "Hex-encoded bytes"},
	"Address": {Name: "Address", Kind: "string", Description: "Ethereum address"},
	"B256":    {Name: "B256", Kind: "string", Description: "Hash value"},
	"U256":    {Name: "U256", Kind: "string", Description: "Large integer as string"},
}

// Map converts a raw type expression into a canonical schema Type.
//
// Description:
//
//	Applies, in order: whitespace trim, result-wrapper strip, optional-wrapper
//	strip, sequence-wrapper recursion, primitive table lookup, project
//	reference prefix match, and finally the Object fallback. Unwrapping
//	re-enters the algorithm on the inner expression.
//
// Inputs:
//
//	expr - Raw type expression text, e.g. "RpcResult<Vec<Address>>".
//
// Outputs:
//
//	Type - Never nil. Unrecognized input degrades to Object.
//
// Thread Safety: Safe for concurrent use (pure function).
//
// Invariants:
//
//	Map(Map(x).Canonical()) equals Map(x) for every x.
func Map(expr string) Type {
	expr = strings.TrimSpace(expr)

	if inner, ok := unwrap(expr, ResultWrapper); ok {
		return Map(inner)
	}
	if inner, ok := unwrap(expr, OptionalWrapper); ok {
		return Map(inner)
	}
	if inner, ok := unwrap(expr, SequenceWrapper); ok {
		return Array{Item: Map(inner)}
	}

	if p, ok := primitives[expr]; ok {
		return p
	}

	if strings.HasPrefix(expr, ReferencePrefix) {
		return Reference{Name: expr}
	}

	return Object{Expr: expr, Description: customTypePrefix + expr}
}

// IsOptional reports whether the raw expression is wrapped in the optional wrapper.
//
// Callers use it to compute a parameter's required flag; it inspects only the
// outermost wrapper.
func IsOptional(expr string) bool {
	return strings.HasPrefix(strings.TrimSpace(expr), OptionalWrapper)
}

// unwrap strips a single level of "Prefix<...>" syntax.
func unwrap(expr, prefix string) (string, bool) {
	if !strings.HasPrefix(expr, prefix) || !strings.HasSuffix(expr, ">") {
		return "", false
	}
	if len(expr) < len(prefix)+1 {
		return "", false
	}
	return expr[len(prefix) : len(expr)-1], true
}
