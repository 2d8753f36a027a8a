// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package assemble

import (
	"github.com/go-openapi/spec"
	"github.com/go-openapi/strfmt"
)

// OpenAPIVersion is the document format version emitted.
const OpenAPIVersion = "3.0.3"

// JSONMediaType is the only media type used for request and response bodies.
const JSONMediaType = "application/json"

// Document is the generated API description.
//
// Field order matches the emitted JSON: openapi, info, servers, tags, paths,
// components. Schema values are go-openapi schema objects.
type Document struct {
	OpenAPI    string              `json:"openapi"`
	Info       Info                `json:"info"`
	Servers    []Server            `json:"servers"`
	Tags       []Tag               `json:"tags"`
	Paths      map[string]PathItem `json:"paths"`
	Components Components          `json:"components"`
}

// Info is the document info object.
type Info struct {
	Title       string    `json:"title"`
	Version     string    `json:"version"`
	Description string    `json:"description"`
	Generated   Generated `json:"x-generated"`
}

// Generated records provenance of one generator run.
type Generated struct {
	Timestamp      strfmt.DateTime `json:"timestamp"`
	Source         string          `json:"source"`
	RunID          string          `json:"run_id"`
	MethodsFound   int             `json:"methods_found"`
	DataTypesFound int             `json:"data_types_found"`
}

// Server is one entry of the servers list.
type Server struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// Tag is one endpoint category.
type Tag struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// PathItem holds the single POST operation of an RPC path.
type PathItem struct {
	Post *Operation `json:"post,omitempty"`
}

// Operation describes one RPC method call.
type Operation struct {
	Summary     string              `json:"summary"`
	Description string              `json:"description"`
	OperationID string              `json:"operationId"`
	Tags        []string            `json:"tags"`
	RequestBody RequestBody         `json:"requestBody"`
	Responses   map[string]Response `json:"responses"`
}

// RequestBody is the JSON-RPC request envelope.
type RequestBody struct {
	Required bool                 `json:"required"`
	Content  map[string]MediaType `json:"content"`
}

// Response is one response entry keyed by status code.
type Response struct {
	Description string               `json:"description"`
	Content     map[string]MediaType `json:"content,omitempty"`
}

// MediaType carries the schema of a body.
type MediaType struct {
	Schema spec.Schema `json:"schema"`
}

// Components holds reusable schemas keyed by structure name.
type Components struct {
	Schemas map[string]spec.Schema `json:"schemas"`
}

// Operations returns every POST operation keyed by its RPC name.
func (d *Document) Operations() map[string]*Operation {
	out := make(map[string]*Operation, len(d.Paths))
	for path, item := range d.Paths {
		if item.Post == nil {
			continue
		}
		out[RPCNameFromPath(path)] = item.Post
	}
	return out
}

// PathFor returns the document path of an RPC method.
func PathFor(rpcName string) string {
	return "/" + rpcName
}

// RPCNameFromPath is the inverse of PathFor.
func RPCNameFromPath(path string) string {
	if len(path) > 0 && path[0] == '/' {
		return path[1:]
	}
	return path
}
