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
	"regexp"
	"strings"

	"github.com/AleutianAI/apispec/services/apispec/schema"
)

const (
	// NoDescription is used when no doc comment precedes a method.
	NoDescription = "No description available"

	// VoidReturn is the raw return expression recorded when a method declares none.
	VoidReturn = "void"

	// DefaultNamespaceSeparator joins an RPC namespace and method name.
	DefaultNamespaceSeparator = "_"

	// docLookback bounds how many lines above an annotation are searched for docs.
	docLookback = 10
)

var (
	// methodPattern matches `#[method(name = "x", ...)] [pub] [async] fn ident<...>(params) [-> ret]`.
	// Groups: 1 rpc name, 2 function ident, 3 parameter list, 4 return expression.
	methodPattern = regexp.MustCompile(
		`#\[method\(\s*name\s*=\s*"([^"]+)"[^\n]*?\)\]\s*(?:pub\s+)?(?:async\s+)?fn\s+(\w+)\s*(?:<[^>(]*>)?\s*\(([^)]*)\)\s*(?:->\s*([^{;]+))?`,
	)

	// rpcAttrPattern matches the trait-level `#[rpc(...)]` attribute.
	rpcAttrPattern = regexp.MustCompile(`#\[rpc\(([^\]]*)\)\]`)

	namespacePattern = regexp.MustCompile(`namespace\s*=\s*"([^"]+)"`)

	whereClausePattern = regexp.MustCompile(`\bwhere\b`)

	paramNamePattern = regexp.MustCompile(`^\w+$`)
)

// MethodOptions configures a MethodExtractor.
type MethodOptions struct {
	// ApplyNamespace prefixes RPC names with the namespace of the nearest
	// preceding #[rpc(namespace = "...")] attribute.
	ApplyNamespace bool

	// NamespaceSeparator joins namespace and name. Empty means DefaultNamespaceSeparator.
	NamespaceSeparator string
}

// MethodExtractor finds annotated RPC method declarations in source text.
//
// Thread Safety: Safe for concurrent use; holds only immutable configuration.
type MethodExtractor struct {
	opts   MethodOptions
	logger *slog.Logger
}

// NewMethodExtractor creates a MethodExtractor. A nil logger uses slog.Default().
func NewMethodExtractor(opts MethodOptions, logger *slog.Logger) *MethodExtractor {
	if opts.NamespaceSeparator == "" {
		opts.NamespaceSeparator = DefaultNamespaceSeparator
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MethodExtractor{opts: opts, logger: logger}
}

// Extract returns every annotated RPC method declared in content.
//
// Description:
//
//	Matches the method annotation pattern over the whole file text. For each
//	match it computes the 1-based line of the annotation, the doc comment
//	description, the parameter list and the return type. Matches are returned
//	in source order; the caller merges them into a Registry.
//
// Inputs:
//
//	content - Full file text.
//	file - Source path recorded on each endpoint (relative, forward slashes).
//
// Outputs:
//
//	[]Endpoint - Possibly empty, never nil.
func (m *MethodExtractor) Extract(content, file string) []Endpoint {
	matches := methodPattern.FindAllStringSubmatchIndex(content, -1)
	endpoints := make([]Endpoint, 0, len(matches))

	var rpcAttrs [][]int
	if m.opts.ApplyNamespace {
		rpcAttrs = rpcAttrPattern.FindAllStringSubmatchIndex(content, -1)
	}

	for _, loc := range matches {
		start := loc[0]
		rpcName := content[loc[2]:loc[3]]
		methodName := content[loc[4]:loc[5]]
		rawParams := content[loc[6]:loc[7]]

		returnExpr := VoidReturn
		if loc[8] >= 0 {
			returnExpr = cleanReturnExpr(content[loc[8]:loc[9]])
		}

		if m.opts.ApplyNamespace {
			if ns := namespaceBefore(content, rpcAttrs, start); ns != "" {
				rpcName = ns + m.opts.NamespaceSeparator + rpcName
			}
		}

		ep := Endpoint{
			RPCName:     rpcName,
			MethodName:  methodName,
			Description: extractDoc(content, start),
			Parameters:  m.parseParameters(rawParams, rpcName),
			ReturnExpr:  returnExpr,
			ReturnType:  schema.Map(returnExpr),
			File:        file,
			Line:        strings.Count(content[:start], "\n") + 1,
		}
		endpoints = append(endpoints, ep)
	}

	return endpoints
}

// extractDoc walks upward from the annotation collecting `///` doc lines.
//
// Description:
//
//	Looks at no more than docLookback lines above start. Doc lines are
//	collected with the marker stripped; ordinary `//` comments, blank lines
//	and other attribute lines (`#...`) are skipped; any other line stops the
//	walk. Collected lines are joined top-down with single spaces.
func extractDoc(content string, start int) string {
	lines := strings.Split(content[:start], "\n")
	if len(lines) > docLookback {
		lines = lines[len(lines)-docLookback:]
	}

	var collected []string
walk:
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		switch {
		case strings.HasPrefix(line, "///"):
			if text := strings.TrimSpace(line[3:]); text != "" {
				collected = append(collected, text)
			}
		case strings.HasPrefix(line, "//"):
			continue
		case line == "" || strings.HasPrefix(line, "#"):
			continue
		default:
			break walk
		}
	}

	if len(collected) == 0 {
		return NoDescription
	}
	for i, j := 0, len(collected)-1; i < j; i, j = i+1, j-1 {
		collected[i], collected[j] = collected[j], collected[i]
	}
	return strings.Join(collected, " ")
}

// parseParameters turns a raw parameter list into Parameters.
//
// The list is split on top-level commas so that generic arguments such as
// HashMap<K, V> stay intact. Receivers and unnamed patterns are dropped; a
// repeated name keeps its first occurrence.
func (m *MethodExtractor) parseParameters(raw, rpcName string) []Parameter {
	params := []Parameter{}
	seen := make(map[string]bool)

	for _, piece := range splitTopLevel(raw) {
		name, typeExpr, ok := splitNameType(piece)
		if !ok || name == "self" {
			continue
		}
		if seen[name] {
			m.logger.Debug("repeated parameter name ignored",
				slog.String("rpc_method", rpcName),
				slog.String("param", name),
			)
			continue
		}
		seen[name] = true
		params = append(params, Parameter{
			Name:     name,
			Type:     schema.Map(typeExpr),
			Required: !schema.IsOptional(typeExpr),
		})
	}
	return params
}

// splitTopLevel splits s on commas that are not nested in <>, () or [].
func splitTopLevel(s string) []string {
	var parts []string
	depth := 0
	last := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '(', '[':
			depth++
		case '>':
			// "->" in fn pointer types is not a closing bracket.
			if i > 0 && s[i-1] == '-' {
				continue
			}
			if depth > 0 {
				depth--
			}
		case ')', ']':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	parts = append(parts, s[last:])
	return parts
}

// splitNameType parses "[mut] name: Type" into its parts.
func splitNameType(piece string) (string, string, bool) {
	piece = strings.TrimSpace(piece)
	colon := singleColonIndex(piece)
	if colon < 0 {
		return "", "", false
	}
	name := strings.TrimSpace(piece[:colon])
	name = strings.TrimSpace(strings.TrimPrefix(name, "mut "))
	if !paramNamePattern.MatchString(name) {
		return "", "", false
	}
	typeExpr := strings.TrimSpace(piece[colon+1:])
	if typeExpr == "" {
		return "", "", false
	}
	return name, typeExpr, true
}

// singleColonIndex returns the index of the first ':' that is not part of "::".
func singleColonIndex(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] != ':' {
			continue
		}
		if i+1 < len(s) && s[i+1] == ':' {
			i++
			continue
		}
		return i
	}
	return -1
}

// cleanReturnExpr trims a captured return type and cuts any where clause.
func cleanReturnExpr(raw string) string {
	if loc := whereClausePattern.FindStringIndex(raw); loc != nil {
		raw = raw[:loc[0]]
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return VoidReturn
	}
	return raw
}

// namespaceBefore returns the namespace of the last #[rpc(...)] attribute before pos.
func namespaceBefore(content string, rpcAttrs [][]int, pos int) string {
	ns := ""
	for _, loc := range rpcAttrs {
		if loc[0] >= pos {
			break
		}
		args := content[loc[2]:loc[3]]
		if m := namespacePattern.FindStringSubmatch(args); m != nil {
			ns = m[1]
		} else {
			ns = ""
		}
	}
	return ns
}
