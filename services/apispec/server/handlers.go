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
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-openapi/spec"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/apispec/services/apispec/assemble"
)

// DefaultRPCURL is used in code examples when the document lists no server.
const DefaultRPCURL = "http://localhost:3000"

const zeroAddress = "0x0000000000000000000000000000000000000000"

// RegisterRoutes registers the document, probe, metrics, codegen and websocket routes.
//
// Routes:
//
//	GET /api-docs/openapi.json
//	GET /health
//	GET /ready
//	GET /metrics
//	GET /codegen/curl/:method
//	GET /codegen/javascript/:method
//	GET /codegen/python/:method
//	GET /ws
func (s *Server) RegisterRoutes(r gin.IRouter) {
	r.GET("/api-docs/openapi.json", s.handleDocument)
	r.GET("/health", s.handleHealth)
	r.GET("/ready", s.handleReady)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/codegen/curl/:method", s.handleCodegen(codegenCurl))
	r.GET("/codegen/javascript/:method", s.handleCodegen(codegenJavaScript))
	r.GET("/codegen/python/:method", s.handleCodegen(codegenPython))
	r.GET("/ws", func(c *gin.Context) {
		s.hub.ServeWS(c.Writer, c.Request)
	})
}

func (s *Server) handleDocument(c *gin.Context) {
	doc, docJSON, _, _ := s.snapshot()
	if doc == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "document not generated yet",
			"code":  "NOT_READY",
		})
		return
	}
	c.Header("X-Run-ID", doc.Info.Generated.RunID)
	c.Data(http.StatusOK, "application/json; charset=utf-8", docJSON)
}

func (s *Server) handleHealth(c *gin.Context) {
	doc, _, report, lastErr := s.snapshot()
	uptime := time.Since(s.started)

	body := gin.H{
		"status":         "healthy",
		"service":        ServiceName,
		"uptime_seconds": int64(uptime.Seconds()),
		"uptime_human":   uptime.Truncate(time.Second).String(),
		"ws_clients":     s.hub.Clients(),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	}
	if doc != nil {
		body["version"] = doc.Info.Version
		body["run_id"] = doc.Info.Generated.RunID
	}
	if report != nil {
		body["endpoints"] = report.Endpoints
		body["data_types"] = report.DataTypes
		body["duplicates"] = len(report.Duplicates)
		body["files_failed"] = len(report.FilesFailed)
	}
	if lastErr != nil {
		body["status"] = "degraded"
		body["last_error"] = lastErr.Error()
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleReady(c *gin.Context) {
	doc, _, _, _ := s.snapshot()
	if doc == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ready": true, "run_id": doc.Info.Generated.RunID})
}

// codegen describes one code example flavour.
type codegen struct {
	title  string
	render func(url, method string, op *assemble.Operation) (string, error)
}

var (
	codegenCurl       = codegen{title: "Curl Example", render: CurlCommand}
	codegenJavaScript = codegen{title: "JavaScript Example", render: JavaScriptExample}
	codegenPython     = codegen{title: "Python Example", render: PythonExample}
)

func (s *Server) handleCodegen(gen codegen) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, _, _, _ := s.snapshot()
		if doc == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "document not generated yet", "code": "NOT_READY"})
			return
		}

		method := c.Param("method")
		op, ok := doc.Operations()[method]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown method %q", method), "code": "NOT_FOUND"})
			return
		}

		code, err := gen.render(serverURL(doc), method, op)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "code": "INTERNAL"})
			return
		}

		body := gin.H{
			"title":  gen.title + " - " + op.Summary,
			"method": method,
			"code":   code,
		}
		// The curl route keeps its one-line command under "command".
		if gen.title == codegenCurl.title {
			body["description"] = "One-line curl command calling " + method
			body["command"] = code
		}
		c.JSON(http.StatusOK, body)
	}
}

// rpcRequest fixes the key order of the example body.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type parameterDetail struct {
	Name     string      `json:"name"`
	Required bool        `json:"required"`
	Schema   spec.Schema `json:"schema"`
}

// exampleRequest builds a JSON-RPC 2.0 request for method with one
// placeholder per declared parameter, derived from the parameter schemas in
// the operation's x-parameters extension.
func exampleRequest(method string, op *assemble.Operation) (rpcRequest, error) {
	params, err := parameterDetails(op)
	if err != nil {
		return rpcRequest{}, fmt.Errorf("read parameters of %s: %w", method, err)
	}

	values := make([]any, 0, len(params))
	for _, p := range params {
		values = append(values, exampleValue(p.Schema))
	}
	return rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: values}, nil
}

// CurlCommand renders a one-line curl invocation of method against url.
func CurlCommand(url, method string, op *assemble.Operation) (string, error) {
	req, err := exampleRequest(method, op)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal example body: %w", err)
	}

	quoted := strings.ReplaceAll(string(body), "'", `'\''`)
	return fmt.Sprintf("curl -X POST %s -H \"Content-Type: application/json\" -d '%s'", url, quoted), nil
}

// JavaScriptExample renders a fetch call of method against url.
func JavaScriptExample(url, method string, op *assemble.Operation) (string, error) {
	req, err := exampleRequest(method, op)
	if err != nil {
		return "", err
	}
	body, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal example body: %w", err)
	}
	urlLit, err := json.Marshal(url)
	if err != nil {
		return "", fmt.Errorf("marshal url: %w", err)
	}

	var b strings.Builder
	b.WriteString("// Node.js/Browser example\n")
	fmt.Fprintf(&b, "const response = await fetch(%s, {\n", urlLit)
	b.WriteString("  method: 'POST',\n")
	b.WriteString("  headers: { 'Content-Type': 'application/json' },\n")
	fmt.Fprintf(&b, "  body: JSON.stringify(%s),\n", indent(string(body), "  "))
	b.WriteString("});\n\n")
	b.WriteString("const { result, error } = await response.json();\n")
	b.WriteString("console.log(error ?? result);\n")
	return b.String(), nil
}

// PythonExample renders a requests call of method against url. The payload
// is embedded as JSON text so literals such as false and null stay valid.
func PythonExample(url, method string, op *assemble.Operation) (string, error) {
	req, err := exampleRequest(method, op)
	if err != nil {
		return "", err
	}
	body, err := json.MarshalIndent(req, "", "    ")
	if err != nil {
		return "", fmt.Errorf("marshal example body: %w", err)
	}
	urlLit, err := json.Marshal(url)
	if err != nil {
		return "", fmt.Errorf("marshal url: %w", err)
	}
	// A single quote only occurs inside JSON strings, where \u0027 is equivalent.
	payload := strings.ReplaceAll(string(body), "'", `\u0027`)

	var b strings.Builder
	b.WriteString("# Python example using requests\n")
	b.WriteString("import json\n\n")
	b.WriteString("import requests\n\n")
	fmt.Fprintf(&b, "url = %s\n", urlLit)
	fmt.Fprintf(&b, "payload = json.loads(r'''\n%s\n''')\n\n", payload)
	b.WriteString("response = requests.post(url, json=payload)\n")
	b.WriteString("body = response.json()\n")
	b.WriteString("print(body.get('error') or body.get('result'))\n")
	return b.String(), nil
}

// indent prefixes every line after the first with prefix.
func indent(s, prefix string) string {
	return strings.ReplaceAll(s, "\n", "\n"+prefix)
}

func parameterDetails(op *assemble.Operation) ([]parameterDetail, error) {
	media, ok := op.RequestBody.Content[assemble.JSONMediaType]
	if !ok {
		return nil, nil
	}
	params, ok := media.Schema.Properties["params"]
	if !ok {
		return nil, nil
	}
	raw, ok := params.Extensions["x-parameters"]
	if !ok {
		return nil, nil
	}

	// The extension is a typed slice when built in process and generic JSON
	// after a round trip; re-encoding handles both.
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var details []parameterDetail
	if err := json.Unmarshal(data, &details); err != nil {
		return nil, err
	}
	return details, nil
}

func exampleValue(s spec.Schema) any {
	if s.Example != nil {
		return s.Example
	}
	switch {
	case s.Type.Contains("integer"), s.Type.Contains("number"):
		return 0
	case s.Type.Contains("boolean"):
		return false
	case s.Type.Contains("array"):
		return []any{}
	case s.Type.Contains("string"):
		if strings.Contains(strings.ToLower(s.Description), "address") {
			return zeroAddress
		}
		return "0x"
	}
	return map[string]any{}
}

func serverURL(doc *assemble.Document) string {
	if len(doc.Servers) > 0 && doc.Servers[0].URL != "" {
		return doc.Servers[0].URL
	}
	return DefaultRPCURL
}
