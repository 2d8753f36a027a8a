// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package apispec wires the scan, extract, group and assemble stages into the
// generator pipeline.
package apispec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/apispec/services/apispec/assemble"
	"github.com/AleutianAI/apispec/services/apispec/config"
	"github.com/AleutianAI/apispec/services/apispec/extract"
	"github.com/AleutianAI/apispec/services/apispec/group"
	"github.com/AleutianAI/apispec/services/apispec/scan"
)

// ErrDuplicateDefinitions is returned by Run when duplicates were found and
// the configuration asks for them to fail the run. The document is still written.
var ErrDuplicateDefinitions = errors.New("duplicate definitions found")

// =============================================================================
// Report
// =============================================================================

// FileFailure is one source file that could not be processed.
type FileFailure struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// MethodSummary is one discovered method in the run summary.
type MethodSummary struct {
	RPCName  string `json:"rpc_name"`
	Method   string `json:"method"`
	Category string `json:"category"`
	Source   string `json:"source"`
}

// Report collects diagnostics of one pipeline run.
type Report struct {
	Root       string `json:"root"`
	OutputPath string `json:"output_path,omitempty"`
	Version    string `json:"version"`
	RunID      string `json:"run_id"`

	FilesScanned int           `json:"files_scanned"`
	FilesFailed  []FileFailure `json:"files_failed,omitempty"`
	Unreadable   []string      `json:"unreadable,omitempty"`

	Endpoints  int                 `json:"endpoints"`
	DataTypes  int                 `json:"data_types"`
	Duplicates []extract.Duplicate `json:"duplicates,omitempty"`

	// Methods lists discovered endpoints sorted by RPC name.
	Methods []MethodSummary `json:"methods"`

	Duration time.Duration `json:"duration"`
}

// Result is the output of one pipeline run.
type Result struct {
	Document *assemble.Document
	Report   *Report
}

// =============================================================================
// Generator
// =============================================================================

// Generator runs the extraction pipeline.
//
// Description:
//
//	One run scans the root, extracts every candidate file into a fresh
//	Registry, classifies endpoints and assembles the document. Files are
//	processed one after another so last-write-wins on duplicates follows the
//	scan order.
//
// Thread Safety:
//
//	Safe for concurrent use; every run owns its own Registry. Callers that
//	write to a shared output path serialise Run themselves.
type Generator struct {
	cfg    config.Config
	logger *slog.Logger
}

// NewGenerator creates a Generator. A nil logger uses slog.Default().
func NewGenerator(cfg config.Config, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{cfg: cfg, logger: logger}
}

// Config returns the generator configuration.
func (g *Generator) Config() config.Config {
	return g.cfg
}

// OutputPath returns the resolved document path for root.
func (g *Generator) OutputPath(root string) string {
	return config.Resolve(root, g.cfg.OutputPath)
}

// Generate runs the pipeline over root without writing anything.
//
// Description:
//
//	Per-file failures are logged, recorded in the Report and skipped. The
//	only errors returned are those that leave no document to produce: an
//	invalid category configuration or a cancelled context.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing.
//	root - Project root to scan.
//
// Outputs:
//
//	*Result - Document and Report. Nil on error.
//	error - Non-nil if no document could be produced.
func (g *Generator) Generate(ctx context.Context, root string) (*Result, error) {
	ctx, span := generatorTracer.Start(ctx, "apispec.Generator.Generate")
	defer span.End()

	start := time.Now()
	result, err := g.generate(ctx, root)
	endpoints := 0
	if result != nil {
		endpoints = result.Report.Endpoints
		result.Report.Duration = time.Since(start)
	}
	recordRun(start, endpoints, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate failed")
		return nil, err
	}
	span.SetAttributes(
		attribute.String("root", root),
		attribute.Int("endpoints", result.Report.Endpoints),
		attribute.Int("data_types", result.Report.DataTypes),
		attribute.Int("duplicates", len(result.Report.Duplicates)),
	)
	return result, nil
}

func (g *Generator) generate(ctx context.Context, root string) (*Result, error) {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	rules, err := g.cfg.Rules(ctx)
	if err != nil {
		return nil, fmt.Errorf("load category rules: %w", err)
	}
	grouper := group.NewGrouper(rules)

	scanner := scan.NewScanner(scan.Options{
		Extension:   g.cfg.Extension,
		ExcludeDirs: g.cfg.ExcludeDirs,
	}, g.logger)
	scanned := scanner.Scan(ctx, root)

	report := &Report{
		Root:         root,
		FilesScanned: len(scanned.Files),
		Unreadable:   scanned.Unreadable,
	}

	reg := extract.NewRegistry(g.logger)
	extractor := extract.NewExtractor(extract.Options{
		Methods: extract.MethodOptions{
			ApplyNamespace:     g.cfg.ApplyNamespace,
			NamespaceSeparator: g.cfg.NamespaceSeparator,
		},
		MaxFileSize: g.cfg.MaxFileSize,
	}, g.logger)

	for _, path := range scanned.Files {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("generate: %w", err)
		}
		if _, err := extractor.ExtractFile(ctx, root, path, reg); err != nil {
			rel := extract.RelativePath(root, path)
			g.logger.Warn("skipping source file",
				slog.String("file", rel),
				slog.String("error", err.Error()),
			)
			report.FilesFailed = append(report.FilesFailed, FileFailure{File: rel, Error: err.Error()})
		}
	}

	version := assemble.ReadVersion(config.Resolve(root, g.cfg.VersionFile), g.cfg.DefaultVersion, g.logger)

	assembler := assemble.NewAssembler(assemble.Options{
		Title:       g.cfg.Title,
		Description: g.cfg.Description,
		Servers:     toAssembleServers(g.cfg.Servers),
	}, grouper, g.logger)

	doc, err := assembler.Assemble(ctx, reg, version)
	if err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}

	report.Version = version
	report.RunID = doc.Info.Generated.RunID
	report.Endpoints = reg.EndpointCount()
	report.DataTypes = reg.DataTypeCount()
	report.Duplicates = reg.Duplicates()
	report.Methods = make([]MethodSummary, 0, reg.EndpointCount())
	for _, ep := range reg.Endpoints() {
		report.Methods = append(report.Methods, MethodSummary{
			RPCName:  ep.RPCName,
			Method:   ep.MethodName,
			Category: grouper.Categorize(ep.RPCName),
			Source:   fmt.Sprintf("%s:%d", ep.File, ep.Line),
		})
	}

	g.logger.Info("API document generated",
		slog.String("root", root),
		slog.Int("files", report.FilesScanned),
		slog.Int("endpoints", report.Endpoints),
		slog.Int("data_types", report.DataTypes),
		slog.Int("duplicates", len(report.Duplicates)),
		slog.Int("failed_files", len(report.FilesFailed)),
		slog.String("version", version),
	)

	return &Result{Document: doc, Report: report}, nil
}

// Run generates the document for root and writes it to the configured output path.
//
// Outputs:
//
//	*Result - Non-nil whenever a document was produced, including when the
//	          returned error is ErrDuplicateDefinitions.
//	error - Generation or write failure, or ErrDuplicateDefinitions when
//	        FailOnDuplicates is set and duplicates were found.
func (g *Generator) Run(ctx context.Context, root string) (*Result, error) {
	result, err := g.Generate(ctx, root)
	if err != nil {
		return nil, err
	}

	out := g.OutputPath(result.Report.Root)
	if err := assemble.Write(result.Document, out, g.logger); err != nil {
		return result, err
	}
	result.Report.OutputPath = out

	if g.cfg.FailOnDuplicates && len(result.Report.Duplicates) > 0 {
		return result, fmt.Errorf("%w: %d", ErrDuplicateDefinitions, len(result.Report.Duplicates))
	}
	return result, nil
}

func toAssembleServers(servers []config.Server) []assemble.Server {
	out := make([]assemble.Server, 0, len(servers))
	for _, s := range servers {
		out = append(out, assemble.Server{URL: s.URL, Description: s.Description})
	}
	return out
}
