// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/apispec/services/apispec/config"
)

// globalOptions hold persistent flag values shared by every command.
type globalOptions struct {
	logLevel    string
	traceStdout bool

	logger        *slog.Logger
	shutdownTrace func(context.Context) error
}

// newRootCmd builds the command tree. The returned options own the telemetry
// set up by PersistentPreRunE; callers release it with teardown.
func newRootCmd() (*cobra.Command, *globalOptions) {
	g := &globalOptions{}
	gen := &generateOptions{}

	root := &cobra.Command{
		Use:   "apispec [root]",
		Short: "Generate an OpenAPI document from Rust JSON-RPC sources",
		Long: `apispec scans a Rust workspace for #[method(name = "...")] annotations and
serializable structs and writes an OpenAPI 3 document describing every
JSON-RPC method it finds.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, g, gen, args)
		},
	}

	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&g.traceStdout, "trace-stdout", false, "Export OpenTelemetry spans to stderr")
	gen.bind(root)

	root.AddCommand(
		newGenerateCmd(g),
		newServeCmd(g),
		newSnapshotCmd(g),
	)
	return root, g
}

func (g *globalOptions) setup(cmd *cobra.Command) error {
	logger, err := newLogger(cmd.ErrOrStderr(), g.logLevel)
	if err != nil {
		return err
	}
	g.logger = logger
	slog.SetDefault(logger)

	shutdown, err := setupTracing(g.traceStdout, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	g.shutdownTrace = shutdown
	return nil
}

// teardown flushes pending spans. It is safe to call when setup never ran.
func (g *globalOptions) teardown() error {
	if g.shutdownTrace == nil {
		return nil
	}
	defer func() { g.shutdownTrace = nil }()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.shutdownTrace(ctx); err != nil {
		return fmt.Errorf("flush traces: %w", err)
	}
	return nil
}

// projectRoot returns the absolute root named by args, defaulting to the working directory.
func projectRoot(args []string) (string, error) {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("root %s: %w", abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("root %s is not a directory", abs)
	}
	return abs, nil
}

// loadConfig reads the project config. An invalid file is reported and defaults are used.
func loadConfig(root string, logger *slog.Logger) config.Config {
	cfg, err := config.Load(root)
	if err != nil {
		logger.Warn("invalid project config, using defaults",
			slog.String("file", filepath.Join(root, config.FileName)),
			slog.String("error", err.Error()),
		)
	}
	return cfg
}
