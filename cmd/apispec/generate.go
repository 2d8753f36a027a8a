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
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/apispec/services/apispec"
	"github.com/AleutianAI/apispec/services/apispec/publish"
	"github.com/AleutianAI/apispec/services/apispec/snapshot"
)

// generateOptions hold generate flag values.
type generateOptions struct {
	output           string
	applyNamespace   bool
	failOnDuplicates bool
	snapshotDB       string
	label            string
	publishTo        string
	quiet            bool
}

func (o *generateOptions) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&o.output, "output", "o", "", "Output path, relative to the current directory (default: output_path from the config, relative to root)")
	f.BoolVar(&o.applyNamespace, "apply-namespace", false, "Prefix RPC names with their trait namespace")
	f.BoolVar(&o.failOnDuplicates, "fail-on-duplicates", false, "Exit non-zero when an RPC name or type is defined twice")
	f.StringVar(&o.snapshotDB, "snapshot-db", "", "BadgerDB directory to save a snapshot of the document in")
	f.StringVar(&o.label, "label", "", "Label stored with the snapshot")
	f.StringVar(&o.publishTo, "publish", "", "Also publish the document to s3://bucket/key, gs://bucket/key or a path")
	f.BoolVarP(&o.quiet, "quiet", "q", false, "Do not print the run summary")
}

func newGenerateCmd(g *globalOptions) *cobra.Command {
	o := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate [root]",
		Short: "Scan root and write the OpenAPI document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, g, o, args)
		},
	}
	o.bind(cmd)
	return cmd
}

// runGenerate generates, writes, and optionally snapshots and publishes the document.
//
// Description:
//
//	Snapshot and publish run even when duplicates were found, so a
//	--fail-on-duplicates run still leaves a complete record. The duplicate
//	error is returned last.
func runGenerate(cmd *cobra.Command, g *globalOptions, o *generateOptions, args []string) error {
	ctx := cmd.Context()
	logger := g.logger

	root, err := projectRoot(args)
	if err != nil {
		return err
	}

	cfg := loadConfig(root, logger)
	flags := cmd.Flags()
	if flags.Changed("output") {
		out, err := filepath.Abs(o.output)
		if err != nil {
			return fmt.Errorf("resolve --output: %w", err)
		}
		cfg.OutputPath = out
	}
	if flags.Changed("apply-namespace") {
		cfg.ApplyNamespace = o.applyNamespace
	}
	if flags.Changed("fail-on-duplicates") {
		cfg.FailOnDuplicates = o.failOnDuplicates
	}

	result, runErr := apispec.NewGenerator(cfg, logger).Run(ctx, root)
	if runErr != nil && !errors.Is(runErr, apispec.ErrDuplicateDefinitions) {
		return runErr
	}

	if !o.quiet {
		renderSummary(cmd.OutOrStdout(), result.Report)
	}

	if o.snapshotDB != "" {
		if err := saveSnapshot(cmd, o, result, logger); err != nil {
			return err
		}
	}

	if o.publishTo != "" {
		target, err := publish.ParseTarget(o.publishTo)
		if err != nil {
			return err
		}
		p, err := publish.New(ctx, target, publish.S3ConfigFromEnv(), logger)
		if err != nil {
			return fmt.Errorf("publish: %w", err)
		}
		defer p.Close()
		location, err := publish.Document(ctx, p, result.Document)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Published: %s\n", location)
	}

	return runErr
}

func saveSnapshot(cmd *cobra.Command, o *generateOptions, result *apispec.Result, logger *slog.Logger) error {
	db, err := snapshot.Open(o.snapshotDB)
	if err != nil {
		return err
	}
	defer db.Close()

	store, err := snapshot.NewStore(db, logger)
	if err != nil {
		return err
	}
	meta, err := store.Save(cmd.Context(), result.Report.Root, result.Document, o.label)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Snapshot: %s\n", meta.SnapshotID)
	return nil
}
