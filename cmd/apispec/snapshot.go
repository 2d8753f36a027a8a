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
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/apispec/services/apispec/snapshot"
)

// snapshotOptions hold flags shared by the snapshot subcommands.
type snapshotOptions struct {
	db      string
	root    string
	limit   int
	jsonOut bool
}

func newSnapshotCmd(g *globalOptions) *cobra.Command {
	o := &snapshotOptions{}
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect documents saved with generate --snapshot-db",
	}
	cmd.PersistentFlags().StringVar(&o.db, "snapshot-db", "", "BadgerDB snapshot directory")
	cmd.PersistentFlags().StringVar(&o.root, "root", ".", "Project root used to resolve \"latest\" and filter listings")
	cmd.PersistentFlags().BoolVar(&o.jsonOut, "json", false, "Print JSON instead of text")
	_ = cmd.MarkPersistentFlagRequired("snapshot-db")

	list := &cobra.Command{
		Use:   "list",
		Short: "List snapshots of the project, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSnapshotList(cmd, g, o)
		},
	}
	list.Flags().IntVar(&o.limit, "limit", snapshot.DefaultListLimit, "Maximum snapshots to list")

	diff := &cobra.Command{
		Use:   "diff BASE TARGET",
		Short: "Compare two snapshots (IDs or \"latest\")",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotDiff(cmd, g, o, args[0], args[1])
		},
	}

	cmd.AddCommand(list, diff)
	return cmd
}

func openStore(g *globalOptions, o *snapshotOptions) (*snapshot.Store, func() error, error) {
	db, err := snapshot.Open(o.db)
	if err != nil {
		return nil, nil, err
	}
	store, err := snapshot.NewStore(db, g.logger)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return store, db.Close, nil
}

func runSnapshotList(cmd *cobra.Command, g *globalOptions, o *snapshotOptions) error {
	root, err := projectRoot([]string{o.root})
	if err != nil {
		return err
	}
	store, closeDB, err := openStore(g, o)
	if err != nil {
		return err
	}
	defer closeDB()

	metas, err := store.List(cmd.Context(), root, o.limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if o.jsonOut {
		return writeJSON(out, metas)
	}
	renderSnapshotList(out, metas)
	return nil
}

func runSnapshotDiff(cmd *cobra.Command, g *globalOptions, o *snapshotOptions, baseRef, targetRef string) error {
	root, err := projectRoot([]string{o.root})
	if err != nil {
		return err
	}
	store, closeDB, err := openStore(g, o)
	if err != nil {
		return err
	}
	defer closeDB()

	ctx := cmd.Context()
	baseDoc, baseMeta, err := store.Resolve(ctx, root, baseRef)
	if err != nil {
		return fmt.Errorf("base %s: %w", baseRef, err)
	}
	targetDoc, targetMeta, err := store.Resolve(ctx, root, targetRef)
	if err != nil {
		return fmt.Errorf("target %s: %w", targetRef, err)
	}

	diff, err := snapshot.DiffDocuments(baseDoc, targetDoc, baseMeta.SnapshotID, targetMeta.SnapshotID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if o.jsonOut {
		return writeJSON(out, diff)
	}
	renderDiff(out, diff)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
