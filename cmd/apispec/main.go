// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command apispec extracts JSON-RPC method definitions from Rust sources and
// writes an OpenAPI document describing them.
//
// Usage:
//
//	apispec [root]                    generate the document (same as generate)
//	apispec generate [root]           generate, optionally snapshot and publish
//	apispec serve [root]              serve the document, regenerating on change
//	apispec snapshot list             list saved snapshots
//	apispec snapshot diff BASE TARGET compare two snapshots
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// Publisher credentials may live in .env; a missing file is fine.
	_ = godotenv.Load()

	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

// run executes the CLI with args. Spans are flushed even when the command
// fails, since cobra skips post-run hooks after a RunE error.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cmd, g := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	runErr := cmd.ExecuteContext(ctx)
	flushErr := g.teardown()
	if flushErr != nil {
		fmt.Fprintln(stderr, "Error:", flushErr)
	}
	return errors.Join(runErr, flushErr)
}
