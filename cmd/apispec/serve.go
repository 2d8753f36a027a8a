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
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/AleutianAI/apispec/services/apispec"
	"github.com/AleutianAI/apispec/services/apispec/server"
)

func newServeCmd(g *globalOptions) *cobra.Command {
	opts := server.DefaultOptions()

	cmd := &cobra.Command{
		Use:   "serve [root]",
		Short: "Serve the OpenAPI document over HTTP",
		Long: `serve generates the document, serves it at /api-docs/openapi.json together
with /health, /ready, /metrics and curl examples at /codegen/curl/:method, and
with --watch regenerates it whenever sources change, notifying /ws clients.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := projectRoot(args)
			if err != nil {
				return err
			}

			if opts.Debug {
				gin.SetMode(gin.DebugMode)
			} else {
				gin.SetMode(gin.ReleaseMode)
			}
			otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
				propagation.TraceContext{},
				propagation.Baggage{},
			))

			cfg := loadConfig(root, g.logger)
			srv, err := server.New(apispec.NewGenerator(cfg, g.logger), root, opts, g.logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Addr, "addr", opts.Addr, "Listen address")
	f.BoolVar(&opts.Watch, "watch", false, "Regenerate when sources, the version file or the config change")
	f.DurationVar(&opts.MinInterval, "min-interval", opts.MinInterval, "Minimum time between regenerations")
	f.DurationVar(&opts.Debounce, "debounce", opts.Debounce, "Quiet period before a watched change regenerates")
	f.DurationVar(&opts.ShutdownTimeout, "shutdown-timeout", 5*time.Second, "Graceful shutdown timeout")
	f.BoolVar(&opts.Debug, "debug", false, "Enable gin debug mode and request logging")
	return cmd
}
