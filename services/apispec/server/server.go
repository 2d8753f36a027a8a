// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server serves the generated API document over HTTP and keeps it
// current while sources change.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/apispec/services/apispec"
	"github.com/AleutianAI/apispec/services/apispec/assemble"
)

// ServiceName identifies the server in traces and health responses.
const ServiceName = "apispec"

// Options configures a Server.
type Options struct {
	// Addr is the listen address, e.g. ":8081".
	Addr string

	// Watch enables regeneration on source changes.
	Watch bool

	// MinInterval is the minimum time between two regenerations. Zero disables the limit.
	MinInterval time.Duration

	// Debounce collapses bursts of file events into one regeneration.
	Debounce time.Duration

	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration

	// Debug adds gin's request logger.
	Debug bool
}

// DefaultOptions returns the options used by the serve command.
func DefaultOptions() Options {
	return Options{
		Addr:            ":8081",
		MinInterval:     time.Second,
		Debounce:        250 * time.Millisecond,
		ShutdownTimeout: 5 * time.Second,
	}
}

// Server holds the latest generated document and serves it.
//
// Description:
//
//	Regenerate runs the same sequential pipeline as the generate command,
//	writes the document to its output path and swaps the served copy. A
//	failed run keeps the previous document. Every run is announced to
//	websocket clients.
//
// Thread Safety:
//
//	Safe for concurrent use. Regenerations are serialised; readers never
//	block on a running regeneration.
type Server struct {
	gen     *apispec.Generator
	root    string
	opts    Options
	logger  *slog.Logger
	hub     *Hub
	limiter *rate.Limiter
	started time.Time

	regenMu sync.Mutex

	mu      sync.RWMutex
	doc     *assemble.Document
	docJSON []byte
	report  *apispec.Report
	lastErr error
}

// New creates a Server for root.
func New(gen *apispec.Generator, root string, opts Options, logger *slog.Logger) (*Server, error) {
	if gen == nil {
		return nil, fmt.Errorf("generator must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	limit := rate.Inf
	if opts.MinInterval > 0 {
		limit = rate.Every(opts.MinInterval)
	}
	return &Server{
		gen:     gen,
		root:    root,
		opts:    opts,
		logger:  logger,
		hub:     NewHub(logger),
		limiter: rate.NewLimiter(limit, 1),
		started: time.Now(),
	}, nil
}

// Hub returns the websocket hub that receives regeneration events.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Regenerate runs the pipeline once and publishes the result.
//
// Outputs:
//
//	error - The run error. apispec.ErrDuplicateDefinitions and write failures
//	        still replace the served document.
func (s *Server) Regenerate(ctx context.Context) error {
	s.regenMu.Lock()
	defer s.regenMu.Unlock()

	ctx, span := serverTracer.Start(ctx, "server.Server.Regenerate",
		oteltrace.WithAttributes(attribute.String("root", s.root)),
	)
	defer span.End()

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("regenerate: %w", err)
	}

	result, err := s.gen.Run(ctx, s.root)
	if result == nil {
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()

		regenerationsTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "regeneration failed")
		s.logger.Error("regeneration failed", slog.String("error", err.Error()))
		s.hub.Broadcast(Event{Type: EventError, Message: err.Error(), Timestamp: time.Now().UTC()})
		return err
	}

	docJSON, merr := assemble.Marshal(result.Document)
	if merr != nil {
		regenerationsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("regenerate: %w", merr)
	}

	s.mu.Lock()
	s.doc = result.Document
	s.docJSON = docJSON
	s.report = result.Report
	s.lastErr = err
	s.mu.Unlock()

	status := "success"
	if err != nil {
		status = "warning"
		s.logger.Warn("regeneration completed with errors", slog.String("error", err.Error()))
	}
	regenerationsTotal.WithLabelValues(status).Inc()
	span.SetAttributes(
		attribute.Int("endpoints", result.Report.Endpoints),
		attribute.String("run_id", result.Report.RunID),
	)

	evt := Event{
		Type:       EventRegenerated,
		RunID:      result.Report.RunID,
		Version:    result.Report.Version,
		Endpoints:  result.Report.Endpoints,
		Duplicates: len(result.Report.Duplicates),
		Timestamp:  time.Now().UTC(),
	}
	if err != nil {
		evt.Message = err.Error()
	}
	s.hub.Broadcast(evt)
	return err
}

// snapshot returns the served document state.
func (s *Server) snapshot() (*assemble.Document, []byte, *apispec.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc, s.docJSON, s.report, s.lastErr
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(ServiceName))
	if s.opts.Debug {
		router.Use(gin.Logger())
	}
	s.RegisterRoutes(router)
	return router
}

// Run serves until ctx is cancelled.
//
// Description:
//
//	Generates the document once, then runs the HTTP server, the shutdown
//	watcher and, with Options.Watch, the file watcher in one errgroup. A
//	failed initial generation is logged; the server still starts and
//	reports not ready until a regeneration succeeds.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Regenerate(ctx); err != nil && !errors.Is(err, apispec.ErrDuplicateDefinitions) {
		s.logger.Warn("initial generation failed", slog.String("error", err.Error()))
	}

	var watcher *Watcher
	if s.opts.Watch {
		w, err := NewWatcher(s.root, s.gen.Config(), s.logger)
		if err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		watcher = w
	}

	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("serving API document",
			slog.String("address", s.opts.Addr),
			slog.String("root", s.root),
			slog.Bool("watch", s.opts.Watch),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down API document server")
		s.hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if watcher != nil {
		g.Go(func() error {
			return watcher.Run(gctx, s.opts.Debounce, func(ctx context.Context) {
				if err := s.Regenerate(ctx); err != nil && ctx.Err() == nil {
					s.logger.Debug("watch regeneration returned error", slog.String("error", err.Error()))
				}
			})
		})
	}

	return g.Wait()
}
