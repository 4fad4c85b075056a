// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package labeling provides the iFeed labeling server.
//
// This package wires the components of the service together: the SQLite
// store, the setup and session services, the inference gateway, HTTP
// routing, and observability.
//
// # Usage
//
//	cfg, err := labeling.LoadConfig("ifeed.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc, err := labeling.New(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run(ctx))
package labeling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/AleutianAI/ifeed/services/labeling/inference"
	"github.com/AleutianAI/ifeed/services/labeling/observability"
	"github.com/AleutianAI/ifeed/services/labeling/routes"
	"github.com/AleutianAI/ifeed/services/labeling/sessions"
	"github.com/AleutianAI/ifeed/services/labeling/setups"
	"github.com/AleutianAI/ifeed/services/labeling/storage/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the labeling service.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and should
// only be called once per instance.
type Service interface {
	// Run serves HTTP until ctx is cancelled or the listener fails, then
	// shuts down gracefully and releases the store and tracer.
	Run(ctx context.Context) error

	// Router returns the configured Gin engine, primarily for tests.
	Router() *gin.Engine
}

// Options injects collaborators. Nil fields use the production defaults.
//
// # Fields
//
//   - Engine: Replaces the HTTP gateway built from Config.
//   - Clock: Time source of the session machine.
//   - Registry: Prometheus registry for the service metrics.
type Options struct {
	Engine   inference.Engine
	Clock    sessions.Clock
	Registry *prometheus.Registry
}

// =============================================================================
// Implementation
// =============================================================================

type service struct {
	config        Config
	router        *gin.Engine
	store         *sqlite.Store
	metrics       *observability.Metrics
	registry      *prometheus.Registry
	tracerCleanup func(context.Context)
}

// New creates the labeling Service.
//
// # Description
//
// New initializes all components:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing unless the exporter is "none"
//  3. Opens the SQLite store and runs migrations
//  4. Registers Prometheus metrics
//  5. Builds the setup, session and inference services
//  6. Sets up HTTP routes
//
// # Inputs
//
//   - cfg: Service configuration. Zero values use defaults.
//   - opts: Optional collaborators. May be nil.
//
// # Outputs
//
//   - Service: Ready-to-run service.
//   - error: Non-nil if the tracer or the store cannot be initialized.
func New(cfg Config, opts *Options) (Service, error) {
	s := &service{config: applyConfigDefaults(cfg)}
	var o Options
	if opts != nil {
		o = *opts
	}

	if s.config.TraceExporter != TraceExporterNone {
		cleanup, err := s.initTracer()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
		s.tracerCleanup = cleanup
	} else {
		slog.Info("Tracing disabled")
	}

	store, err := sqlite.Open(s.config.DatabasePath)
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	s.store = store

	s.registry = o.Registry
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	s.metrics = observability.NewMetrics(s.registry)

	engine := o.Engine
	if engine == nil {
		engine = inference.NewHTTPGateway(s.config.GatewayConfig(), s.metrics)
		if s.config.EngineURL == "" {
			slog.Warn("engine URL not configured, evaluate actions will fail")
		}
	}

	s.initRouter(routes.Dependencies{
		Store:     s.store,
		Setups:    setups.NewService(s.store, s.metrics),
		Sessions:  sessions.NewService(s.store, o.Clock, s.metrics),
		Inference: inference.NewService(s.store, engine, s.metrics),
	})
	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

const shutdownTimeout = 10 * time.Second

func (s *service) Run(ctx context.Context) error {
	defer s.cleanup()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting labeling server", "port", s.config.Port, "database", s.config.DatabasePath)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down labeling server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// initTracer initializes OpenTelemetry distributed tracing.
//
// # Description
//
// The "otlp" exporter ships spans over gRPC to OTelEndpoint; "stdout"
// pretty-prints them to stderr for local debugging.
//
// # Limitations
//
//   - Uses insecure gRPC connection (appropriate for internal networks)
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	exporter, conn, err := newSpanExporter(ctx, s.config)
	if err != nil {
		return nil, err
	}

	res, err := newTraceResource(ctx)
	if err != nil {
		releaseExporter(ctx, exporter, conn)
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(exporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceProvider.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown tracer provider", "error", err)
		}
		closeConn(conn)
	}

	return cleanup, nil
}

// Tracer construction steps, replaceable in tests.
var (
	newSpanExporter  = buildSpanExporter
	newTraceResource = func(ctx context.Context) (*resource.Resource, error) {
		return resource.New(ctx,
			resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)))
	}
)

// buildSpanExporter creates the exporter named by cfg.TraceExporter. conn is
// non-nil only for the OTLP exporter and is owned by the caller.
func buildSpanExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, *grpc.ClientConn, error) {
	var (
		exporter sdktrace.SpanExporter
		conn     *grpc.ClientConn
		err      error
	)
	switch cfg.TraceExporter {
	case TraceExporterOTLP:
		if cfg.OTelEndpoint == "" {
			return nil, nil, fmt.Errorf("otlp trace exporter needs otel_endpoint")
		}
		conn, err = grpc.NewClient(cfg.OTelEndpoint,
			grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create gRPC connection: %w", err)
		}
		exporter, err = otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	case TraceExporterStdout:
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(os.Stderr), stdouttrace.WithPrettyPrint())
	default:
		return nil, nil, fmt.Errorf("unknown trace exporter %q", cfg.TraceExporter)
	}
	if err != nil {
		closeConn(conn)
		return nil, nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	return exporter, conn, nil
}

// releaseExporter shuts down an exporter that never reached a provider.
func releaseExporter(ctx context.Context, exporter sdktrace.SpanExporter, conn *grpc.ClientConn) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()
	if err := exporter.Shutdown(ctx); err != nil {
		slog.Warn("failed to shutdown trace exporter", "error", err)
	}
	closeConn(conn)
}

func closeConn(conn *grpc.ClientConn) {
	if conn == nil {
		return
	}
	if err := conn.Close(); err != nil {
		slog.Warn("failed to close OTLP connection", "error", err)
	}
}

// initRouter creates the Gin engine, applies middleware and registers all
// routes.
func (s *service) initRouter(deps routes.Dependencies) {
	gin.SetMode(s.config.GinMode)
	s.router = gin.New()
	s.router.Use(gin.Recovery(), requestLogger())
	s.router.Use(otelgin.Middleware(serviceName))

	if !s.config.DisableMetrics {
		deps.Metrics = promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
	}
	routes.SetupRoutes(s.router, deps)
}

// requestLogger logs one line per request through slog.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds())
	}
}

// cleanup releases all resources held by the service.
func (s *service) cleanup() {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Warn("store close error", "error", err)
		}
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
