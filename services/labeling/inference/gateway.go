// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package inference delegates evaluation to the external active-learning
// engine.
//
// # Description
//
// The gateway assembles a request from the persisted setup and session
// state, posts it to the engine, and maps the reply back. Every failure
// (connection error, timeout, non-2xx status, malformed body, or an engine
// that reports an error) surfaces as one engine_unavailable error, and no
// session state changes in that case.
//
// Calls are synchronous and never retried; the request is derived from
// persisted state, so callers can simply re-issue it.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/AleutianAI/ifeed/services/labeling/datatypes"
	"github.com/AleutianAI/ifeed/services/labeling/observability"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

var gatewayTracer = otel.Tracer("ifeed.labeling.inference")

// RequestIDHeader carries the correlation id of an engine call.
const RequestIDHeader = "X-Request-ID"

// =============================================================================
// Interfaces
// =============================================================================

// Engine evaluates one request.
//
// # Description
//
// Implementations return either a decoded response or an
// engine_unavailable *datatypes.Error; they never return partial results.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Engine interface {
	Evaluate(ctx context.Context, target observability.Target, req EngineRequest) (EngineResponse, error)
}

// =============================================================================
// HTTP gateway
// =============================================================================

// GatewayConfig configures the HTTP engine client.
//
// # Fields
//
//   - URL: Engine endpoint. Requests are POSTed here.
//   - Timeout: Upper bound for one call, including the body read.
//   - RateLimit: Sustained calls per second. Zero or less disables limiting.
//   - Burst: Calls allowed above RateLimit at once. Defaults to 1.
//   - MaxResponseBytes: Larger replies are treated as malformed.
type GatewayConfig struct {
	URL              string
	Timeout          time.Duration
	RateLimit        float64
	Burst            int
	MaxResponseBytes int64
}

const (
	defaultEngineTimeout    = 30 * time.Second
	defaultMaxResponseBytes = 64 << 20
)

// HTTPGateway is the Engine backed by a JSON-over-HTTP endpoint.
type HTTPGateway struct {
	cfg     GatewayConfig
	client  *http.Client
	limiter *rate.Limiter
	metrics *observability.Metrics
}

var _ Engine = (*HTTPGateway)(nil)

// NewHTTPGateway creates a gateway. metrics may be nil.
//
// # Examples
//
//	gw := inference.NewHTTPGateway(inference.GatewayConfig{
//	    URL:     "http://localhost:8081/",
//	    Timeout: 30 * time.Second,
//	}, metrics)
func NewHTTPGateway(cfg GatewayConfig, metrics *observability.Metrics) *HTTPGateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultEngineTimeout
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = defaultMaxResponseBytes
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	return &HTTPGateway{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, cfg.Burst),
		metrics: metrics,
	}
}

// Evaluate posts req to the engine and decodes its reply.
//
// # Description
//
// Waits for the rate limiter, then sends the request with a fresh
// X-Request-ID and the trace context headers. The reply must be a 2xx JSON
// object without a non-null "error" or "detail" key. When it carries
// prediction_global, that must be a list of final tokens with one entry per
// request label.
//
// # Inputs
//
//   - ctx: Cancellation and trace parent. The configured timeout applies on
//     top of any deadline ctx already has.
//   - target: What is being evaluated, for metrics and tracing.
//   - req: The engine request.
//
// # Outputs
//
//   - EngineResponse: The decoded reply.
//   - error: engine_unavailable *datatypes.Error on any failure.
func (g *HTTPGateway) Evaluate(ctx context.Context, target observability.Target, req EngineRequest) (EngineResponse, error) {
	requestID := uuid.NewString()
	ctx, span := gatewayTracer.Start(ctx, "inference.Evaluate",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("engine.target", string(target)),
			attribute.String("engine.request_id", requestID),
			attribute.Int("engine.rows", len(req.Labels)),
			attribute.Int("engine.history", len(req.QueryHistory)),
		))
	defer span.End()

	start := time.Now()
	resp, err := g.call(ctx, requestID, req)
	elapsed := time.Since(start)
	g.metrics.RecordEngineCall(target, elapsed.Seconds(), err == nil)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "engine call failed")
		slog.Warn("inference engine call failed",
			"target", string(target),
			"request_id", requestID,
			"duration_ms", elapsed.Milliseconds(),
			"error", err)
		return EngineResponse{}, datatypes.WrapError(datatypes.CodeEngineUnavailable, err,
			"inference engine unavailable (request %s)", requestID)
	}

	span.SetAttributes(attribute.Bool("engine.prediction", resp.HasPrediction()))
	slog.Debug("inference engine call succeeded",
		"target", string(target),
		"request_id", requestID,
		"duration_ms", elapsed.Milliseconds(),
		"prediction", resp.HasPrediction())
	return resp, nil
}

func (g *HTTPGateway) call(ctx context.Context, requestID string, req EngineRequest) (EngineResponse, error) {
	if g.cfg.URL == "" {
		return EngineResponse{}, fmt.Errorf("no engine URL configured")
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return EngineResponse{}, fmt.Errorf("rate limit: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	payload, err := json.Marshal(req)
	if err != nil {
		return EngineResponse{}, fmt.Errorf("marshal engine request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return EngineResponse{}, fmt.Errorf("create engine request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(RequestIDHeader, requestID)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	httpResp, err := g.client.Do(httpReq)
	if err != nil {
		return EngineResponse{}, fmt.Errorf("engine request: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, g.cfg.MaxResponseBytes+1))
	if err != nil {
		return EngineResponse{}, fmt.Errorf("read engine response: %w", err)
	}
	if int64(len(body)) > g.cfg.MaxResponseBytes {
		return EngineResponse{}, fmt.Errorf("engine response exceeds %d bytes", g.cfg.MaxResponseBytes)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return EngineResponse{}, fmt.Errorf("engine returned status %d: %s", httpResp.StatusCode, truncateBody(body))
	}
	return decodeResponse(body, len(req.Labels))
}

// decodeResponse parses an engine reply. rows is the expected length of
// prediction_global.
func decodeResponse(body []byte, rows int) (EngineResponse, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return EngineResponse{}, fmt.Errorf("decode engine response: %w", err)
	}
	if fields == nil {
		return EngineResponse{}, fmt.Errorf("engine response is not an object")
	}
	for _, key := range []string{keyError, keyDetail} {
		if raw, ok := fields[key]; ok && !isNull(raw) {
			return EngineResponse{}, fmt.Errorf("engine reported %s: %s", key, truncateBody(raw))
		}
	}

	resp := EngineResponse{Fields: fields}
	raw, ok := fields[keyPredictionGlobal]
	if !ok || isNull(raw) {
		return resp, nil
	}
	var tokens []string
	if err := json.Unmarshal(raw, &tokens); err != nil {
		return EngineResponse{}, fmt.Errorf("decode prediction_global: %w", err)
	}
	prediction, err := datatypes.ParseFinalTokens(tokens)
	if err != nil {
		return EngineResponse{}, fmt.Errorf("prediction_global: %w", err)
	}
	if len(prediction) != rows {
		return EngineResponse{}, fmt.Errorf("prediction_global has %d entries, want %d", len(prediction), rows)
	}
	resp.Prediction = prediction
	return resp, nil
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func truncateBody(b []byte) string {
	const limit = 256
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
