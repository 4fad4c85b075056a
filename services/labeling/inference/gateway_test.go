// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package inference

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AleutianAI/ifeed/services/labeling/datatypes"
	"github.com/AleutianAI/ifeed/services/labeling/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRequest() EngineRequest {
	return EngineRequest{
		Data:          [][]float64{{0, 0}, {1, 1}, {0.5, 0.5}, {0.2, 0.9}, {1, 0}},
		Labels:        []string{"U", "U", "Lout", "U", "Lin"},
		Params:        map[string]any{"C": 0.5, "classifier": "SSAD", "query_strategy": "RandomQs"},
		QueryHistory:  [][]int{{2}},
		Subspaces:     []datatypes.Subspace{{1, 2}},
		SubspaceGrids: []datatypes.Grid{{{1, 1}, {0.9, 1}}},
	}
}

// engineStub serves a fixed status and body and records the last request.
func engineStub(t *testing.T, status int, body string) (*httptest.Server, *http.Request, *[]byte) {
	t.Helper()
	var (
		lastReq  http.Request
		lastBody []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastReq = *r
		lastBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &lastReq, &lastBody
}

func TestGateway_PredictionDecoded(t *testing.T) {
	// Arrange
	srv, lastReq, lastBody := engineStub(t, http.StatusOK,
		`{"prediction_global":["inlier","outlier","inlier","inlier","outlier"],"query_id":3}`)
	m := observability.NewMetrics(prometheus.NewRegistry())
	gw := NewHTTPGateway(GatewayConfig{URL: srv.URL, Timeout: time.Second}, m)

	// Act
	resp, err := gw.Evaluate(context.Background(), observability.TargetSession, sampleRequest())

	// Assert
	require.NoError(t, err)
	require.True(t, resp.HasPrediction())
	assert.Equal(t, []string{"inlier", "outlier", "inlier", "inlier", "outlier"}, resp.Prediction.Tokens())
	assert.JSONEq(t, `3`, string(resp.Fields["query_id"]))

	assert.Equal(t, http.MethodPost, lastReq.Method)
	assert.Equal(t, "application/json", lastReq.Header.Get("Content-Type"))
	assert.NotEmpty(t, lastReq.Header.Get(RequestIDHeader))

	var sent map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(*lastBody, &sent))
	for _, key := range []string{"data", "labels", "params", "query_history", "subspaces", "subspace_grids"} {
		assert.Contains(t, sent, key)
	}
	assert.JSONEq(t, `["U","U","Lout","U","Lin"]`, string(sent["labels"]))
	assert.JSONEq(t, `[[1,2]]`, string(sent["subspaces"]))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.EngineRequestsTotal.WithLabelValues("session", "success")))
}

func TestGateway_NoPrediction(t *testing.T) {
	srv, _, _ := engineStub(t, http.StatusOK, `{"query_id":1,"error":null}`)
	gw := NewHTTPGateway(GatewayConfig{URL: srv.URL}, nil)

	resp, err := gw.Evaluate(context.Background(), observability.TargetSetup, sampleRequest())

	require.NoError(t, err)
	assert.False(t, resp.HasPrediction())
	assert.Contains(t, resp.Fields, "query_id")
}

func TestGateway_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"prediction_global":[]}`},
		{"not found", http.StatusNotFound, `nope`},
		{"not json", http.StatusOK, `<html>`},
		{"array body", http.StatusOK, `[1,2]`},
		{"null body", http.StatusOK, `null`},
		{"engine error key", http.StatusOK, `{"error":"classifier failed"}`},
		{"engine detail key", http.StatusOK, `{"detail":"Connection to API failed"}`},
		{"unknown final token", http.StatusOK, `{"prediction_global":["inlier","maybe","inlier","inlier","inlier"]}`},
		{"wrong length", http.StatusOK, `{"prediction_global":["inlier"]}`},
		{"prediction not a list", http.StatusOK, `{"prediction_global":"inlier"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, _ := engineStub(t, tt.status, tt.body)
			m := observability.NewMetrics(prometheus.NewRegistry())
			gw := NewHTTPGateway(GatewayConfig{URL: srv.URL, Timeout: time.Second}, m)

			_, err := gw.Evaluate(context.Background(), observability.TargetSession, sampleRequest())

			require.Error(t, err)
			assert.True(t, errors.Is(err, datatypes.ErrEngineUnavailable), "got %v", err)
			assert.Equal(t, 1.0, testutil.ToFloat64(m.EngineRequestsTotal.WithLabelValues("session", "error")))
		})
	}
}

func TestGateway_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	gw := NewHTTPGateway(GatewayConfig{URL: url, Timeout: time.Second}, nil)

	_, err := gw.Evaluate(context.Background(), observability.TargetSession, sampleRequest())

	assert.True(t, errors.Is(err, datatypes.ErrEngineUnavailable))
}

func TestGateway_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})
	gw := NewHTTPGateway(GatewayConfig{URL: srv.URL, Timeout: 50 * time.Millisecond}, nil)

	start := time.Now()
	_, err := gw.Evaluate(context.Background(), observability.TargetSession, sampleRequest())

	assert.True(t, errors.Is(err, datatypes.ErrEngineUnavailable))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestGateway_NoURL(t *testing.T) {
	gw := NewHTTPGateway(GatewayConfig{}, nil)

	_, err := gw.Evaluate(context.Background(), observability.TargetSession, sampleRequest())

	assert.True(t, errors.Is(err, datatypes.ErrEngineUnavailable))
}

func TestGateway_RateLimitHonorsContext(t *testing.T) {
	srv, _, _ := engineStub(t, http.StatusOK, `{}`)
	gw := NewHTTPGateway(GatewayConfig{URL: srv.URL, RateLimit: 0.001, Burst: 1}, nil)

	_, err := gw.Evaluate(context.Background(), observability.TargetSession, sampleRequest())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = gw.Evaluate(ctx, observability.TargetSession, sampleRequest())
	assert.True(t, errors.Is(err, datatypes.ErrEngineUnavailable))
}

func TestGateway_OversizedResponse(t *testing.T) {
	srv, _, _ := engineStub(t, http.StatusOK, `{"padding":"0123456789012345678901234567890123456789"}`)
	gw := NewHTTPGateway(GatewayConfig{URL: srv.URL, MaxResponseBytes: 16}, nil)

	_, err := gw.Evaluate(context.Background(), observability.TargetSession, sampleRequest())

	assert.True(t, errors.Is(err, datatypes.ErrEngineUnavailable))
}
