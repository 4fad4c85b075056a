// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AleutianAI/ifeed/services/labeling/inference"
	"github.com/AleutianAI/ifeed/services/labeling/observability"
	"github.com/AleutianAI/ifeed/services/labeling/sessions"
	"github.com/AleutianAI/ifeed/services/labeling/setups"
	"github.com/AleutianAI/ifeed/services/labeling/storage/sqlite/sqlitetest"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(t *testing.T, withMetrics bool) *gin.Engine {
	t.Helper()
	store := sqlitetest.Open(t)
	sqlitetest.Seed(t, store)
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)

	deps := Dependencies{
		Store:     store,
		Setups:    setups.NewService(store, m),
		Sessions:  sessions.NewService(store, nil, m),
		Inference: inference.NewService(store, inference.NewHTTPGateway(inference.GatewayConfig{}, m), m),
	}
	if withMetrics {
		deps.Metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}
	router := gin.New()
	SetupRoutes(router, deps)
	return router
}

func serve(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestSetupRoutes_RegistersAPI(t *testing.T) {
	router := newRouter(t, true)

	registered := map[string]bool{}
	for _, r := range router.Routes() {
		registered[r.Method+" "+r.Path] = true
	}

	expected := []string{
		"GET /health",
		"GET /metrics",
		"GET /v1/enums/feedback-modes",
		"GET /v1/enums/history-modes",
		"GET /v1/enums/labels",
		"GET /v1/dataset-types",
		"POST /v1/dataset-types",
		"GET /v1/params",
		"POST /v1/params",
		"GET /v1/classifiers",
		"POST /v1/classifiers",
		"GET /v1/query-strategies",
		"POST /v1/query-strategies",
		"GET /v1/datasets",
		"POST /v1/datasets",
		"GET /v1/datasets/:id",
		"PATCH /v1/datasets/:id",
		"DELETE /v1/datasets/:id",
		"GET /v1/persons",
		"POST /v1/persons",
		"GET /v1/persons/:id",
		"PATCH /v1/persons/:id",
		"DELETE /v1/persons/:id",
		"GET /v1/setups",
		"POST /v1/setups",
		"GET /v1/setups/:id",
		"PATCH /v1/setups/:id",
		"DELETE /v1/setups/:id",
		"POST /v1/setups/:id/finalize",
		"POST /v1/setups/:id/evaluate",
		"GET /v1/sessions",
		"POST /v1/sessions",
		"GET /v1/sessions/:id",
		"DELETE /v1/sessions/:id",
		"PUT /v1/sessions/:id/labels/:row",
		"POST /v1/sessions/:id/advance",
		"POST /v1/sessions/:id/rewind",
		"POST /v1/sessions/:id/pause",
		"POST /v1/sessions/:id/resume",
		"POST /v1/sessions/:id/close",
		"POST /v1/sessions/:id/evaluate",
		"GET /v1/sessions/:id/progress",
		"GET /v1/sessions/:id/export",
		"GET /v1/sessions/:id/compare/:other",
	}
	for _, route := range expected {
		assert.True(t, registered[route], "missing route %s", route)
	}
	assert.Len(t, router.Routes(), len(expected))
}

func TestSetupRoutes_Health(t *testing.T) {
	router := newRouter(t, false)

	w := serve(router, "GET", "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestSetupRoutes_MetricsOptional(t *testing.T) {
	with := newRouter(t, true)
	without := newRouter(t, false)

	// Touch an engine metric so the exposition is not empty.
	serve(with, "POST", "/v1/setups/1/evaluate")
	w := serve(with, "GET", "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ifeed_labeling_engine_requests_total")

	assert.Equal(t, http.StatusNotFound, serve(without, "GET", "/metrics").Code)
}

func TestSetupRoutes_EngineDownIsBadGateway(t *testing.T) {
	router := newRouter(t, false)

	w := serve(router, "POST", "/v1/setups/1/evaluate")

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), `"engine_unavailable"`)
}
