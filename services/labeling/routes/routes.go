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

	"github.com/AleutianAI/ifeed/services/labeling/handlers"
	"github.com/AleutianAI/ifeed/services/labeling/inference"
	"github.com/AleutianAI/ifeed/services/labeling/sessions"
	"github.com/AleutianAI/ifeed/services/labeling/setups"
	"github.com/AleutianAI/ifeed/services/labeling/storage"
	"github.com/gin-gonic/gin"
)

// Store is what the route table needs from persistence directly.
type Store interface {
	storage.CatalogStore
	storage.DatasetStore
	storage.PersonStore
	handlers.Pinger
}

// Dependencies groups everything the handlers are bound to. Metrics is the
// /metrics handler; nil leaves the route unregistered.
type Dependencies struct {
	Store     Store
	Setups    *setups.Service
	Sessions  *sessions.Service
	Inference *inference.Service
	Metrics   http.Handler
}

func SetupRoutes(router *gin.Engine, deps Dependencies) {
	router.GET("/health", handlers.HealthCheck(deps.Store))
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	// API version 1 group
	v1 := router.Group("/v1")
	{
		enums := v1.Group("/enums")
		{
			enums.GET("/feedback-modes", handlers.ListFeedbackModes)
			enums.GET("/history-modes", handlers.ListHistoryModes)
			enums.GET("/labels", handlers.ListLabels)
		}

		// Catalog
		v1.GET("/dataset-types", handlers.ListDatasetTypes(deps.Store))
		v1.POST("/dataset-types", handlers.CreateDatasetType(deps.Store))
		v1.GET("/params", handlers.ListParams(deps.Store))
		v1.POST("/params", handlers.CreateParam(deps.Store))
		v1.GET("/classifiers", handlers.ListClassifiers(deps.Store))
		v1.POST("/classifiers", handlers.CreateClassifier(deps.Store))
		v1.GET("/query-strategies", handlers.ListQueryStrategies(deps.Store))
		v1.POST("/query-strategies", handlers.CreateQueryStrategy(deps.Store))

		datasets := v1.Group("/datasets")
		{
			datasets.GET("", handlers.ListDatasets(deps.Store))
			datasets.POST("", handlers.CreateDataset(deps.Store))
			datasets.GET("/:id", handlers.GetDataset(deps.Store))
			datasets.PATCH("/:id", handlers.UpdateDataset(deps.Store))
			datasets.DELETE("/:id", handlers.DeleteDataset(deps.Store))
		}

		persons := v1.Group("/persons")
		{
			persons.GET("", handlers.ListPersons(deps.Store))
			persons.POST("", handlers.CreatePerson(deps.Store))
			persons.GET("/:id", handlers.GetPerson(deps.Store))
			persons.PATCH("/:id", handlers.UpdatePerson(deps.Store))
			persons.DELETE("/:id", handlers.DeletePerson(deps.Store))
		}

		setupRoutes := v1.Group("/setups")
		{
			setupRoutes.GET("", handlers.ListSetups(deps.Setups))
			setupRoutes.POST("", handlers.CreateSetup(deps.Setups))
			setupRoutes.GET("/:id", handlers.GetSetup(deps.Setups))
			setupRoutes.PATCH("/:id", handlers.UpdateSetup(deps.Setups))
			setupRoutes.DELETE("/:id", handlers.DeleteSetup(deps.Setups))
			setupRoutes.POST("/:id/finalize", handlers.FinalizeSetup(deps.Setups))
			setupRoutes.POST("/:id/evaluate", handlers.EvaluateSetup(deps.Inference))
		}

		sessionRoutes := v1.Group("/sessions")
		{
			sessionRoutes.GET("", handlers.ListSessions(deps.Sessions))
			sessionRoutes.POST("", handlers.CreateSession(deps.Sessions))
			sessionRoutes.GET("/:id", handlers.GetSession(deps.Sessions))
			sessionRoutes.DELETE("/:id", handlers.DeleteSession(deps.Sessions))
			sessionRoutes.PUT("/:id/labels/:row", handlers.RecordLabel(deps.Sessions))
			sessionRoutes.POST("/:id/advance", handlers.AdvanceSession(deps.Sessions))
			sessionRoutes.POST("/:id/rewind", handlers.RewindSession(deps.Sessions))
			sessionRoutes.POST("/:id/pause", handlers.PauseSession(deps.Sessions))
			sessionRoutes.POST("/:id/resume", handlers.ResumeSession(deps.Sessions))
			sessionRoutes.POST("/:id/close", handlers.CloseSession(deps.Sessions))
			sessionRoutes.POST("/:id/evaluate", handlers.EvaluateSession(deps.Inference))
			sessionRoutes.GET("/:id/progress", handlers.SessionProgress(deps.Sessions))
			sessionRoutes.GET("/:id/export", handlers.ExportLabels(deps.Sessions))
			sessionRoutes.GET("/:id/compare/:other", handlers.CompareSessions(deps.Sessions))
		}
	}
}
