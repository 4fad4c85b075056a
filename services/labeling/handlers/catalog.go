// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/AleutianAI/ifeed/services/labeling/datatypes"
	"github.com/AleutianAI/ifeed/services/labeling/storage"
	"github.com/gin-gonic/gin"
)

func ListDatasetTypes(store storage.CatalogStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := store.ListDatasetTypes(c.Request.Context())
		if err != nil {
			respondError(c, storage.Translate(err, "dataset types"))
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func CreateDatasetType(store storage.CatalogStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CreateDatasetTypeRequest
		if !bindJSON(c, &req) {
			return
		}
		if err := req.Validate(); err != nil {
			respondError(c, err)
			return
		}
		dt, err := store.CreateDatasetType(c.Request.Context(), req.Name)
		if err != nil {
			respondError(c, storage.Translate(err, "dataset type %q", req.Name))
			return
		}
		slog.Info("dataset type created", "id", dt.ID, "name", dt.Name)
		c.JSON(http.StatusCreated, dt)
	}
}

func ListParams(store storage.CatalogStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := store.ListParams(c.Request.Context())
		if err != nil {
			respondError(c, storage.Translate(err, "params"))
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func CreateParam(store storage.CatalogStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CreateParamRequest
		if !bindJSON(c, &req) {
			return
		}
		if err := req.Validate(); err != nil {
			respondError(c, err)
			return
		}
		p, err := store.CreateParam(c.Request.Context(), datatypes.Param{Name: req.Name, Type: req.Type, Regex: req.Regex})
		if err != nil {
			respondError(c, storage.Translate(err, "param %q", req.Name))
			return
		}
		slog.Info("param created", "id", p.ID, "name", p.Name, "type", string(p.Type))
		c.JSON(http.StatusCreated, p)
	}
}

func ListClassifiers(store storage.CatalogStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := store.ListClassifiers(c.Request.Context())
		if err != nil {
			respondError(c, storage.Translate(err, "classifiers"))
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func CreateClassifier(store storage.CatalogStore) gin.HandlerFunc {
	return createModel("classifier", func(c *gin.Context, req datatypes.CreateModelRequest) (any, error) {
		return store.CreateClassifier(c.Request.Context(), req.Name, req.ParamIDs)
	})
}

func ListQueryStrategies(store storage.CatalogStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := store.ListQueryStrategies(c.Request.Context())
		if err != nil {
			respondError(c, storage.Translate(err, "query strategies"))
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func CreateQueryStrategy(store storage.CatalogStore) gin.HandlerFunc {
	return createModel("query strategy", func(c *gin.Context, req datatypes.CreateModelRequest) (any, error) {
		return store.CreateQueryStrategy(c.Request.Context(), req.Name, req.ParamIDs)
	})
}

// createModel is shared by classifiers and query strategies. An unknown
// param id surfaces from the store as not found.
func createModel(kind string, create func(*gin.Context, datatypes.CreateModelRequest) (any, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CreateModelRequest
		if !bindJSON(c, &req) {
			return
		}
		if err := req.Validate(); err != nil {
			respondError(c, err)
			return
		}
		out, err := create(c, req)
		if err != nil {
			respondError(c, storage.Translate(err, "%s %q", kind, req.Name))
			return
		}
		slog.Info(kind+" created", "name", req.Name, "params", len(req.ParamIDs))
		c.JSON(http.StatusCreated, out)
	}
}
