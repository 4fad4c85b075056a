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

func CreateDataset(store storage.DatasetStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CreateDatasetRequest
		if !bindJSON(c, &req) {
			return
		}
		if err := req.Validate(); err != nil {
			respondError(c, err)
			return
		}
		d, err := store.CreateDataset(c.Request.Context(), req.Dataset())
		if err != nil {
			respondError(c, storage.Translate(err, "dataset %q", req.Name))
			return
		}
		slog.Info("dataset created", "id", d.ID, "name", d.Name, "rows", d.RowCount(), "columns", d.ColumnCount())
		c.JSON(http.StatusCreated, d)
	}
}

func ListDatasets(store storage.DatasetStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := store.ListDatasets(c.Request.Context())
		if err != nil {
			respondError(c, storage.Translate(err, "datasets"))
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func GetDataset(store storage.DatasetStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		d, err := store.GetDataset(c.Request.Context(), id)
		if err != nil {
			respondError(c, storage.Translate(err, "dataset %d", id))
			return
		}
		c.JSON(http.StatusOK, d)
	}
}

// UpdateDataset renames or redescribes a dataset. The matrices never change.
func UpdateDataset(store storage.DatasetStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var req datatypes.UpdateDatasetRequest
		if !bindJSON(c, &req) {
			return
		}
		if err := req.Validate(); err != nil {
			respondError(c, err)
			return
		}
		ctx := c.Request.Context()
		d, err := store.GetDataset(ctx, id)
		if err != nil {
			respondError(c, storage.Translate(err, "dataset %d", id))
			return
		}
		if req.Name != nil {
			d.Name = *req.Name
		}
		if req.Description != nil {
			d.Description = *req.Description
		}
		if err := store.UpdateDataset(ctx, d); err != nil {
			respondError(c, storage.Translate(err, "dataset %d", id))
			return
		}
		c.JSON(http.StatusOK, d)
	}
}

// DeleteDataset removes a dataset. Datasets referenced by a setup are
// refused with a state error.
func DeleteDataset(store storage.DatasetStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		if err := store.DeleteDataset(c.Request.Context(), id); err != nil {
			respondError(c, storage.Translate(err, "dataset %d", id))
			return
		}
		slog.Info("dataset deleted", "id", id)
		c.Status(http.StatusNoContent)
	}
}
