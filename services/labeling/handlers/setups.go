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
	"net/http"

	"github.com/AleutianAI/ifeed/services/labeling/datatypes"
	"github.com/AleutianAI/ifeed/services/labeling/inference"
	"github.com/AleutianAI/ifeed/services/labeling/setups"
	"github.com/gin-gonic/gin"
)

func CreateSetup(svc *setups.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CreateSetupRequest
		if !bindJSON(c, &req) {
			return
		}
		setup, err := svc.Create(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, setup)
	}
}

// ListSetups supports ?name=, ?creatorId=, ?datasetId= and ?finalized=.
func ListSetups(svc *setups.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := datatypes.SetupFilter{Name: c.Query("name")}
		var ok bool
		if filter.CreatorID, ok = queryID(c, "creatorId"); !ok {
			return
		}
		if filter.DatasetID, ok = queryID(c, "datasetId"); !ok {
			return
		}
		if filter.Finalized, ok = queryBool(c, "finalized"); !ok {
			return
		}
		out, err := svc.List(c.Request.Context(), filter)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func GetSetup(svc *setups.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		setup, err := svc.Get(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, setup)
	}
}

func UpdateSetup(svc *setups.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var req datatypes.UpdateSetupRequest
		if !bindJSON(c, &req) {
			return
		}
		setup, err := svc.Update(c.Request.Context(), id, req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, setup)
	}
}

func FinalizeSetup(svc *setups.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		setup, err := svc.Finalize(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, setup)
	}
}

func DeleteSetup(svc *setups.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		if err := svc.Delete(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// EvaluateSetup previews the engine's answer for an unlabeled run of the
// setup. Nothing is stored.
func EvaluateSetup(svc *inference.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		ev, err := svc.EvaluateSetup(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, ev)
	}
}
