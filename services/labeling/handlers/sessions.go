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
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/AleutianAI/ifeed/services/labeling/datatypes"
	"github.com/AleutianAI/ifeed/services/labeling/inference"
	"github.com/AleutianAI/ifeed/services/labeling/sessions"
	"github.com/gin-gonic/gin"
)

func CreateSession(svc *sessions.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CreateSessionRequest
		if !bindJSON(c, &req) {
			return
		}
		s, err := svc.Create(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, s)
	}
}

// ListSessions supports ?setupId=, ?userId= and ?finished=.
func ListSessions(svc *sessions.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			filter datatypes.SessionFilter
			ok     bool
		)
		if filter.SetupID, ok = queryID(c, "setupId"); !ok {
			return
		}
		if filter.UserID, ok = queryID(c, "userId"); !ok {
			return
		}
		if filter.Finished, ok = queryBool(c, "finished"); !ok {
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

func GetSession(svc *sessions.Service) gin.HandlerFunc {
	return sessionAction(svc.Get)
}

func DeleteSession(svc *sessions.Service) gin.HandlerFunc {
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

// =============================================================================
// State machine
// =============================================================================

// RecordLabel handles PUT /sessions/:id/labels/:row with {"label": "Lin"}.
func RecordLabel(svc *sessions.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		row, err := strconv.Atoi(c.Param("row"))
		if err != nil {
			respondError(c, datatypes.NewError(datatypes.CodeValidation, "row must be an integer"))
			return
		}
		var req datatypes.RecordLabelRequest
		if !bindJSON(c, &req) {
			return
		}
		s, err := svc.RecordLabel(c.Request.Context(), id, row, req.Label)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, s)
	}
}

func AdvanceSession(svc *sessions.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var req datatypes.AdvanceRequest
		if !bindJSON(c, &req) {
			return
		}
		s, err := svc.Advance(c.Request.Context(), id, req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, s)
	}
}

func RewindSession(svc *sessions.Service) gin.HandlerFunc {
	return sessionAction(svc.Rewind)
}

func PauseSession(svc *sessions.Service) gin.HandlerFunc {
	return sessionAction(svc.Pause)
}

func ResumeSession(svc *sessions.Service) gin.HandlerFunc {
	return sessionAction(svc.Resume)
}

func CloseSession(svc *sessions.Service) gin.HandlerFunc {
	return sessionAction(svc.Close)
}

// sessionAction adapts a body-less operation on one session.
func sessionAction[T any](op func(ctx context.Context, id int64) (T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		out, err := op(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

// =============================================================================
// Evaluation and statistics
// =============================================================================

// EvaluateSession runs the engine on the session and applies its global
// prediction. The raw engine reply is part of the response.
func EvaluateSession(svc *inference.Service) gin.HandlerFunc {
	return sessionAction(svc.EvaluateSession)
}

func SessionProgress(svc *sessions.Service) gin.HandlerFunc {
	return sessionAction(svc.Progress)
}

func CompareSessions(svc *sessions.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := pathID(c, "id")
		if !ok {
			return
		}
		b, ok := pathID(c, "other")
		if !ok {
			return
		}
		cmp, err := svc.Compare(c.Request.Context(), a, b)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, cmp)
	}
}

// ExportLabels serves {"finalLabels": [...]} as a download named after the
// session.
func ExportLabels(svc *sessions.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		exp, err := svc.Export(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exp.FileName))
		c.JSON(http.StatusOK, exp)
	}
}
