// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the HTTP endpoints of the labeling service.
//
// Every handler is a constructor returning a gin.HandlerFunc bound to its
// dependencies. Failures are answered with
//
//	{"error": {"code": "<taxonomy code>", "message": "..."}}
//
// and a status derived from the code; see StatusFor.
package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/AleutianAI/ifeed/services/labeling/datatypes"
	"github.com/gin-gonic/gin"
)

// ErrorBody is the payload of every failed request.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the taxonomy code and a client-facing message.
type ErrorDetail struct {
	Code    datatypes.ErrorCode `json:"code"`
	Message string              `json:"message"`
}

// StatusFor maps a taxonomy code to an HTTP status.
func StatusFor(code datatypes.ErrorCode) int {
	switch code {
	case datatypes.CodeValidation, datatypes.CodeInvalidLabel, datatypes.CodeOutOfRange:
		return http.StatusBadRequest
	case datatypes.CodeNotFound:
		return http.StatusNotFound
	case datatypes.CodeForbidden:
		return http.StatusForbidden
	case datatypes.CodeState, datatypes.CodeNotRewindable, datatypes.CodeNoHistory,
		datatypes.CodeImmutable, datatypes.CodeNotReady:
		return http.StatusConflict
	case datatypes.CodeEngineUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as an ErrorBody. Internal errors are logged with
// their cause and answered with a generic message.
func respondError(c *gin.Context, err error) {
	code := datatypes.CodeOf(err)
	status := StatusFor(code)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"code", string(code),
			"error", err)
	}
	c.AbortWithStatusJSON(status, ErrorBody{Error: ErrorDetail{Code: code, Message: datatypes.MessageOf(err)}})
}

// bindJSON decodes the request body into v. A malformed body is answered
// with a validation error and false is returned.
func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		respondError(c, datatypes.WrapError(datatypes.CodeValidation, err, "invalid request body: %v", err))
		return false
	}
	return true
}

// pathID parses the positive integer path parameter name.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, datatypes.NewError(datatypes.CodeValidation, "%s must be a positive integer", name))
		return 0, false
	}
	return id, true
}

// queryID parses an optional positive integer query parameter. Absent
// parameters yield zero.
func queryID(c *gin.Context, name string) (int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		respondError(c, datatypes.NewError(datatypes.CodeValidation, "%s must be a positive integer", name))
		return 0, false
	}
	return id, true
}

// queryBool parses an optional boolean query parameter.
func queryBool(c *gin.Context, name string) (*bool, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		respondError(c, datatypes.NewError(datatypes.CodeValidation, "%s must be true or false", name))
		return nil, false
	}
	return &v, true
}
