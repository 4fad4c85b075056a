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
	"log/slog"
	"net/http"
	"time"

	"github.com/AleutianAI/ifeed/services/labeling/datatypes"
	"github.com/gin-gonic/gin"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

const healthTimeout = 2 * time.Second

// HealthCheck answers {"status": "ok"}, or 503 when the store does not
// respond. A nil Pinger is always healthy.
func HealthCheck(p Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if p != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				slog.Warn("health check failed", "error", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func ListFeedbackModes(c *gin.Context) {
	c.JSON(http.StatusOK, datatypes.FeedbackModes)
}

func ListHistoryModes(c *gin.Context) {
	c.JSON(http.StatusOK, datatypes.HistoryModes)
}

// ListLabels returns every label with its user and final token.
func ListLabels(c *gin.Context) {
	c.JSON(http.StatusOK, datatypes.LabelViews())
}
