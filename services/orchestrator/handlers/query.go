// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers contains the gin handlers for the codescout API.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/codescout/pkg/logging"
	"github.com/AleutianAI/codescout/services/engine"
)

// queryRequest is the body of POST /v1/query.
type queryRequest struct {
	Question  string `json:"question"`
	ProjectID string `json:"project_id"`
	SessionID string `json:"session_id"`
}

// HandleQuery streams one query's events over SSE.
//
// # Description
//
// Input validation failures are plain JSON 400s; once streaming starts,
// every failure travels inside the stream as an "error" event followed
// by the terminal "end" event. The engine stops producing if the client
// disconnects.
func HandleQuery(eng *engine.Engine, logger *logging.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = logging.Default()
	}
	return func(c *gin.Context) {
		var req queryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}
		if strings.TrimSpace(req.Question) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
			return
		}
		if strings.TrimSpace(req.ProjectID) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "project_id is required"})
			return
		}

		SetSSEHeaders(c.Writer)
		writer, err := NewSSEWriter(c.Writer)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
			return
		}

		sessionID, err := eng.Query(c.Request.Context(), engine.QueryRequest{
			ProjectID: req.ProjectID,
			Question:  req.Question,
			SessionID: req.SessionID,
		}, writer)
		if err != nil {
			// Already reported in-stream; log for the operator.
			logger.Warn("query ended with error",
				"project_id", req.ProjectID, "session_id", sessionID, "error", err)
		}
	}
}

// HealthCheck reports process liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
