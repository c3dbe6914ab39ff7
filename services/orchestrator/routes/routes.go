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
	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/codescout/pkg/logging"
	"github.com/AleutianAI/codescout/pkg/metrics"
	"github.com/AleutianAI/codescout/services/engine"
	"github.com/AleutianAI/codescout/services/engine/graph"
	"github.com/AleutianAI/codescout/services/engine/memory"
	"github.com/AleutianAI/codescout/services/engine/project"
	"github.com/AleutianAI/codescout/services/jobs"
	"github.com/AleutianAI/codescout/services/orchestrator/handlers"
)

// Deps bundles everything the API routes need.
type Deps struct {
	Engine  *engine.Engine
	Queue   *jobs.Queue
	Indexer *jobs.Indexer
	Graphs  *graph.Service
	Memory  *memory.Manager
	Layout  project.Layout
	Logger  *logging.Logger
}

// SetupRoutes registers every API route on the router.
func SetupRoutes(router *gin.Engine, deps Deps) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", metrics.Handler())

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.POST("/query", handlers.HandleQuery(deps.Engine, deps.Logger))
		v1.POST("/repos", handlers.HandleCreateRepo(deps.Queue))
		v1.GET("/jobs/:jobId", handlers.HandleJobStatus(deps.Queue))
		v1.GET("/projects", handlers.HandleListProjects(deps.Layout))
		v1.DELETE("/projects/:projectId", handlers.HandleDeleteProject(
			deps.Layout, deps.Indexer, deps.Graphs, deps.Logger))
		// Session administration routes
		sessions := v1.Group("/sessions")
		{
			sessions.GET("", handlers.HandleListSessions(deps.Memory))
			sessions.DELETE("/:sessionId", handlers.HandleDeleteSession(deps.Memory))
		}
	}
}
