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
	"os"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/codescout/pkg/logging"
	"github.com/AleutianAI/codescout/services/engine/graph"
	"github.com/AleutianAI/codescout/services/engine/project"
	"github.com/AleutianAI/codescout/services/jobs"
)

// HandleListProjects serves the ids of projects with a completed
// checkout.
func HandleListProjects(layout project.Layout) gin.HandlerFunc {
	return func(c *gin.Context) {
		ids, err := layout.ListIndexed()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list projects: " + err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"projects": ids})
	}
}

// HandleDeleteProject removes every artifact of one project.
//
// # Description
//
// The repository checkout, vector-store directory, weaviate class,
// graph file, and agent workspace are deleted independently: one
// artifact failing to delete does not abort the others, and the
// response reports each outcome ("deleted", "absent", or the error).
// The in-process graph cache is invalidated regardless, so a stale
// graph cannot outlive its files.
func HandleDeleteProject(layout project.Layout, indexer *jobs.Indexer,
	graphs *graph.Service, logger *logging.Logger) gin.HandlerFunc {

	return func(c *gin.Context) {
		projectID := c.Param("projectId")
		if err := project.ValidateID(projectID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		results := gin.H{
			"repository":   removePath(layout.RepoDir(projectID)),
			"vector_store": removePath(layout.VectorStoreDir(projectID)),
			"code_graph":   removePath(layout.GraphFile(projectID)),
			"workspace":    removePath(layout.WorkspaceDir(projectID)),
		}

		if err := indexer.DeleteClass(c.Request.Context(), projectID); err != nil {
			results["vector_class"] = "error: " + err.Error()
		} else {
			results["vector_class"] = "deleted"
		}

		graphs.Invalidate(projectID)

		logger.Info("project deleted", "project_id", projectID, "results", results)
		c.JSON(http.StatusOK, gin.H{
			"project_id": projectID,
			"results":    results,
		})
	}
}

func removePath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "absent"
	}
	if err := os.RemoveAll(path); err != nil {
		return "error: " + err.Error()
	}
	return "deleted"
}
