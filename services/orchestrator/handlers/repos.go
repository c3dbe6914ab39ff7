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
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/codescout/services/jobs"
)

// repoRequest is the body of POST /v1/repos.
type repoRequest struct {
	GitURL string `json:"git_url"`
}

// HandleCreateRepo enqueues an ingestion job for a git repository.
//
// # Outputs
//
//   - 202 with {job_id, job_status, project_name} on success.
//   - 400 when the URL is missing or yields no project name.
//   - 502 when the queue is unreachable.
func HandleCreateRepo(queue *jobs.Queue) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req repoRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}
		if strings.TrimSpace(req.GitURL) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "git_url is required"})
			return
		}
		if jobs.ProjectName(req.GitURL) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot derive a project name from git_url"})
			return
		}

		job, err := queue.Enqueue(c.Request.Context(), req.GitURL)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "could not enqueue the job: " + err.Error()})
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"job_id":       job.ID,
			"job_status":   string(jobs.StatusQueued),
			"project_name": job.ProjectID,
		})
	}
}

// HandleJobStatus serves one job's record.
func HandleJobStatus(queue *jobs.Queue) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("jobId")

		record, err := queue.Status(c.Request.Context(), jobID)
		if err != nil {
			if errors.Is(err, jobs.ErrJobNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
				return
			}
			c.JSON(http.StatusBadGateway, gin.H{"error": "could not fetch job status: " + err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"job_id":          record.JobID,
			"status":          string(record.Status),
			"detailed_status": record.DetailedStatus,
			"message":         record.Message,
			"result":          record.Result,
		})
	}
}
