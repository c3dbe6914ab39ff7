// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package jobs runs repository ingestion: a redis-backed work queue the
// API enqueues onto and a worker that clones, vector-indexes, and
// graph-builds each repository.
package jobs

import (
	"path"
	"strings"
	"time"
)

// Status is a job's coarse lifecycle state.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Detailed substates reported while a job is running, in pipeline
// order.
const (
	MetaQueued    = "queued"
	MetaCloning   = "cloning"
	MetaIndexing  = "indexing"
	MetaGraphing  = "graphing"
	MetaCompleted = "completed"
	MetaFailed    = "failed"
)

// Job is one unit of ingestion work on the queue.
type Job struct {
	ID         string    `json:"id"`
	GitURL     string    `json:"git_url"`
	ProjectID  string    `json:"project_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Record is a job's externally visible state, stored in redis and
// served by the jobs endpoint.
type Record struct {
	JobID          string    `json:"job_id"`
	GitURL         string    `json:"git_url"`
	ProjectID      string    `json:"project_id"`
	Status         Status    `json:"status"`
	DetailedStatus string    `json:"detailed_status"`
	Message        string    `json:"message,omitempty"`
	Result         string    `json:"result,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ProjectName derives the project id from a git URL: the last path
// segment with any ".git" suffix removed. Query strings and fragments
// are not part of the name.
func ProjectName(gitURL string) string {
	s := gitURL
	if idx := strings.IndexAny(s, "?#"); idx >= 0 {
		s = s[:idx]
	}
	// scp-style addresses (git@host:org/repo.git) have no scheme for
	// url.Parse to anchor on; the path tail is all we need either way.
	if idx := strings.Index(s, "://"); idx >= 0 {
		s = s[idx+3:]
	} else if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(s, "/")
	name := path.Base(s)
	name = strings.TrimSuffix(name, ".git")
	if name == "." || name == "/" {
		return ""
	}
	return name
}
