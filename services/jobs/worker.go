// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package jobs

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/codescout/pkg/logging"
	"github.com/AleutianAI/codescout/pkg/metrics"
	"github.com/AleutianAI/codescout/services/engine/graph"
	"github.com/AleutianAI/codescout/services/engine/project"
)

// DequeueWait is how long one BRPOP blocks before the worker loop
// re-checks its context.
const DequeueWait = 5 * time.Second

// CloneTimeout bounds a single git clone.
const CloneTimeout = 10 * time.Minute

// Worker consumes ingestion jobs: clone, vector-index, graph-build.
//
// Thread Safety: one Worker runs one loop; run several Worker instances
// for parallelism. The per-project ingest lock keeps two workers from
// processing the same project at once.
type Worker struct {
	queue   *Queue
	indexer *Indexer
	builder *graph.Builder
	layout  project.Layout
	logger  *logging.Logger
	lockTTL time.Duration

	// holderID identifies this worker's lock ownership.
	holderID string
}

// NewWorker creates a Worker. A nil logger falls back to the default;
// lockTTL <= 0 falls back to DefaultLockTTL.
func NewWorker(queue *Queue, indexer *Indexer, builder *graph.Builder,
	layout project.Layout, logger *logging.Logger, lockTTL time.Duration) *Worker {

	if logger == nil {
		logger = logging.Default()
	}
	if lockTTL <= 0 {
		lockTTL = DefaultLockTTL
	}
	return &Worker{
		queue:    queue,
		indexer:  indexer,
		builder:  builder,
		layout:   layout,
		logger:   logger,
		lockTTL:  lockTTL,
		holderID: uuid.NewString(),
	}
}

// Run consumes jobs until the context is cancelled. Queue errors are
// logged and retried; a failing job never stops the loop.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started", "holder_id", w.holderID)
	for {
		if err := ctx.Err(); err != nil {
			w.logger.Info("worker stopping")
			return err
		}

		job, ok, err := w.queue.Dequeue(ctx, DequeueWait)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error("dequeue failed; backing off", "error", err)
			select {
			case <-time.After(DequeueWait):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		if !ok {
			continue
		}

		w.Process(ctx, job)
	}
}

// Process runs one job through the full pipeline and records its
// terminal status. It never returns an error: failures are written to
// the job record and counted.
func (w *Worker) Process(ctx context.Context, job Job) {
	w.logger.Info("job started",
		"job_id", job.ID, "project_id", job.ProjectID, "git_url", job.GitURL)

	acquired, err := w.queue.AcquireLock(ctx, job.ProjectID, w.holderID, w.lockTTL)
	if err != nil {
		w.fail(ctx, job, fmt.Sprintf("could not take the ingest lock: %v", err))
		return
	}
	if !acquired {
		w.fail(ctx, job, fmt.Sprintf(
			"project '%s' is already being ingested by another worker", job.ProjectID))
		return
	}
	defer func() {
		if err := w.queue.ReleaseLock(context.WithoutCancel(ctx), job.ProjectID, w.holderID); err != nil {
			w.logger.Error("release ingest lock failed",
				"project_id", job.ProjectID, "error", err)
		}
	}()

	// Stage 1: clone.
	w.setStatus(ctx, job, StatusStarted, MetaCloning,
		"cloning "+job.GitURL)
	repoPath := w.layout.RepoDir(job.ProjectID)
	if err := w.clone(ctx, job.GitURL, repoPath); err != nil {
		w.fail(ctx, job, fmt.Sprintf("clone failed: %v", err))
		return
	}

	// Stage 2: vector index.
	w.setStatus(ctx, job, StatusStarted, MetaIndexing,
		"indexing source into the vector store")
	chunks, err := w.indexer.Index(ctx, job.ProjectID, repoPath,
		w.layout.VectorStoreDir(job.ProjectID))
	if err != nil {
		w.fail(ctx, job, fmt.Sprintf("vector indexing failed: %v", err))
		return
	}

	// Stage 3: code graph.
	w.setStatus(ctx, job, StatusStarted, MetaGraphing,
		"building the call graph")
	start := time.Now()
	g, err := w.builder.BuildAndSave(ctx, repoPath, w.layout.GraphFile(job.ProjectID))
	if err != nil {
		metrics.GraphBuildsTotal.WithLabelValues("error").Inc()
		w.fail(ctx, job, fmt.Sprintf("graph build failed: %v", err))
		return
	}
	metrics.GraphBuildsTotal.WithLabelValues("ok").Inc()
	metrics.GraphBuildDuration.Observe(time.Since(start).Seconds())

	result := fmt.Sprintf(
		"Project '%s' processed successfully: %d chunks indexed, %d nodes and %d edges in the call graph.",
		job.ProjectID, chunks, len(g.Nodes), len(g.Edges))
	w.setStatusFull(ctx, job, StatusCompleted, MetaCompleted, "", result)
	metrics.IngestJobsTotal.WithLabelValues(string(StatusCompleted)).Inc()
	w.logger.Info("job completed", "job_id", job.ID, "project_id", job.ProjectID)
}

// clone checks the repository out fresh, replacing any previous
// checkout of the same project.
func (w *Worker) clone(ctx context.Context, gitURL, repoPath string) error {
	if _, err := os.Stat(repoPath); err == nil {
		w.logger.Info("removing existing checkout", "repo_path", repoPath)
		if err := os.RemoveAll(repoPath); err != nil {
			return fmt.Errorf("remove old checkout: %w", err)
		}
	}

	cloneCtx, cancel := context.WithTimeout(ctx, CloneTimeout)
	defer cancel()

	cmd := exec.CommandContext(cloneCtx, "git", "clone", "--depth", "1", gitURL, repoPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		if cloneCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("clone timed out after %s", CloneTimeout)
		}
		return fmt.Errorf("git clone: %w: %s", err, string(out))
	}
	return nil
}

func (w *Worker) setStatus(ctx context.Context, job Job, status Status, detailed, message string) {
	w.setStatusFull(ctx, job, status, detailed, message, "")
}

func (w *Worker) setStatusFull(ctx context.Context, job Job, status Status,
	detailed, message, result string) {

	if err := w.queue.SetStatus(ctx, job, status, detailed, message, result); err != nil {
		w.logger.Error("status update failed",
			"job_id", job.ID, "status", string(status), "error", err)
	}
}

func (w *Worker) fail(ctx context.Context, job Job, message string) {
	w.logger.Error("job failed",
		"job_id", job.ID, "project_id", job.ProjectID, "message", message)
	w.setStatusFull(context.WithoutCancel(ctx), job, StatusFailed, MetaFailed, message, "")
	metrics.IngestJobsTotal.WithLabelValues(string(StatusFailed)).Inc()
}
