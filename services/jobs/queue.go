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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/AleutianAI/codescout/pkg/logging"
)

const (
	queueKey      = "codescout:jobs"
	jobKeyPrefix  = "codescout:job:"
	lockKeyPrefix = "codescout:ingest:"

	// RecordTTL keeps finished job records around long enough for
	// clients to poll them without letting redis grow without bound.
	RecordTTL = 24 * time.Hour

	// DefaultLockTTL bounds how long a crashed worker can block
	// re-ingestion of the same project.
	DefaultLockTTL = 30 * time.Minute
)

// ErrJobNotFound indicates the job id has no record (never enqueued, or
// the record expired).
var ErrJobNotFound = errors.New("job not found")

// Queue is the redis-backed ingestion work queue plus the job status
// store and per-project ingest locks.
//
// Thread Safety: safe for concurrent use; all state lives in redis.
type Queue struct {
	client *redis.Client
	logger *logging.Logger
}

// NewQueue creates a Queue. A nil logger falls back to the default.
func NewQueue(client *redis.Client, logger *logging.Logger) *Queue {
	if logger == nil {
		logger = logging.Default()
	}
	return &Queue{client: client, logger: logger}
}

func jobKey(jobID string) string      { return jobKeyPrefix + jobID }
func lockKey(projectID string) string { return lockKeyPrefix + projectID }

// Enqueue creates a job for the git URL, records it as queued, and
// pushes it onto the work queue.
func (q *Queue) Enqueue(ctx context.Context, gitURL string) (Job, error) {
	projectID := ProjectName(gitURL)
	if projectID == "" {
		return Job{}, fmt.Errorf("cannot derive a project name from %q", gitURL)
	}

	job := Job{
		ID:         uuid.NewString(),
		GitURL:     gitURL,
		ProjectID:  projectID,
		EnqueuedAt: time.Now().UTC(),
	}

	if err := q.SetStatus(ctx, job, StatusQueued, MetaQueued, "waiting for a worker", ""); err != nil {
		return Job{}, err
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return Job{}, fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, queueKey, payload).Err(); err != nil {
		return Job{}, fmt.Errorf("enqueue job: %w", err)
	}

	q.logger.Info("job enqueued",
		"job_id", job.ID, "project_id", projectID, "git_url", gitURL)
	return job, nil
}

// Dequeue blocks up to timeout for the next job. The boolean is false
// when the wait timed out with an empty queue.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (Job, bool, error) {
	res, err := q.client.BRPop(ctx, timeout, queueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Job{}, false, nil
		}
		return Job{}, false, fmt.Errorf("dequeue job: %w", err)
	}
	// BRPOP returns [key, value].
	if len(res) != 2 {
		return Job{}, false, fmt.Errorf("unexpected BRPOP reply of length %d", len(res))
	}

	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return Job{}, false, fmt.Errorf("unmarshal job payload: %w", err)
	}
	return job, true, nil
}

// SetStatus writes the job's full status record.
func (q *Queue) SetStatus(ctx context.Context, job Job, status Status,
	detailed, message, result string) error {

	record := Record{
		JobID:          job.ID,
		GitURL:         job.GitURL,
		ProjectID:      job.ProjectID,
		Status:         status,
		DetailedStatus: detailed,
		Message:        message,
		Result:         result,
		UpdatedAt:      time.Now().UTC(),
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal job record: %w", err)
	}
	if err := q.client.Set(ctx, jobKey(job.ID), payload, RecordTTL).Err(); err != nil {
		return fmt.Errorf("store job record: %w", err)
	}
	return nil
}

// Status fetches a job's record.
//
// # Outputs
//
//   - The record on success.
//   - ErrJobNotFound when the id is unknown or the record expired.
func (q *Queue) Status(ctx context.Context, jobID string) (Record, error) {
	payload, err := q.client.Get(ctx, jobKey(jobID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, ErrJobNotFound
		}
		return Record{}, fmt.Errorf("fetch job record: %w", err)
	}

	var record Record
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		return Record{}, fmt.Errorf("unmarshal job record: %w", err)
	}
	return record, nil
}

// AcquireLock takes the per-project ingest lock. It returns false when
// another worker already holds it.
func (q *Queue) AcquireLock(ctx context.Context, projectID, holderID string,
	ttl time.Duration) (bool, error) {

	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	ok, err := q.client.SetNX(ctx, lockKey(projectID), holderID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire ingest lock: %w", err)
	}
	return ok, nil
}

// ReleaseLock drops the per-project ingest lock if this holder still
// owns it. Releasing a lock someone else took over is a no-op.
func (q *Queue) ReleaseLock(ctx context.Context, projectID, holderID string) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	if _, err := q.client.Eval(ctx, script, []string{lockKey(projectID)}, holderID).Result(); err != nil {
		return fmt.Errorf("release ingest lock: %w", err)
	}
	return nil
}
