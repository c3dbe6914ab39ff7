// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package metrics exposes prometheus instrumentation for the orchestrator
// and worker processes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gin-gonic/gin"
)

var (
	// QueriesTotal counts queries by resolved route (rag, agent, error).
	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codescout",
		Name:      "queries_total",
		Help:      "Queries processed, labeled by resolved route.",
	}, []string{"route"})

	// ToolExecutionsTotal counts agent tool invocations by name and outcome.
	ToolExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codescout",
		Name:      "tool_executions_total",
		Help:      "Agent tool executions, labeled by tool name and outcome.",
	}, []string{"tool", "outcome"})

	// GraphBuildsTotal counts call-graph builds by outcome.
	GraphBuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codescout",
		Name:      "graph_builds_total",
		Help:      "Call graph builds, labeled by outcome.",
	}, []string{"outcome"})

	// GraphBuildDuration observes wall time of full graph builds.
	GraphBuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "codescout",
		Name:      "graph_build_duration_seconds",
		Help:      "Duration of call graph builds.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	// IngestJobsTotal counts ingestion jobs by terminal status.
	IngestJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codescout",
		Name:      "ingest_jobs_total",
		Help:      "Repository ingestion jobs, labeled by terminal status.",
	}, []string{"status"})

	// AgentStepsPerQuery observes how many reasoning steps each agent
	// run consumed before finishing.
	AgentStepsPerQuery = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "codescout",
		Name:      "agent_steps_per_query",
		Help:      "Reasoning steps consumed per agent query.",
		Buckets:   prometheus.LinearBuckets(1, 1, 15),
	})
)

// Handler returns a gin handler serving the prometheus text exposition
// format for the default registry.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
