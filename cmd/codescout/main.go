// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/codescout/services/engine"
	"github.com/AleutianAI/codescout/services/engine/graph"
	"github.com/AleutianAI/codescout/services/engine/memory"
	"github.com/AleutianAI/codescout/services/engine/project"
	"github.com/AleutianAI/codescout/services/engine/rag"
	"github.com/AleutianAI/codescout/services/engine/router"
	"github.com/AleutianAI/codescout/services/jobs"
	"github.com/AleutianAI/codescout/services/llm"
	"github.com/AleutianAI/codescout/services/orchestrator/routes"
)

var rootCmd = &cobra.Command{
	Use:   "codescout",
	Short: "Code comprehension assistant over indexed repositories",
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the query API server",
	RunE:  runServer,
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the repository ingestion worker",
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(workerCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	logger := newLogger(cfg, "codescout-server")
	defer logger.Close()

	weaviateClient, err := newWeaviateClient(cfg)
	if err != nil {
		return err
	}
	oracle, err := llm.NewOpenAIClient()
	if err != nil {
		return err
	}

	layout := project.Layout{DataDir: cfg.DataDir}
	mem := memory.NewManager(0)
	graphs := graph.NewService(logger)
	redisClient := newRedisClient(cfg)
	queue := jobs.NewQueue(redisClient, logger)
	indexer := jobs.NewIndexer(weaviateClient, logger)

	eng := engine.New(engine.Deps{
		Layout:        layout,
		Memory:        mem,
		Router:        router.New(oracle, logger),
		RAG:           rag.NewEngine(rag.NewWeaviateRetriever(weaviateClient), oracle, logger, 0),
		Graphs:        graphs,
		Oracle:        oracle,
		Logger:        logger,
		MaxAgentSteps: cfg.MaxAgentSteps,
	})

	ginRouter := gin.Default()
	routes.SetupRoutes(ginRouter, routes.Deps{
		Engine:  eng,
		Queue:   queue,
		Indexer: indexer,
		Graphs:  graphs,
		Memory:  mem,
		Layout:  layout,
		Logger:  logger,
	})

	logger.Info("starting the API server", "port", cfg.Port, "data_dir", cfg.DataDir)
	return ginRouter.Run(":" + cfg.Port)
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	logger := newLogger(cfg, "codescout-worker")
	defer logger.Close()

	weaviateClient, err := newWeaviateClient(cfg)
	if err != nil {
		return err
	}

	layout := project.Layout{DataDir: cfg.DataDir}
	queue := jobs.NewQueue(newRedisClient(cfg), logger)
	indexer := jobs.NewIndexer(weaviateClient, logger)
	builder := graph.NewBuilder(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	worker := jobs.NewWorker(queue, indexer, builder, layout, logger, 0)
	logger.Info("starting the ingestion worker", "data_dir", cfg.DataDir, "redis", cfg.RedisAddr)
	if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
