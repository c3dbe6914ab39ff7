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
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"github.com/AleutianAI/codescout/pkg/logging"
)

// Config carries the process configuration, read from the environment.
type Config struct {
	Port          string
	DataDir       string
	RedisAddr     string
	WeaviateURL   string
	LogDir        string
	LogJSON       bool
	MaxAgentSteps int
}

func loadConfig() Config {
	return Config{
		Port:          envOr("CODESCOUT_PORT", "8420"),
		DataDir:       envOr("DATA_DIR", "/data/codescout"),
		RedisAddr:     envOr("REDIS_ADDR", "localhost:6379"),
		WeaviateURL:   os.Getenv("WEAVIATE_SERVICE_URL"),
		LogDir:        os.Getenv("LOG_DIR"),
		LogJSON:       envOr("LOG_FORMAT", "") == "json",
		MaxAgentSteps: envIntOr("MAX_AGENT_STEPS", 0),
	}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func newLogger(cfg Config, service string) *logging.Logger {
	return logging.New(logging.Config{
		Level:   logging.LevelInfo,
		LogDir:  cfg.LogDir,
		Service: service,
		JSON:    cfg.LogJSON,
	})
}

func newRedisClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
}

// newWeaviateClient parses WEAVIATE_SERVICE_URL into a client.
//
// The value is trimmed of stray quotes in case the container runtime
// passes them literally.
func newWeaviateClient(cfg Config) (*weaviate.Client, error) {
	raw := strings.Trim(cfg.WeaviateURL, "\"' ")
	if raw == "" {
		return nil, fmt.Errorf("WEAVIATE_SERVICE_URL is not set")
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("WEAVIATE_SERVICE_URL %q is not a valid URL", raw)
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsed.Host,
		Scheme: parsed.Scheme,
	})
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}
	return client, nil
}
