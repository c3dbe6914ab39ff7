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
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/AleutianAI/codescout/pkg/logging"
	"github.com/AleutianAI/codescout/services/engine/rag"
)

// Chunking parameters for python source. Windows overlap so a
// definition split across a boundary still lands whole in one chunk.
const (
	ChunkLines        = 40
	ChunkLinesOverlap = 15
	ChunkMaxChars     = 1500

	// IndexBatchSize is how many chunks go to weaviate per batch call.
	IndexBatchSize = 100
)

// markerFile records a completed index run inside the project's
// vector-store directory. Its presence is what marks a project as
// indexed.
const markerFile = "index.json"

var indexSkipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"venv":         true,
	".venv":        true,
	"__pycache__":  true,
}

// Indexer writes a project's chunked source into its weaviate class.
//
// Thread Safety: safe for concurrent use across distinct projects; two
// concurrent runs for the same project race on the class (the ingest
// lock prevents that).
type Indexer struct {
	client *weaviate.Client
	logger *logging.Logger
}

// NewIndexer creates an Indexer. A nil logger falls back to the default.
func NewIndexer(client *weaviate.Client, logger *logging.Logger) *Indexer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Indexer{client: client, logger: logger}
}

// Index chunks every python file under repoPath into the project's
// class and writes the vector-store marker on success.
//
// # Description
//
// Re-ingestion starts clean: any existing class for the project is
// dropped before indexing so stale chunks from a previous checkout
// cannot survive. Embeddings are produced server-side by weaviate's
// configured vectorizer module.
//
// # Outputs
//
//   - The number of chunks indexed.
//   - A non-nil error if walking, the batch import, or the marker write
//     fails; the marker is only written after a full successful import.
func (ix *Indexer) Index(ctx context.Context, projectID, repoPath, markerDir string) (int, error) {
	chunks, err := chunkRepo(repoPath)
	if err != nil {
		return 0, err
	}

	className := rag.ClassName(projectID)
	if err := ix.recreateClass(ctx, className); err != nil {
		return 0, err
	}

	indexed := 0
	for i := 0; i < len(chunks); i += IndexBatchSize {
		if err := ctx.Err(); err != nil {
			return indexed, err
		}
		end := i + IndexBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[i:end]

		objects := make([]*models.Object, len(batch))
		for j, c := range batch {
			objects[j] = &models.Object{
				Class: className,
				Properties: map[string]interface{}{
					"content":    c.Content,
					"filePath":   c.FilePath,
					"chunkIndex": c.ChunkIndex,
				},
			}
		}

		result, err := ix.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
		if err != nil {
			return indexed, fmt.Errorf("batch import into %s: %w", className, err)
		}
		for _, obj := range result {
			if obj.Result != nil && obj.Result.Errors == nil {
				indexed++
			}
		}
	}

	if err := writeMarker(markerDir, projectID, indexed); err != nil {
		return indexed, err
	}

	ix.logger.Info("project indexed",
		"project_id", projectID, "class", className, "chunks", indexed)
	return indexed, nil
}

// DeleteClass drops the project's weaviate class. Deleting a class that
// does not exist is not an error.
func (ix *Indexer) DeleteClass(ctx context.Context, projectID string) error {
	className := rag.ClassName(projectID)
	if err := ix.client.Schema().ClassDeleter().WithClassName(className).Do(ctx); err != nil {
		return fmt.Errorf("delete class %s: %w", className, err)
	}
	return nil
}

func (ix *Indexer) recreateClass(ctx context.Context, className string) error {
	if _, err := ix.client.Schema().ClassGetter().WithClassName(className).Do(ctx); err == nil {
		ix.logger.Info("dropping existing class before re-index", "class", className)
		if err := ix.client.Schema().ClassDeleter().WithClassName(className).Do(ctx); err != nil {
			return fmt.Errorf("drop class %s: %w", className, err)
		}
	}

	// Vectorizer is left to the server default so nearText retrieval
	// works against whatever text2vec module the deployment runs.
	class := &models.Class{
		Class:       className,
		Description: "Chunked source code for one indexed repository",
		Properties: []*models.Property{
			{
				Name:         "content",
				DataType:     []string{"text"},
				Description:  "Chunk of source code",
				Tokenization: "word",
			},
			{
				Name:         "filePath",
				DataType:     []string{"text"},
				Description:  "Path of the source file, relative to the repo root",
				Tokenization: "field",
			},
			{
				Name:        "chunkIndex",
				DataType:    []string{"int"},
				Description: "Position of the chunk within its file",
			},
		},
	}
	if err := ix.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("create class %s: %w", className, err)
	}
	return nil
}

// chunkRepo walks repoPath and chunks every python file.
func chunkRepo(repoPath string) ([]rag.Chunk, error) {
	var chunks []rag.Chunk

	err := filepath.WalkDir(repoPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if indexSkipDirs[d.Name()] && p != repoPath {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".py") {
			return nil
		}

		content, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}
		rel, err := filepath.Rel(repoPath, p)
		if err != nil {
			return err
		}
		chunks = append(chunks, chunkFile(filepath.ToSlash(rel), string(content))...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", repoPath, err)
	}
	return chunks, nil
}

// chunkFile splits one file into overlapping line windows, each capped
// at ChunkMaxChars. Empty files produce no chunks.
func chunkFile(relPath, content string) []rag.Chunk {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	lines := strings.Split(content, "\n")

	step := ChunkLines - ChunkLinesOverlap
	var chunks []rag.Chunk
	for start := 0; start < len(lines); start += step {
		end := start + ChunkLines
		if end > len(lines) {
			end = len(lines)
		}
		text := strings.Join(lines[start:end], "\n")
		if len(text) > ChunkMaxChars {
			text = text[:ChunkMaxChars]
		}
		if strings.TrimSpace(text) != "" {
			chunks = append(chunks, rag.Chunk{
				Content:    text,
				FilePath:   relPath,
				ChunkIndex: len(chunks),
			})
		}
		if end == len(lines) {
			break
		}
	}
	return chunks
}

func writeMarker(markerDir, projectID string, chunks int) error {
	if err := os.MkdirAll(markerDir, 0750); err != nil {
		return fmt.Errorf("create vector store dir: %w", err)
	}
	meta := map[string]any{
		"project_id": projectID,
		"chunks":     chunks,
		"indexed_at": time.Now().UTC().Format(time.RFC3339),
	}
	payload, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(markerDir, markerFile), payload, 0640); err != nil {
		return fmt.Errorf("write index marker: %w", err)
	}
	return nil
}
