// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rag implements the retrieval-augmented answer path: fetch the
// most relevant code chunks for a question, then stream a context-only
// answer from the language model.
package rag

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/AleutianAI/codescout/pkg/logging"
	"github.com/AleutianAI/codescout/services/llm"
)

// DefaultTopK is the number of chunks retrieved per question.
const DefaultTopK = 3

// NoContextAnswer is returned verbatim when retrieval yields nothing.
const NoContextAnswer = "Sorry, I could not find any relevant context in the codebase to answer your question."

// Chunk is one retrieved piece of source code.
type Chunk struct {
	Content    string
	FilePath   string
	ChunkIndex int
}

// Retriever fetches the chunks most relevant to a query from a
// project's vector index.
type Retriever interface {
	Retrieve(ctx context.Context, projectID, query string, topK int) ([]Chunk, error)
}

// ==========================================================================
// Weaviate retriever
// ==========================================================================

// WeaviateRetriever resolves nearText searches against the per-project
// chunk class. Embedding happens server-side via the configured
// vectorizer.
type WeaviateRetriever struct {
	client *weaviate.Client
}

var _ Retriever = (*WeaviateRetriever)(nil)

// NewWeaviateRetriever wraps an existing weaviate client.
func NewWeaviateRetriever(client *weaviate.Client) *WeaviateRetriever {
	return &WeaviateRetriever{client: client}
}

// ClassName maps a project id to its weaviate class. Class names must
// start with an upper-case letter and stay alphanumeric, so the id is
// sanitized into that shape.
func ClassName(projectID string) string {
	var b strings.Builder
	for _, r := range projectID {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return "CodeChunk_" + b.String()
}

// Retrieve implements the Retriever interface.
func (w *WeaviateRetriever) Retrieve(ctx context.Context, projectID, query string, topK int) ([]Chunk, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	nearText := w.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{query})

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "filePath"},
		{Name: "chunkIndex"},
	}

	className := ClassName(projectID)
	result, err := w.client.GraphQL().Get().
		WithClassName(className).
		WithFields(fields...).
		WithNearText(nearText).
		WithLimit(topK).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("vector search error: %s", result.Errors[0].Message)
	}

	return parseChunks(result.Data, className), nil
}

// parseChunks walks the GraphQL response shape Get -> <class> -> rows.
// The response payload is declared as models.JSONObject values, so each
// level is asserted back to its concrete decoded type.
func parseChunks(data map[string]models.JSONObject, className string) []Chunk {
	get, ok := data["Get"].(map[string]any)
	if !ok {
		return nil
	}
	rows, ok := get[className].([]any)
	if !ok {
		return nil
	}

	chunks := make([]Chunk, 0, len(rows))
	for _, row := range rows {
		m, ok := row.(map[string]any)
		if !ok {
			continue
		}
		chunk := Chunk{}
		if s, ok := m["content"].(string); ok {
			chunk.Content = s
		}
		if s, ok := m["filePath"].(string); ok {
			chunk.FilePath = s
		}
		if f, ok := m["chunkIndex"].(float64); ok {
			chunk.ChunkIndex = int(f)
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

// ==========================================================================
// Engine
// ==========================================================================

// Engine is the RAG answer path.
//
// Thread Safety: safe for concurrent use; all state is read-only after
// construction.
type Engine struct {
	retriever Retriever
	oracle    llm.Client
	logger    *logging.Logger
	topK      int
}

// NewEngine creates an Engine. A nil logger falls back to the default;
// topK <= 0 falls back to DefaultTopK.
func NewEngine(retriever Retriever, oracle llm.Client, logger *logging.Logger, topK int) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Engine{retriever: retriever, oracle: oracle, logger: logger, topK: topK}
}

// Answer retrieves context for the question and streams a grounded
// answer through onToken, returning the full text.
//
// The prompt explicitly restricts the model to the retrieved context.
// When retrieval returns nothing the fixed NoContextAnswer is emitted
// as a single token and no model call is made.
func (e *Engine) Answer(ctx context.Context, projectID, question, history string,
	onToken func(token string)) (string, error) {

	chunks, err := e.retriever.Retrieve(ctx, projectID, question, e.topK)
	if err != nil {
		return "", fmt.Errorf("retrieve context: %w", err)
	}
	if len(chunks) == 0 {
		e.logger.Info("no relevant chunks retrieved", "project_id", projectID)
		if onToken != nil {
			onToken(NoContextAnswer)
		}
		return NoContextAnswer, nil
	}

	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Content
	}
	contextStr := strings.Join(parts, "\n\n")

	prompt := buildPrompt(contextStr, history, question)
	e.logger.Debug("answering with retrieved context",
		"project_id", projectID, "chunks", len(chunks))

	answer, err := e.oracle.GenerateStream(ctx, prompt, llm.GenerationParams{}, onToken)
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return answer, nil
}

func buildPrompt(contextStr, history, question string) string {
	var b strings.Builder
	b.WriteString("Context information from the codebase is below.\n")
	b.WriteString("---------------------\n")
	b.WriteString(contextStr)
	b.WriteString("\n---------------------\n")
	if history != "" {
		b.WriteString("Conversation so far:\n")
		b.WriteString(history)
		b.WriteString("---------------------\n")
	}
	b.WriteString("Given the context information and not any prior knowledge, please answer the query.\n")
	b.WriteString("Query: ")
	b.WriteString(question)
	b.WriteString("\nAnswer:\n")
	return b.String()
}
