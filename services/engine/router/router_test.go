// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/codescout/services/llm"
)

func TestClassifyRAG(t *testing.T) {
	mock := llm.NewMock(`{"route": "RAG"}`)
	r := New(mock, nil)

	route, err := r.Classify(context.Background(), "What does create_app do?", "")
	require.NoError(t, err)
	assert.Equal(t, RouteRAG, route)
	assert.Contains(t, mock.Prompts[0], "What does create_app do?")
}

func TestClassifyAgent(t *testing.T) {
	r := New(llm.NewMock(`{"route": "AGENT"}`), nil)

	route, err := r.Classify(context.Background(), "Fix the bug in parse_config", "")
	require.NoError(t, err)
	assert.Equal(t, RouteAgent, route)
}

func TestClassifyIncludesHistoryInPrompt(t *testing.T) {
	mock := llm.NewMock(`{"route": "AGENT"}`)
	r := New(mock, nil)

	history := "User: explain the billing module\nAssistant: it reconciles invoices.\n"
	_, err := r.Classify(context.Background(), "summarize that again", history)
	require.NoError(t, err)

	require.Len(t, mock.Prompts, 1)
	assert.Contains(t, mock.Prompts[0], "explain the billing module")
	assert.Contains(t, mock.Prompts[0], "summarize that again")
}

func TestClassifyEmptyHistoryPlaceholder(t *testing.T) {
	mock := llm.NewMock(`{"route": "RAG"}`)
	r := New(mock, nil)

	_, err := r.Classify(context.Background(), "q", "")
	require.NoError(t, err)
	assert.Contains(t, mock.Prompts[0], "(empty)")
}

func TestClassifyToleratesFences(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Route
	}{
		{"bare fences", "```\n{\"route\": \"RAG\"}\n```", RouteRAG},
		{"json fence tag", "```json\n{\"route\": \"AGENT\"}\n```", RouteAgent},
		{"surrounding whitespace", "  {\"route\": \"RAG\"}  \n", RouteRAG},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(llm.NewMock(tt.raw), nil)
			route, err := r.Classify(context.Background(), "q", "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, route)
		})
	}
}

func TestClassifyUnroutablePayloads(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"prose", "I think this should go to RAG."},
		{"wrong value", `{"route": "BOTH"}`},
		{"lowercase value", `{"route": "rag"}`},
		{"empty object", `{}`},
		{"empty string", ``},
		{"malformed json", `{"route": `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(llm.NewMock(tt.raw), nil)
			_, err := r.Classify(context.Background(), "q", "")
			assert.ErrorIs(t, err, ErrUnroutable)
		})
	}
}

func TestClassifyTransportErrorPassesThrough(t *testing.T) {
	mock := &llm.Mock{Errs: []error{errors.New("connection refused")}}
	r := New(mock, nil)

	_, err := r.Classify(context.Background(), "q", "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnroutable)
	assert.Contains(t, err.Error(), "routing call failed")
}
