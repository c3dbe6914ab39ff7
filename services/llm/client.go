// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm defines the language model boundary: a narrow client
// interface plus backends. Callers treat the model as an external
// capability with a latency/cost budget and never depend on a specific
// vendor type.
package llm

import "context"

// GenerationParams carries optional sampling parameters. Nil pointers
// mean "backend default".
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// Client defines the standard interface for any LLM backend.
type Client interface {
	// Generate produces a single completion for the prompt.
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)

	// GenerateStream produces a completion incrementally, invoking
	// onToken for each text fragment as it arrives. The full response
	// is returned once the stream is exhausted. Implementations must
	// stop promptly when ctx is canceled.
	GenerateStream(ctx context.Context, prompt string, params GenerationParams,
		onToken func(token string)) (string, error)
}

// Float32Ptr is a convenience for building GenerationParams literals.
func Float32Ptr(v float32) *float32 { return &v }

// IntPtr is a convenience for building GenerationParams literals.
func IntPtr(v int) *int { return &v }
