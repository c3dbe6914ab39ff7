// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"strings"
	"sync"
)

// Mock is a scripted Client for tests. Responses are returned in order;
// once the script is exhausted every call returns Fallback (or an empty
// string). Prompts are recorded for assertions.
//
// Thread Safety: safe for concurrent use.
type Mock struct {
	mu        sync.Mutex
	Responses []string
	Errs      []error
	Fallback  string
	Prompts   []string
	calls     int
}

var _ Client = (*Mock)(nil)

// NewMock returns a Mock scripted with the given responses.
func NewMock(responses ...string) *Mock {
	return &Mock{Responses: responses}
}

func (m *Mock) next(prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Prompts = append(m.Prompts, prompt)
	i := m.calls
	m.calls++

	if i < len(m.Errs) && m.Errs[i] != nil {
		return "", m.Errs[i]
	}
	if i < len(m.Responses) {
		return m.Responses[i], nil
	}
	return m.Fallback, nil
}

// Generate implements the Client interface.
func (m *Mock) Generate(ctx context.Context, prompt string, _ GenerationParams) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return m.next(prompt)
}

// GenerateStream implements the Client interface. The scripted response
// is delivered word by word so stream consumers see multiple tokens.
func (m *Mock) GenerateStream(ctx context.Context, prompt string, _ GenerationParams,
	onToken func(token string)) (string, error) {

	if err := ctx.Err(); err != nil {
		return "", err
	}
	resp, err := m.next(prompt)
	if err != nil {
		return "", err
	}
	if onToken != nil {
		words := strings.SplitAfter(resp, " ")
		for _, w := range words {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			if w == "" {
				continue
			}
			onToken(w)
		}
	}
	return resp, nil
}

// Calls reports how many times the mock has been invoked.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
