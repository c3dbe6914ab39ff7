// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"simple name", "flask", false},
		{"with dots and dashes", "my-repo.v2", false},
		{"with underscore", "data_pipeline", false},
		{"empty", "", true},
		{"parent traversal", "../etc", true},
		{"embedded traversal", "a..b", true},
		{"forward slash", "a/b", true},
		{"backslash", `a\b`, true},
		{"leading dot", ".hidden", true},
		{"leading dash", "-rf", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID(tt.id)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidProjectID)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// indexProject lays down the full set of ingestion artifacts for id.
func indexProject(t *testing.T, dataDir, id string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "repos", id), 0750))
	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "vectorstores", id), 0750))
	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "graphs"), 0750))
	require.NoError(t, os.WriteFile(
		filepath.Join(dataDir, "graphs", id+".json"), []byte(`{"nodes":[],"edges":[]}`), 0640))
}

func TestResolve(t *testing.T) {
	dataDir := t.TempDir()
	layout := Layout{DataDir: dataDir}

	indexProject(t, dataDir, "flask")

	ctx, err := layout.Resolve("flask")
	require.NoError(t, err)
	assert.Equal(t, "flask", ctx.ProjectID)
	assert.Equal(t, filepath.Join(dataDir, "repos", "flask"), ctx.RepoPath)
	assert.Equal(t, filepath.Join(dataDir, "vectorstores", "flask"), ctx.VectorStorePath)
	assert.Equal(t, filepath.Join(dataDir, "graphs", "flask.json"), ctx.GraphPath)
	assert.Equal(t, filepath.Join(dataDir, "workspaces", "flask"), ctx.WorkspacePath)
}

func TestResolveNotIndexed(t *testing.T) {
	layout := Layout{DataDir: t.TempDir()}

	_, err := layout.Resolve("missing")
	assert.ErrorIs(t, err, ErrNotIndexed)
}

func TestResolveInvalidIDBeforeStat(t *testing.T) {
	layout := Layout{DataDir: t.TempDir()}

	_, err := layout.Resolve("../../etc")
	assert.ErrorIs(t, err, ErrInvalidProjectID)
}

func TestResolveFileIsNotACheckout(t *testing.T) {
	dataDir := t.TempDir()
	layout := Layout{DataDir: dataDir}

	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "repos"), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "repos", "notadir"), []byte("x"), 0640))

	_, err := layout.Resolve("notadir")
	assert.ErrorIs(t, err, ErrNotIndexed)
}

func TestResolveRequiresAllArtifacts(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, dataDir string)
	}{
		{"checkout only", func(t *testing.T, dataDir string) {
			require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "repos", "proj"), 0750))
		}},
		{"missing graph", func(t *testing.T, dataDir string) {
			require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "repos", "proj"), 0750))
			require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "vectorstores", "proj"), 0750))
		}},
		{"missing vector store", func(t *testing.T, dataDir string) {
			require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "repos", "proj"), 0750))
			require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "graphs"), 0750))
			require.NoError(t, os.WriteFile(
				filepath.Join(dataDir, "graphs", "proj.json"), []byte("{}"), 0640))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dataDir := t.TempDir()
			tt.setup(t, dataDir)

			_, err := Layout{DataDir: dataDir}.Resolve("proj")
			assert.ErrorIs(t, err, ErrNotIndexed)
		})
	}
}

func TestListIndexed(t *testing.T) {
	dataDir := t.TempDir()
	layout := Layout{DataDir: dataDir}

	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "repos", "alpha"), 0750))
	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "repos", "beta"), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "repos", "stray.txt"), []byte("x"), 0640))

	ids, err := layout.ListIndexed()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alpha", "beta"}, ids)
}

func TestListIndexedEmptyWhenNoReposDir(t *testing.T) {
	layout := Layout{DataDir: t.TempDir()}

	ids, err := layout.ListIndexed()
	require.NoError(t, err)
	assert.Empty(t, ids)
}
