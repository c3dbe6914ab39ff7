// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInputStandardJSON(t *testing.T) {
	m, err := ParseInput(`{"file_path": "app.py", "function_name": "main"}`)
	require.NoError(t, err)
	assert.Equal(t, "app.py", m["file_path"])
	assert.Equal(t, "main", m["function_name"])
}

func TestParseInputSingleQuotes(t *testing.T) {
	m, err := ParseInput(`{'file_path': 'app.py'}`)
	require.NoError(t, err)
	assert.Equal(t, "app.py", m["file_path"])
}

func TestParseInputPythonLiterals(t *testing.T) {
	m, err := ParseInput(`{'enabled': True, 'limit': None, 'strict': False}`)
	require.NoError(t, err)
	assert.Equal(t, true, m["enabled"])
	assert.Nil(t, m["limit"])
	assert.Equal(t, false, m["strict"])
}

func TestParseInputKeyValueText(t *testing.T) {
	m, err := ParseInput(`file_path="app.py" function_name='main' limit=3`)
	require.NoError(t, err)
	assert.Equal(t, "app.py", m["file_path"])
	assert.Equal(t, "main", m["function_name"])
	assert.Equal(t, "3", m["limit"])
}

func TestParseInputFencedJSON(t *testing.T) {
	m, err := ParseInput("```json\n{\"file_path\": \"a.py\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "a.py", m["file_path"])
}

func TestParseInputUnparseable(t *testing.T) {
	_, err := ParseInput("just some prose with no structure at all!")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to parse tool input")
}

func TestFloatField(t *testing.T) {
	m := map[string]any{"a": 0.5, "b": "0.7", "c": "bogus"}
	assert.Equal(t, 0.5, floatField(m, "a", 0.8))
	assert.Equal(t, 0.7, floatField(m, "b", 0.8))
	assert.Equal(t, 0.8, floatField(m, "c", 0.8))
	assert.Equal(t, 0.8, floatField(m, "missing", 0.8))
}

func TestSingleStringInput(t *testing.T) {
	assert.Equal(t, "app.py", singleStringInput(`{"file_path": "app.py"}`, "file_path"))
	assert.Equal(t, "app.py", singleStringInput("app.py", "file_path"))
	assert.Equal(t, "app.py", singleStringInput(`  "app.py"  `, "file_path"))
}
