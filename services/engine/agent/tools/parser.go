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
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// kvPattern matches key=value pairs with optionally quoted values.
var kvPattern = regexp.MustCompile(`(\w+)\s*=\s*(?:"([^"]*)"|'([^']*)'|(\S+))`)

// ParseInput turns a model-produced action input into a key/value map.
//
// Model output is untrusted and variably formatted, so parsing is
// layered: strict JSON first, then JSON with single quotes swapped for
// double quotes, then a Python-dict-literal normalization (True/False/
// None), then key=value text. Only when every layer fails does the
// function return an error, and that error is descriptive because it
// ends up in front of the model as an observation.
func ParseInput(input string) (map[string]any, error) {
	text := strings.TrimSpace(input)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	// 1. Standard JSON.
	if m, ok := tryJSON(text); ok {
		return m, nil
	}

	// 2. Single quotes swapped for double quotes.
	if m, ok := tryJSON(strings.ReplaceAll(text, "'", `"`)); ok {
		return m, nil
	}

	// 3. Python dict literal: normalize the literals, then retry both
	// quote styles.
	normalized := pythonLiterals.Replace(text)
	if m, ok := tryJSON(normalized); ok {
		return m, nil
	}
	if m, ok := tryJSON(strings.ReplaceAll(normalized, "'", `"`)); ok {
		return m, nil
	}

	// 4. key=value text.
	if matches := kvPattern.FindAllStringSubmatch(text, -1); len(matches) > 0 {
		m := make(map[string]any, len(matches))
		for _, match := range matches {
			value := match[2]
			if value == "" {
				value = match[3]
			}
			if value == "" {
				value = match[4]
			}
			m[match[1]] = value
		}
		return m, nil
	}

	return nil, fmt.Errorf("unable to parse tool input: %q", input)
}

var pythonLiterals = strings.NewReplacer(
	"True", "true",
	"False", "false",
	"None", "null",
)

func tryJSON(text string) (map[string]any, bool) {
	var m map[string]any
	if err := json.Unmarshal([]byte(text), &m); err != nil {
		return nil, false
	}
	return m, true
}

// stringField extracts a string value from a parsed input map. Numbers
// are not coerced; missing or non-string values return "".
func stringField(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// floatField extracts a numeric value, accepting JSON numbers and
// numeric strings. Returns fallback when absent or unparseable.
func floatField(m map[string]any, key string, fallback float64) float64 {
	v, ok := m[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case float64:
		return n
	case string:
		var f float64
		if _, err := fmt.Sscanf(strings.TrimSpace(n), "%g", &f); err == nil {
			return f
		}
	}
	return fallback
}

// singleStringInput handles tools whose input is one path-like value:
// either a structured input carrying the given key, or the raw string
// itself.
func singleStringInput(input, key string) string {
	if m, err := ParseInput(input); err == nil {
		if v := stringField(m, key); v != "" {
			return v
		}
	}
	return strings.Trim(strings.TrimSpace(input), `"'`)
}
