/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package result turns raw model output into typed, validated values and
// defines how generation failures and empty results are reported.
package result

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON returns the JSON payload of a model response. When the text
// contains a ```json fenced block the block body is returned; otherwise any
// surrounding fence markers and whitespace are stripped.
func ExtractJSON(text string) string {
	var (
		body    []string
		inBlock bool
	)
	for line := range strings.SplitSeq(text, "\n") {
		switch {
		case !inBlock && strings.TrimSpace(line) == "```json":
			inBlock = true
		case inBlock && strings.TrimSpace(line) == "```":
			return strings.TrimSpace(strings.Join(body, "\n"))
		case inBlock:
			body = append(body, line)
		}
	}
	if inBlock {
		// Unterminated block: take what followed the opening fence.
		return strings.TrimSpace(strings.Join(body, "\n"))
	}

	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// Extract decodes the JSON payload of text into T and validates it.
func Extract[T any](text string) (T, error) {
	var out T
	payload := ExtractJSON(text)
	if payload == "" {
		return out, fmt.Errorf("empty response")
	}
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return out, fmt.Errorf("decoding response: %w", err)
	}
	if err := Validate(out); err != nil {
		return out, err
	}
	return out, nil
}
