/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package schema derives JSON schemas for model response types. The same
// schema constrains every provider: OpenAI response formats, the Claude
// submit tool input and the prompt text for Gemini.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

func reflector() *jsonschema.Reflector {
	return &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}
}

// For reflects the schema of T. Pointer types reflect their element.
func For[T any]() *jsonschema.Schema {
	var zero T
	s := reflector().Reflect(&zero)
	// Providers reject the meta-schema URL.
	s.Version = ""
	return s
}

// Map renders the schema of T as a generic map, the form the provider SDKs
// accept for tool inputs and response formats.
func Map[T any]() (map[string]any, error) {
	b, err := json.Marshal(For[T]())
	if err != nil {
		return nil, fmt.Errorf("marshaling schema: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("unmarshaling schema: %w", err)
	}
	return m, nil
}

// JSON renders the schema of T as indented JSON for inclusion in prompts.
func JSON[T any]() (string, error) {
	b, err := json.MarshalIndent(For[T](), "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling schema: %w", err)
	}
	return string(b), nil
}
