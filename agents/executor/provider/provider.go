/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package provider selects a model backend at startup so agents can build
// their executors without knowing which provider is configured.
package provider

import (
	"fmt"

	"chainguard.dev/prbot/agents/executor"
	"chainguard.dev/prbot/agents/executor/claudeexecutor"
	"chainguard.dev/prbot/agents/executor/googleexecutor"
	"chainguard.dev/prbot/agents/executor/openaiexecutor"
	"chainguard.dev/prbot/agents/promptbuilder"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
	"google.golang.org/genai"
)

// Name identifies a backend.
type Name string

const (
	OpenAI Name = "openai"
	Claude Name = "claude"
	Gemini Name = "gemini"
)

// Backend holds the client of the configured provider. Exactly the client
// matching Name must be set.
type Backend struct {
	Name  Name
	Model string // empty selects the backend default

	OpenAI *openai.Client
	Claude *anthropic.Client
	Gemini *genai.Client
}

// Validate checks that the client for Name is present.
func (b Backend) Validate() error {
	switch b.Name {
	case OpenAI:
		if b.OpenAI == nil {
			return fmt.Errorf("provider %q requires an OpenAI client", b.Name)
		}
	case Claude:
		if b.Claude == nil {
			return fmt.Errorf("provider %q requires an Anthropic client", b.Name)
		}
	case Gemini:
		if b.Gemini == nil {
			return fmt.Errorf("provider %q requires a genai client", b.Name)
		}
	default:
		return fmt.Errorf("unknown provider %q", b.Name)
	}
	return nil
}

// New builds an executor for task on the configured backend.
func New[Request promptbuilder.Bindable, Response any](
	b Backend,
	task string,
	prompt *promptbuilder.Prompt,
	opts ...executor.Option,
) (executor.Interface[Request, Response], error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if b.Model != "" {
		opts = append([]executor.Option{executor.WithModel(b.Model)}, opts...)
	}
	switch b.Name {
	case Claude:
		return claudeexecutor.New[Request, Response](*b.Claude, task, prompt, opts...)
	case Gemini:
		return googleexecutor.New[Request, Response](b.Gemini, task, prompt, opts...)
	default:
		return openaiexecutor.New[Request, Response](*b.OpenAI, task, prompt, opts...)
	}
}
