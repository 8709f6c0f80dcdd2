/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package executor

import (
	"errors"
	"fmt"

	"chainguard.dev/prbot/agents/executor/retry"
	"chainguard.dev/prbot/agents/promptbuilder"
)

// Settings is the configuration every backend shares.
type Settings struct {
	// Task names the call in logs, metrics, spans and errors. It is also
	// used as the schema name, so it must match [a-zA-Z0-9_-]+.
	Task        string
	Model       string
	Prompt      *promptbuilder.Prompt
	System      *promptbuilder.Prompt
	MaxTokens   int64
	Temperature float64
	Retry       retry.Config
}

// NewSettings returns settings with the defaults used by all backends, then
// applies opts.
func NewSettings(task, model string, prompt *promptbuilder.Prompt, opts ...Option) (*Settings, error) {
	if task == "" {
		return nil, errors.New("task cannot be empty")
	}
	if prompt == nil {
		return nil, errors.New("prompt cannot be nil")
	}
	s := &Settings{
		Task:        task,
		Model:       model,
		Prompt:      prompt,
		MaxTokens:   8192,
		Temperature: 0.1,
		Retry:       retry.DefaultConfig(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}
	return s, nil
}

// Option configures Settings.
type Option func(*Settings) error

// WithModel overrides the backend's default model.
func WithModel(model string) Option {
	return func(s *Settings) error {
		if model == "" {
			return errors.New("model cannot be empty")
		}
		s.Model = model
		return nil
	}
}

// WithSystemInstructions sets the system prompt. It must not have
// placeholders left unbound.
func WithSystemInstructions(p *promptbuilder.Prompt) Option {
	return func(s *Settings) error {
		if p == nil {
			return errors.New("system instructions cannot be nil")
		}
		if _, err := p.Build(); err != nil {
			return fmt.Errorf("system instructions: %w", err)
		}
		s.System = p
		return nil
	}
}

// WithMaxTokens bounds the response length.
func WithMaxTokens(n int64) Option {
	return func(s *Settings) error {
		if n <= 0 {
			return fmt.Errorf("max tokens must be positive, got %d", n)
		}
		s.MaxTokens = n
		return nil
	}
}

// WithTemperature sets the sampling temperature, between 0 and 1.
func WithTemperature(t float64) Option {
	return func(s *Settings) error {
		if t < 0 || t > 1 {
			return fmt.Errorf("temperature must be between 0.0 and 1.0, got %f", t)
		}
		s.Temperature = t
		return nil
	}
}

// WithRetryConfig replaces the retry policy for transient provider errors.
func WithRetryConfig(cfg retry.Config) Option {
	return func(s *Settings) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		s.Retry = cfg
		return nil
	}
}
