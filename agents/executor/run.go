/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package executor

import (
	"context"
	"errors"
	"fmt"

	"chainguard.dev/prbot/agents/agenttrace"
	"chainguard.dev/prbot/agents/executor/retry"
	"chainguard.dev/prbot/agents/metrics"
	"chainguard.dev/prbot/agents/promptbuilder"
	"chainguard.dev/prbot/agents/result"
)

// Usage is the token accounting of one provider call.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
}

// Generate performs one provider call and returns the raw JSON text of the
// structured response.
type Generate func(ctx context.Context, prompt, system string) (string, Usage, error)

// ErrEmptyResponse is returned by backends when the provider answered
// without any usable content.
var ErrEmptyResponse = errors.New("empty response from model")

// Run is the skeleton shared by the backends: bind and build the prompt,
// call the provider with retries, record metrics and a trace span, then
// decode and validate the response. Every error it returns is a
// *result.GenerationError.
func Run[Request promptbuilder.Bindable, Response any](
	ctx context.Context,
	s *Settings,
	m *metrics.GenAI,
	retryable retry.Classifier,
	request Request,
	generate Generate,
) (resp Response, err error) {
	defer func() { err = result.Generation(s.Task, err) }()

	bound, err := request.Bind(s.Prompt)
	if err != nil {
		return resp, fmt.Errorf("binding request: %w", err)
	}
	prompt, err := bound.Build()
	if err != nil {
		return resp, fmt.Errorf("building prompt: %w", err)
	}
	var system string
	if s.System != nil {
		if system, err = s.System.Build(); err != nil {
			return resp, fmt.Errorf("building system prompt: %w", err)
		}
	}

	ctx, trace := agenttrace.Start(ctx, s.Task, s.Model, prompt)
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		m.RecordCall(ctx, s.Model, s.Task, outcome)
		trace.Complete(err)
	}()

	type call struct {
		text  string
		usage Usage
	}
	c, err := retry.Do(ctx, s.Retry, s.Task, retryable, func() (call, error) {
		text, usage, err := generate(ctx, prompt, system)
		return call{text: text, usage: usage}, err
	})
	if c.usage.PromptTokens > 0 || c.usage.CompletionTokens > 0 {
		m.RecordTokens(ctx, s.Model, s.Task, c.usage.PromptTokens, c.usage.CompletionTokens)
		trace.RecordTokenUsage(c.usage.PromptTokens, c.usage.CompletionTokens)
	}
	if err != nil {
		return resp, err
	}
	if c.text == "" {
		return resp, ErrEmptyResponse
	}
	return result.Extract[Response](c.text)
}
