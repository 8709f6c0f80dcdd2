/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package googleexecutor runs single-shot structured calls against Gemini.
// The model is put in JSON mode and the response type's schema is appended
// to the system instructions.
package googleexecutor

import (
	"context"
	"fmt"
	"strings"

	"chainguard.dev/prbot/agents/executor"
	"chainguard.dev/prbot/agents/metrics"
	"chainguard.dev/prbot/agents/promptbuilder"
	"chainguard.dev/prbot/agents/schema"
	"google.golang.org/genai"
)

// DefaultModel is used when no model option is given.
const DefaultModel = "gemini-2.5-flash"

type gemini[Request promptbuilder.Bindable, Response any] struct {
	client   *genai.Client
	settings *executor.Settings
	schema   string
	metrics  *metrics.GenAI
}

// New returns a Gemini-backed executor for task.
func New[Request promptbuilder.Bindable, Response any](
	client *genai.Client,
	task string,
	prompt *promptbuilder.Prompt,
	opts ...executor.Option,
) (executor.Interface[Request, Response], error) {
	if client == nil {
		return nil, fmt.Errorf("client cannot be nil")
	}
	s, err := executor.NewSettings(task, DefaultModel, prompt, opts...)
	if err != nil {
		return nil, err
	}
	js, err := schema.JSON[Response]()
	if err != nil {
		return nil, err
	}
	return &gemini[Request, Response]{
		client:   client,
		settings: s,
		schema:   js,
		metrics:  metrics.NewGenAI(),
	}, nil
}

// Execute implements executor.Interface.
func (g *gemini[Request, Response]) Execute(ctx context.Context, request Request) (Response, error) {
	return executor.Run[Request, Response](ctx, g.settings, g.metrics, IsRetryable, request, g.generate)
}

func (g *gemini[Request, Response]) instructions(system string) string {
	var sb strings.Builder
	if system != "" {
		sb.WriteString(system)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Respond with a single JSON object matching this JSON schema:\n")
	sb.WriteString(g.schema)
	return sb.String()
}

func (g *gemini[Request, Response]) generate(ctx context.Context, prompt, system string) (string, executor.Usage, error) {
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr(float32(g.settings.Temperature)),
		MaxOutputTokens:  int32(g.settings.MaxTokens),
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: g.instructions(system)}},
		},
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.settings.Model, genai.Text(prompt), config)
	if err != nil {
		return "", executor.Usage{}, err
	}
	var usage executor.Usage
	if resp.UsageMetadata != nil {
		usage.PromptTokens = int64(resp.UsageMetadata.PromptTokenCount)
		usage.CompletionTokens = int64(resp.UsageMetadata.CandidatesTokenCount)
	}
	if len(resp.Candidates) == 0 {
		return "", usage, fmt.Errorf("%w: no candidates", executor.ErrEmptyResponse)
	}
	if resp.Candidates[0].FinishReason == genai.FinishReasonMaxTokens {
		return "", usage, fmt.Errorf("response truncated at %d tokens", g.settings.MaxTokens)
	}
	return resp.Text(), usage, nil
}

// IsRetryable reports quota exhaustion and transient backend errors. The
// Vertex and Gemini backends surface these with different error types, so
// the message is inspected.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range []string{
		"Resource exhausted",
		"RESOURCE_EXHAUSTED",
		"429",
		"rate limit",
		"quota exceeded",
		"Overloaded",
		"503",
		"UNAVAILABLE",
		"Internal error",
		"server error",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
