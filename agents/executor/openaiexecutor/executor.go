/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package openaiexecutor runs single-shot structured calls against the
// OpenAI chat completions API. The response type's JSON schema is sent as a
// json_schema response format.
package openaiexecutor

import (
	"context"
	"errors"
	"fmt"

	"chainguard.dev/prbot/agents/executor"
	"chainguard.dev/prbot/agents/executor/retry"
	"chainguard.dev/prbot/agents/metrics"
	"chainguard.dev/prbot/agents/promptbuilder"
	"chainguard.dev/prbot/agents/schema"
	"github.com/openai/openai-go"
)

// DefaultModel is used when no model option is given.
const DefaultModel = "gpt-4o-mini"

type chat[Request promptbuilder.Bindable, Response any] struct {
	client   openai.Client
	settings *executor.Settings
	format   openai.ChatCompletionNewParamsResponseFormatUnion
	metrics  *metrics.GenAI
}

// New returns an OpenAI-backed executor for task.
func New[Request promptbuilder.Bindable, Response any](
	client openai.Client,
	task string,
	prompt *promptbuilder.Prompt,
	opts ...executor.Option,
) (executor.Interface[Request, Response], error) {
	s, err := executor.NewSettings(task, DefaultModel, prompt, opts...)
	if err != nil {
		return nil, err
	}
	m, err := schema.Map[Response]()
	if err != nil {
		return nil, err
	}
	return &chat[Request, Response]{
		client:   client,
		settings: s,
		format: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   task,
					Schema: m,
					// Strict mode rejects optional fields.
					Strict: openai.Bool(false),
				},
			},
		},
		metrics: metrics.NewGenAI(),
	}, nil
}

// Execute implements executor.Interface.
func (c *chat[Request, Response]) Execute(ctx context.Context, request Request) (Response, error) {
	return executor.Run[Request, Response](ctx, c.settings, c.metrics, IsRetryable, request, c.generate)
}

func (c *chat[Request, Response]) generate(ctx context.Context, prompt, system string) (string, executor.Usage, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(prompt))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(c.settings.Model),
		Messages:            messages,
		Temperature:         openai.Float(c.settings.Temperature),
		MaxCompletionTokens: openai.Int(c.settings.MaxTokens),
		ResponseFormat:      c.format,
	})
	if err != nil {
		return "", executor.Usage{}, err
	}
	usage := executor.Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
	if len(resp.Choices) == 0 {
		return "", usage, executor.ErrEmptyResponse
	}
	msg := resp.Choices[0].Message
	if msg.Refusal != "" {
		return "", usage, fmt.Errorf("model refused: %s", msg.Refusal)
	}
	if resp.Choices[0].FinishReason == "length" {
		return "", usage, fmt.Errorf("response truncated at %d tokens", c.settings.MaxTokens)
	}
	return msg.Content, usage, nil
}

// IsRetryable reports rate limiting and transient server errors.
func IsRetryable(err error) bool {
	return retry.StatusIn(status, 429, 500, 502, 503, 504)(err)
}

func status(err error) (int, bool) {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, true
	}
	return 0, false
}
