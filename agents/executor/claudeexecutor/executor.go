/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package claudeexecutor

import (
	"context"
	"errors"
	"fmt"

	"chainguard.dev/prbot/agents/executor"
	"chainguard.dev/prbot/agents/executor/retry"
	"chainguard.dev/prbot/agents/metrics"
	"chainguard.dev/prbot/agents/promptbuilder"
	"chainguard.dev/prbot/agents/schema"
	"github.com/anthropics/anthropic-sdk-go"
)

// DefaultModel is used when no model option is given.
const DefaultModel = "claude-sonnet-4@20250514"

// SubmitTool is the name of the tool the model must call with its answer.
const SubmitTool = "submit_result"

type claude[Request promptbuilder.Bindable, Response any] struct {
	client   anthropic.Client
	settings *executor.Settings
	tool     anthropic.ToolParam
	metrics  *metrics.GenAI
}

// New returns a Claude-backed executor for task.
func New[Request promptbuilder.Bindable, Response any](
	client anthropic.Client,
	task string,
	prompt *promptbuilder.Prompt,
	opts ...executor.Option,
) (executor.Interface[Request, Response], error) {
	s, err := executor.NewSettings(task, DefaultModel, prompt, opts...)
	if err != nil {
		return nil, err
	}
	tool, err := submitTool[Response]()
	if err != nil {
		return nil, err
	}
	return &claude[Request, Response]{
		client:   client,
		settings: s,
		tool:     tool,
		metrics:  metrics.NewGenAI(),
	}, nil
}

func submitTool[Response any]() (anthropic.ToolParam, error) {
	m, err := schema.Map[Response]()
	if err != nil {
		return anthropic.ToolParam{}, err
	}
	var required []string
	if rs, ok := m["required"].([]any); ok {
		for _, r := range rs {
			if s, ok := r.(string); ok {
				required = append(required, s)
			}
		}
	}
	return anthropic.ToolParam{
		Name:        SubmitTool,
		Description: anthropic.String("Submit the final result. Call this exactly once with the complete answer."),
		InputSchema: anthropic.ToolInputSchemaParam{
			Type:       "object",
			Properties: m["properties"],
			Required:   required,
		},
	}, nil
}

// Execute implements executor.Interface.
func (c *claude[Request, Response]) Execute(ctx context.Context, request Request) (Response, error) {
	return executor.Run[Request, Response](ctx, c.settings, c.metrics, IsRetryable, request, c.generate)
}

func (c *claude[Request, Response]) generate(ctx context.Context, prompt, system string) (string, executor.Usage, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.settings.Model),
		MaxTokens:   c.settings.MaxTokens,
		Temperature: anthropic.Float(c.settings.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		Tools: []anthropic.ToolUnionParam{{OfTool: &c.tool}},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: SubmitTool},
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", executor.Usage{}, err
	}
	usage := executor.Usage{
		PromptTokens:     msg.Usage.InputTokens,
		CompletionTokens: msg.Usage.OutputTokens,
	}
	for _, block := range msg.Content {
		if block.Type == "tool_use" && block.Name == SubmitTool {
			return string(block.Input), usage, nil
		}
	}
	if msg.StopReason == anthropic.StopReasonMaxTokens {
		return "", usage, fmt.Errorf("response truncated at %d tokens", c.settings.MaxTokens)
	}
	return "", usage, executor.ErrEmptyResponse
}

// IsRetryable reports rate limiting, overload and transient gateway errors.
func IsRetryable(err error) bool {
	return retry.StatusIn(status, 429, 503, 504, 529)(err)
}

func status(err error) (int, bool) {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, true
	}
	return 0, false
}
