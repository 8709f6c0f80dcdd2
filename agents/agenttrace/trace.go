/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package agenttrace records one span per model call, annotated with the
// pipeline run it belongs to, and logs a summary line when the call ends.
package agenttrace

import (
	"context"
	"time"

	"github.com/chainguard-dev/clog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const tracerName = "chainguard.dev/prbot/agents/agenttrace"

// Trace covers a single model call.
type Trace struct {
	Task             string
	Model            string
	PromptLength     int
	PromptTokens     int64
	CompletionTokens int64
	Err              error
	StartTime        time.Time
	EndTime          time.Time

	ctx  context.Context
	span oteltrace.Span
}

// Start opens a span for a call to model for task. The returned context
// carries the span so provider HTTP instrumentation nests under it.
func Start(ctx context.Context, task, model, prompt string) (context.Context, *Trace) {
	attrs := append(GetExecutionContext(ctx).Attributes(),
		attribute.String("agent.task", task),
		attribute.String("agent.model", model),
		attribute.Int("agent.prompt_length", len(prompt)),
	)
	ctx, span := otel.Tracer(tracerName, oteltrace.WithInstrumentationVersion("1.0.0")).
		Start(ctx, "agent."+task, oteltrace.WithAttributes(attrs...))

	return ctx, &Trace{
		Task:         task,
		Model:        model,
		PromptLength: len(prompt),
		StartTime:    time.Now(),
		ctx:          ctx,
		span:         span,
	}
}

// RecordTokenUsage adds token counts to the trace. Providers that report
// usage per turn may call it more than once.
func (t *Trace) RecordTokenUsage(prompt, completion int64) {
	t.PromptTokens += prompt
	t.CompletionTokens += completion
	t.span.SetAttributes(
		attribute.Int64("gen_ai.usage.input_tokens", t.PromptTokens),
		attribute.Int64("gen_ai.usage.output_tokens", t.CompletionTokens),
	)
}

// Duration is the elapsed time of a completed trace.
func (t *Trace) Duration() time.Duration {
	if t.EndTime.IsZero() {
		return time.Since(t.StartTime)
	}
	return t.EndTime.Sub(t.StartTime)
}

// Complete ends the span and logs the outcome.
func (t *Trace) Complete(err error) {
	t.EndTime = time.Now()
	t.Err = err

	log := clog.FromContext(t.ctx).With(
		"task", t.Task,
		"model", t.Model,
		"duration_ms", t.Duration().Milliseconds(),
		"prompt_tokens", t.PromptTokens,
		"completion_tokens", t.CompletionTokens,
	)
	if err != nil {
		t.span.RecordError(err)
		t.span.SetStatus(codes.Error, err.Error())
		log.With("error", err).Warn("Model call failed")
	} else {
		t.span.SetStatus(codes.Ok, "")
		log.Info("Model call completed")
	}
	t.span.End()
}
