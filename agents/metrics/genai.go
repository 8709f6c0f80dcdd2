/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package metrics records OpenTelemetry metrics for model calls. The meter is
// shared by every executor; the model name and task are dimensions.
package metrics

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// MeterName is the instrumentation scope used by all executors.
const MeterName = "chainguard.dev/prbot/agents"

// GenAI holds the counters. A counter that fails to initialize degrades to a
// no-op instead of failing the executor.
type GenAI struct {
	promptTokens     metric.Int64Counter
	completionTokens metric.Int64Counter
	calls            metric.Int64Counter
}

// NewGenAI creates the counters on the global meter provider.
func NewGenAI() *GenAI {
	meter := otel.Meter(MeterName, metric.WithInstrumentationVersion("1.0.0"))
	return &GenAI{
		promptTokens: counter(meter, "genai.token.prompt", "The number of prompt tokens used", "{tokens}"),
		completionTokens: counter(meter, "genai.token.completion",
			"The number of completion tokens used", "{tokens}"),
		calls: counter(meter, "genai.calls", "The number of model calls by outcome", "{calls}"),
	}
}

func counter(meter metric.Meter, name, desc, unit string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	if err != nil {
		slog.Warn("Failed to create counter, metric disabled", "error", err, "counter", name)
		return noop.Int64Counter{}
	}
	return c
}

// RecordTokens records prompt and completion token usage.
func (m *GenAI) RecordTokens(ctx context.Context, model, task string, prompt, completion int64) {
	attrs := metric.WithAttributes(attribute.String("model", model), attribute.String("task", task))
	m.promptTokens.Add(ctx, prompt, attrs)
	m.completionTokens.Add(ctx, completion, attrs)
}

// RecordCall records one model call. outcome is "success" or "error".
func (m *GenAI) RecordCall(ctx context.Context, model, task, outcome string) {
	m.calls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("task", task),
		attribute.String("outcome", outcome),
	))
}
