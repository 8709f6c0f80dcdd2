/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agenttrace

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
)

// ExecutionContext identifies the pipeline run a model call belongs to.
type ExecutionContext struct {
	Owner    string
	Repo     string
	PR       int
	Pipeline string // "review" or "tests"
	RunID    string
}

// Key returns "owner/repo#pr", or "" when the context is empty.
func (e ExecutionContext) Key() string {
	if e.Owner == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s#%d", e.Owner, e.Repo, e.PR)
}

// Attributes returns span attributes for the non-empty fields.
func (e ExecutionContext) Attributes() []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if k := e.Key(); k != "" {
		attrs = append(attrs, attribute.String("pull_request", k))
	}
	if e.Pipeline != "" {
		attrs = append(attrs, attribute.String("pipeline", e.Pipeline))
	}
	if e.RunID != "" {
		attrs = append(attrs, attribute.String("run_id", e.RunID))
	}
	return attrs
}

type contextKey struct{}

// WithExecutionContext attaches e to ctx.
func WithExecutionContext(ctx context.Context, e ExecutionContext) context.Context {
	return context.WithValue(ctx, contextKey{}, e)
}

// GetExecutionContext returns the ExecutionContext attached to ctx, if any.
func GetExecutionContext(ctx context.Context) ExecutionContext {
	e, _ := ctx.Value(contextKey{}).(ExecutionContext)
	return e
}
