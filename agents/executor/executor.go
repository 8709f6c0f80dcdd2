/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package executor defines the contract shared by the model backends in its
// subpackages (openaiexecutor, claudeexecutor, googleexecutor).
package executor

import (
	"context"

	"chainguard.dev/prbot/agents/promptbuilder"
)

// Interface runs one structured model call. The request binds the
// executor's prompt; the response is decoded and validated against
// Response before it is returned. Every failure is a *result.GenerationError.
type Interface[Request promptbuilder.Bindable, Response any] interface {
	Execute(ctx context.Context, request Request) (Response, error)
}

// Func adapts a function to Interface. Tests use it to script model
// behavior.
type Func[Request promptbuilder.Bindable, Response any] func(context.Context, Request) (Response, error)

// Execute implements Interface.
func (f Func[Request, Response]) Execute(ctx context.Context, request Request) (Response, error) {
	return f(ctx, request)
}
