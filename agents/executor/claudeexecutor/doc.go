/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package claudeexecutor runs single-shot structured calls against Claude.
//
// The response shape is enforced by forcing the model to call a single
// submit_result tool whose input schema is the schema of the response
// type. The tool input is then decoded and validated.
//
//	client := anthropic.NewClient(vertex.WithGoogleAuth(ctx, region, projectID))
//
//	exec, err := claudeexecutor.New[*Request, *Response](client, "gating", prompt,
//	    executor.WithModel("claude-sonnet-4@20250514"),
//	    executor.WithMaxTokens(4096),
//	)
package claudeexecutor
