/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package testreconciler runs the test pipeline for a pull request.
//
// A run collects the pull request snapshot, asks the test agent whether
// tests are warranted, applies the proposed test files to the head branch,
// then executes each proposed file and asks the agent to repair failures
// until the file passes or the retry budget runs out. The outcome replaces
// a placeholder comment on the pull request.
//
// The pipeline stops after gating when the decision is negative, and after
// proposal generation when nothing was proposed. Every path that completes
// edits the placeholder, so a pull request is never left showing
// "Test analysis in progress...".
package testreconciler
