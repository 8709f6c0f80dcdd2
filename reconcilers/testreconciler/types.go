/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package testreconciler

import (
	"context"
	"fmt"

	"chainguard.dev/prbot/agents/testagent"
	"chainguard.dev/prbot/reconcilers/githubreconciler"
	"chainguard.dev/prbot/reconcilers/githubreconciler/repo"
)

// State is the terminal state of a test file in the repair loop.
type State string

const (
	Passed          State = "PASSED"
	FailedExhausted State = "FAILED_EXHAUSTED"
	FailedUnfixable State = "FAILED_UNFIXABLE"
)

// TestResult is the outcome of running and repairing one test file.
// RetryCount is the number of fix attempts, not executions.
type TestResult struct {
	File         string `json:"file"`
	State        State  `json:"state"`
	Passed       bool   `json:"passed"`
	ErrorMessage string `json:"error_message,omitempty"`
	RetryCount   int    `json:"retry_count"`
}

// Results maps test filenames to their outcome.
type Results map[string]TestResult

// MutationError is a failed repository write made on behalf of a proposal.
type MutationError struct {
	Action testagent.ActionKind
	Path   string
	Err    error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Action, e.Path, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }

// Files is the subset of repo.Client the pipeline reads and writes test
// files through.
type Files interface {
	GetFile(ctx context.Context, res *githubreconciler.Resource, path string) (*repo.Blob, error)
	Exists(ctx context.Context, res *githubreconciler.Resource, path string) (bool, error)
	CreateFile(ctx context.Context, res *githubreconciler.Resource, path, message, content string) error
	UpdateFile(ctx context.Context, res *githubreconciler.Resource, path, message, content, sha string) error
	DeleteFile(ctx context.Context, res *githubreconciler.Resource, path, message, sha string) error
}

// Comments posts and edits pull request comments.
type Comments interface {
	CreateComment(ctx context.Context, res *githubreconciler.Resource, body string) (int64, error)
	EditComment(ctx context.Context, res *githubreconciler.Resource, id int64, body string) error
}

// uniqueFilenames returns the proposed filenames in generator order,
// without repeats.
func uniqueFilenames(proposals []testagent.Proposal) []string {
	seen := make(map[string]bool, len(proposals))
	out := make([]string, 0, len(proposals))
	for _, p := range proposals {
		if seen[p.Filename] {
			continue
		}
		seen[p.Filename] = true
		out = append(out, p.Filename)
	}
	return out
}
