/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package testreconciler

import (
	"context"
	"fmt"

	"chainguard.dev/prbot/agents/result"
	"chainguard.dev/prbot/agents/testagent"
	"chainguard.dev/prbot/reconcilers/githubreconciler"
	"chainguard.dev/prbot/reconcilers/testreconciler/runner"
	"github.com/chainguard-dev/clog"
)

// DefaultMaxRetries is the number of fix attempts allowed per test file.
const DefaultMaxRetries = 3

// Checkout is a local working tree tracking the pull request branch.
type Checkout interface {
	// Sync brings the working tree to the current remote head.
	Sync(ctx context.Context) error
	WorkingTree() string
	// SHA is the commit checked out by the last Sync.
	SHA() string
}

// Runner executes one test file in a working tree.
type Runner interface {
	Run(ctx context.Context, dir, file string) runner.Result
}

// Fixer proposes a repaired test file. An empty result with a nil error
// means no fix could be produced.
type Fixer interface {
	Fix(ctx context.Context, req *testagent.FixRequest) (result.Optional[string], error)
}

// Loop runs proposed test files and repairs the failing ones.
type Loop struct {
	files      Files
	fixer      Fixer
	runner     Runner
	maxRetries int
}

// LoopOption configures a Loop.
type LoopOption func(*Loop) error

// WithMaxRetries sets the number of fix attempts per file.
func WithMaxRetries(n int) LoopOption {
	return func(l *Loop) error {
		if n < 0 {
			return fmt.Errorf("max retries cannot be negative, got %d", n)
		}
		l.maxRetries = n
		return nil
	}
}

// NewLoop creates a Loop.
func NewLoop(files Files, fixer Fixer, runner Runner, opts ...LoopOption) (*Loop, error) {
	l := &Loop{
		files:      files,
		fixer:      fixer,
		runner:     runner,
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// RunAndRepair runs each proposed file once, in proposal order, repairing
// it until it passes or reaches a terminal failure. Files left unprocessed
// because ctx ended are absent from the results.
func (l *Loop) RunAndRepair(ctx context.Context, res *githubreconciler.Resource, co Checkout, proposals []testagent.Proposal) Results {
	results := make(Results, len(proposals))
	for _, file := range uniqueFilenames(proposals) {
		if err := ctx.Err(); err != nil {
			clog.FromContext(ctx).With("error", err).Warn("Stopping test execution")
			break
		}
		r := l.repair(ctx, res, co, file)
		results[file] = r

		resultsTotal.WithLabelValues(string(r.State)).Inc()
		fixAttempts.Observe(float64(r.RetryCount))
	}
	return results
}

func (l *Loop) repair(ctx context.Context, res *githubreconciler.Resource, co Checkout, file string) TestResult {
	log := clog.FromContext(ctx).With("file", file)

	retries := 0
	for {
		run := l.execute(ctx, co, file)
		if run.Passed {
			log.With("retry_count", retries).Info("Test file passed")
			return TestResult{File: file, State: Passed, Passed: true, RetryCount: retries}
		}

		failed := TestResult{File: file, ErrorMessage: run.Output, RetryCount: retries}
		if retries >= l.maxRetries {
			log.With("retry_count", retries).Warn("Test file still failing, retries exhausted")
			failed.State = FailedExhausted
			return failed
		}

		retries++
		failed.RetryCount = retries
		failed.State = FailedUnfixable
		log = log.With("retry_count", retries)

		current, err := l.files.GetFile(ctx, res, file)
		if err != nil {
			log.With("error", err).Error("Failed to fetch test file for fixing")
			return failed
		}
		if current.Truncated {
			log.With("size", current.Size).Warn("Test file too large to fix")
			return failed
		}

		fix, err := l.fixer.Fix(ctx, &testagent.FixRequest{
			Filename:     file,
			TestContent:  current.Content,
			ErrorMessage: run.Output,
		})
		if err != nil {
			log.With("error", err).Warn("Fix generation failed")
			return failed
		}
		content, ok := fix.Get()
		if !ok {
			log.Info("No fix available for test file")
			return failed
		}

		if err := l.files.UpdateFile(ctx, res, file, "Fix test: "+file, content, current.SHA); err != nil {
			log.With("error", err).Error("Failed to commit test fix")
			mutationsTotal.WithLabelValues("fix", "error").Inc()
			return failed
		}
		mutationsTotal.WithLabelValues("fix", "ok").Inc()
		log.Info("Committed test fix")
	}
}

// execute syncs the checkout with the branch and runs file. A failed sync
// is reported as a failing run.
func (l *Loop) execute(ctx context.Context, co Checkout, file string) runner.Result {
	if err := co.Sync(ctx); err != nil {
		clog.FromContext(ctx).With("file", file, "error", err).Warn("Failed to sync checkout")
		return runner.Result{Output: fmt.Sprintf("syncing with the pull request branch: %v", err)}
	}
	clog.FromContext(ctx).With("file", file, "sha", co.SHA()).Debug("Running test file")
	return l.runner.Run(ctx, co.WorkingTree(), file)
}
