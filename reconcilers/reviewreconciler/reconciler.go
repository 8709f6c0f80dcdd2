/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package reviewreconciler posts a model-written review on a pull request.
package reviewreconciler

import (
	"context"
	"errors"
	"fmt"

	"chainguard.dev/prbot/agents/agenttrace"
	"chainguard.dev/prbot/agents/reviewagent"
	"chainguard.dev/prbot/reconcilers/githubreconciler"
	"chainguard.dev/prbot/reconcilers/githubreconciler/collector"
	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	Placeholder = "Review in progress..."
	ErrorBody   = "Error Generating Review"
)

var reviewsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "prbot",
	Subsystem: "review",
	Name:      "runs_total",
	Help:      "Review pipeline runs by outcome",
}, []string{"outcome"})

// Reviewer produces a review.
type Reviewer interface {
	Review(ctx context.Context, req *reviewagent.Request) (*reviewagent.Review, error)
}

// Changes reads the changed files and commits of a pull request.
type Changes interface {
	Changes(ctx context.Context, res *githubreconciler.Resource) ([]collector.ChangedFile, []collector.Commit, error)
}

// Comments posts and edits pull request comments.
type Comments interface {
	CreateComment(ctx context.Context, res *githubreconciler.Resource, body string) (int64, error)
	EditComment(ctx context.Context, res *githubreconciler.Resource, id int64, body string) error
}

// Reconciler runs the review pipeline.
type Reconciler struct {
	changes  Changes
	reviewer Reviewer
	comments Comments
}

// New creates a Reconciler.
func New(changes Changes, reviewer Reviewer, comments Comments) (*Reconciler, error) {
	switch {
	case changes == nil:
		return nil, errors.New("changes source cannot be nil")
	case reviewer == nil:
		return nil, errors.New("reviewer cannot be nil")
	case comments == nil:
		return nil, errors.New("comments cannot be nil")
	}
	return &Reconciler{changes: changes, reviewer: reviewer, comments: comments}, nil
}

// Reconcile reviews res. The placeholder comment it posts is always
// replaced by the review or by an error notice.
func (r *Reconciler) Reconcile(ctx context.Context, res *githubreconciler.Resource) error {
	if err := res.Validate(); err != nil {
		return err
	}
	runID := uuid.NewString()
	ctx = agenttrace.WithExecutionContext(ctx, agenttrace.ExecutionContext{
		Owner:    res.Owner,
		Repo:     res.Repo,
		PR:       res.Number,
		Pipeline: "review",
		RunID:    runID,
	})
	log := clog.FromContext(ctx).With("owner", res.Owner, "repo", res.Repo, "pr", res.Number, "pipeline", "review", "run_id", runID)
	ctx = clog.WithLogger(ctx, log)

	id, err := r.comments.CreateComment(ctx, res, Placeholder)
	if err != nil {
		reviewsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("posting placeholder comment: %w", err)
	}

	body, runErr := r.review(ctx, res)
	outcome := "reported"
	if runErr != nil {
		log.With("error", runErr).Error("Review pipeline failed")
		body, outcome = ErrorBody, "error"
	}
	reviewsTotal.WithLabelValues(outcome).Inc()

	if err := r.comments.EditComment(context.WithoutCancel(ctx), res, id, body); err != nil {
		return errors.Join(runErr, fmt.Errorf("updating comment %d: %w", id, err))
	}
	log.With("outcome", outcome).Info("Review pipeline finished")
	return runErr
}

func (r *Reconciler) review(ctx context.Context, res *githubreconciler.Resource) (string, error) {
	files, commits, err := r.changes.Changes(ctx, res)
	if err != nil {
		return "", fmt.Errorf("collecting pull request: %w", err)
	}
	snap := &collector.Snapshot{Files: files, Commits: commits}

	review, err := r.reviewer.Review(ctx, &reviewagent.Request{
		Title:        res.Title,
		Commits:      snap.CommitMessages(),
		ChangedFiles: snap.AgentFiles(),
	})
	if err != nil {
		return "", err
	}
	return reviewagent.Render(review), nil
}
