/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package testreconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chainguard.dev/prbot/agents/agenttrace"
	"chainguard.dev/prbot/agents/testagent"
	"chainguard.dev/prbot/reconcilers/githubreconciler"
	"chainguard.dev/prbot/reconcilers/githubreconciler/collector"
	"chainguard.dev/prbot/reconcilers/testreconciler/archive"
	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"
)

// Comment bodies for the non-report outcomes.
const (
	Placeholder   = "Test analysis in progress..."
	ErrorBody     = "Error Generating Tests"
	NoProposals   = "No test proposals were generated."
	skippedPrefix = "Skipping test generation: "
)

// Agent is the model side of the pipeline.
type Agent interface {
	Fixer
	Decide(ctx context.Context, req *testagent.GatingRequest) testagent.GatingDecision
	Propose(ctx context.Context, req *testagent.ProposalRequest) []testagent.Proposal
}

// Snapshotter reads the pull request snapshot.
type Snapshotter interface {
	Collect(ctx context.Context, res *githubreconciler.Resource) (*collector.Snapshot, error)
}

// Repository is the GitHub side of the pipeline.
type Repository interface {
	Files
	Comments
}

// LeasedCheckout is a Checkout that must be returned when the run is done.
type LeasedCheckout interface {
	Checkout
	Return(ctx context.Context) error
}

// CheckoutFunc leases a working tree of the pull request branch.
type CheckoutFunc func(ctx context.Context, res *githubreconciler.Resource) (LeasedCheckout, error)

// Record is the archived account of one run.
type Record struct {
	RunID      string                    `json:"run_id"`
	Owner      string                    `json:"owner"`
	Repo       string                    `json:"repo"`
	PR         int                       `json:"pr"`
	HeadRef    string                    `json:"head_ref"`
	HeadSHA    string                    `json:"head_sha,omitempty"`
	CommentID  int64                     `json:"comment_id"`
	StartedAt  time.Time                 `json:"started_at"`
	ReportedAt time.Time                 `json:"reported_at"`
	Outcome    string                    `json:"outcome"`
	Error      string                    `json:"error,omitempty"`
	Gating     *testagent.GatingDecision `json:"gating,omitempty"`
	Proposals  []testagent.Proposal      `json:"proposals,omitempty"`
	Mutations  []string                  `json:"mutation_errors,omitempty"`
	Results    Results                   `json:"results,omitempty"`
}

func (r *Record) name() string {
	return fmt.Sprintf("%s/%s/%d/%s.json", r.Owner, r.Repo, r.PR, r.RunID)
}

// Reconciler runs the test pipeline for pull requests.
type Reconciler struct {
	collector Snapshotter
	agent     Agent
	repo      Repository
	checkout  CheckoutFunc

	applier  *Applier
	loop     *Loop
	loopOpts []LoopOption
	archive  archive.Store
}

// Option configures a Reconciler.
type Option func(*Reconciler) error

// WithArchive stores a record of every run in store.
func WithArchive(store archive.Store) Option {
	return func(r *Reconciler) error {
		if store == nil {
			return errors.New("archive store cannot be nil")
		}
		r.archive = store
		return nil
	}
}

// WithLoopOptions configures the repair loop.
func WithLoopOptions(opts ...LoopOption) Option {
	return func(r *Reconciler) error {
		r.loopOpts = append(r.loopOpts, opts...)
		return nil
	}
}

// New creates a Reconciler.
func New(snap Snapshotter, agent Agent, repo Repository, checkout CheckoutFunc, runner Runner, opts ...Option) (*Reconciler, error) {
	switch {
	case snap == nil:
		return nil, errors.New("collector cannot be nil")
	case agent == nil:
		return nil, errors.New("agent cannot be nil")
	case repo == nil:
		return nil, errors.New("repository cannot be nil")
	case checkout == nil:
		return nil, errors.New("checkout cannot be nil")
	case runner == nil:
		return nil, errors.New("runner cannot be nil")
	}

	r := &Reconciler{
		collector: snap,
		agent:     agent,
		repo:      repo,
		checkout:  checkout,
		applier:   NewApplier(repo),
		archive:   archive.Noop{},
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	loop, err := NewLoop(repo, agent, runner, r.loopOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating repair loop: %w", err)
	}
	r.loop = loop
	return r, nil
}

// Reconcile runs the test pipeline for res and reports the outcome on a
// pull request comment. Once the placeholder is posted, it is always
// replaced, including when the pipeline fails.
func (r *Reconciler) Reconcile(ctx context.Context, res *githubreconciler.Resource) error {
	if err := res.Validate(); err != nil {
		return err
	}

	runID := uuid.NewString()
	ctx = agenttrace.WithExecutionContext(ctx, agenttrace.ExecutionContext{
		Owner:    res.Owner,
		Repo:     res.Repo,
		PR:       res.Number,
		Pipeline: "tests",
		RunID:    runID,
	})
	log := clog.FromContext(ctx).With("owner", res.Owner, "repo", res.Repo, "pr", res.Number, "pipeline", "tests", "run_id", runID)
	ctx = clog.WithLogger(ctx, log)

	id, err := r.repo.CreateComment(ctx, res, Placeholder)
	if err != nil {
		runsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("posting placeholder comment: %w", err)
	}

	rec := &Record{
		RunID:     runID,
		Owner:     res.Owner,
		Repo:      res.Repo,
		PR:        res.Number,
		HeadRef:   res.HeadRef,
		StartedAt: time.Now().UTC(),
		CommentID: id,
	}

	body, outcome, runErr := r.run(ctx, res, rec)
	if runErr != nil {
		log.With("error", runErr).Error("Test pipeline failed")
		body, outcome = ErrorBody, "error"
		rec.Error = runErr.Error()
	}
	runsTotal.WithLabelValues(outcome).Inc()

	// The placeholder must be replaced even if ctx was cancelled mid-run.
	editCtx := context.WithoutCancel(ctx)
	if err := r.repo.EditComment(editCtx, res, id, body); err != nil {
		return errors.Join(runErr, fmt.Errorf("updating comment %d: %w", id, err))
	}

	rec.Outcome = outcome
	rec.ReportedAt = time.Now().UTC()
	if err := r.archive.Put(editCtx, rec.name(), rec); err != nil {
		log.With("error", err).Warn("Failed to archive run record")
	}

	log.With("outcome", outcome).Info("Test pipeline finished")
	return runErr
}

// run executes the pipeline and returns the comment body and the outcome label.
func (r *Reconciler) run(ctx context.Context, res *githubreconciler.Resource, rec *Record) (string, string, error) {
	log := clog.FromContext(ctx)

	snap, err := r.collector.Collect(ctx, res)
	if err != nil {
		return "", "", fmt.Errorf("collecting pull request: %w", err)
	}

	req := snap.GatingRequest(res.Title)
	decision := r.agent.Decide(ctx, req)
	rec.Gating = &decision
	if !decision.ShouldGenerateTests {
		log.With("reasoning", decision.Reasoning).Info("Gating declined test generation")
		return skippedPrefix + decision.Reasoning, "skipped", nil
	}

	proposals := r.agent.Propose(ctx, &testagent.ProposalRequest{
		GatingRequest:   *req,
		Recommendations: decision.Recommendations,
	})
	rec.Proposals = proposals
	if len(proposals) == 0 {
		log.Info("No test proposals were generated")
		return NoProposals, "no_proposals", nil
	}
	log.With("proposals", len(proposals)).Info("Applying test proposals")

	for _, merr := range r.applier.Apply(ctx, res, proposals, snap.Tests) {
		rec.Mutations = append(rec.Mutations, merr.Error())
	}

	co, err := r.checkout(ctx, res)
	if err != nil {
		// Nothing can run; every proposed file is reported as not executed.
		log.With("error", err).Error("Failed to check out pull request branch")
		return Render(res.HeadRef, proposals, nil), "reported", nil
	}
	defer func() {
		if err := co.Return(context.WithoutCancel(ctx)); err != nil {
			log.With("error", err).Warn("Failed to return checkout")
		}
	}()

	results := r.loop.RunAndRepair(ctx, res, co, proposals)
	rec.Results = results
	rec.HeadSHA = co.SHA()
	return Render(res.HeadRef, proposals, results), "reported", nil
}
