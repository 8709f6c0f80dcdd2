/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package testreconciler

import (
	"context"
	"errors"
	"fmt"

	"chainguard.dev/prbot/agents/testagent"
	"chainguard.dev/prbot/reconcilers/githubreconciler"
	"chainguard.dev/prbot/reconcilers/githubreconciler/collector"
	"chainguard.dev/prbot/reconcilers/githubreconciler/repo"
	"github.com/chainguard-dev/clog"
)

// Applier writes proposals to the pull request branch.
type Applier struct {
	files Files
}

// NewApplier creates an Applier writing through files.
func NewApplier(files Files) *Applier {
	return &Applier{files: files}
}

// Apply performs every action of every proposal, in order. Actions within
// a proposal are cumulative: each one moves the proposal's filename closer
// to the proposal's content. A failed action is recorded and the remaining
// actions still run.
//
// Create never overwrites. It is skipped when the file is in the existing
// tests snapshot, was already written during this call, or exists on the
// remote branch.
func (a *Applier) Apply(ctx context.Context, res *githubreconciler.Resource, proposals []testagent.Proposal, existing []collector.TestFile) []*MutationError {
	known := make(map[string]bool, len(existing))
	for _, t := range existing {
		known[t.Path] = true
	}

	var errs []*MutationError
	for _, p := range proposals {
		for _, act := range p.Actions {
			log := clog.FromContext(ctx).With("action", act.Kind, "file", p.Filename)

			var err error
			switch act.Kind {
			case testagent.Create:
				err = a.create(ctx, res, p, known)
			case testagent.Update:
				err = a.update(ctx, res, p, known)
			case testagent.Rename:
				err = a.rename(ctx, res, p, act.OldFilename, known)
			default:
				err = fmt.Errorf("unknown action %q", act.Kind)
			}
			if err == nil {
				continue
			}

			merr := &MutationError{Action: act.Kind, Path: p.Filename, Err: err}
			log.With("error", err).Error("Failed to apply test proposal action")
			mutationsTotal.WithLabelValues(string(act.Kind), "error").Inc()
			errs = append(errs, merr)
		}
	}
	return errs
}

func (a *Applier) create(ctx context.Context, res *githubreconciler.Resource, p testagent.Proposal, known map[string]bool) error {
	log := clog.FromContext(ctx).With("file", p.Filename)
	if known[p.Filename] {
		log.Info("Test file already exists, skipping create")
		mutationsTotal.WithLabelValues(string(testagent.Create), "skipped").Inc()
		return nil
	}

	// The snapshot predates this run's writes and any concurrent pushes.
	exists, err := a.files.Exists(ctx, res, p.Filename)
	if err != nil {
		return fmt.Errorf("checking existence: %w", err)
	}
	if exists {
		known[p.Filename] = true
		log.Info("Test file exists on the branch, skipping create")
		mutationsTotal.WithLabelValues(string(testagent.Create), "skipped").Inc()
		return nil
	}

	if err := a.files.CreateFile(ctx, res, p.Filename, "Add tests: "+p.Filename, p.TestContent); err != nil {
		return err
	}
	known[p.Filename] = true
	log.Info("Created test file")
	mutationsTotal.WithLabelValues(string(testagent.Create), "ok").Inc()
	return nil
}

func (a *Applier) update(ctx context.Context, res *githubreconciler.Resource, p testagent.Proposal, known map[string]bool) error {
	blob, err := a.files.GetFile(ctx, res, p.Filename)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		// Nothing to update; write it as a new file instead.
		if err := a.files.CreateFile(ctx, res, p.Filename, "Add tests: "+p.Filename, p.TestContent); err != nil {
			return err
		}
	case err != nil:
		return fmt.Errorf("fetching current version: %w", err)
	default:
		if err := a.files.UpdateFile(ctx, res, p.Filename, "Update tests: "+p.Filename, p.TestContent, blob.SHA); err != nil {
			return err
		}
	}
	known[p.Filename] = true
	clog.FromContext(ctx).With("file", p.Filename).Info("Updated test file")
	mutationsTotal.WithLabelValues(string(testagent.Update), "ok").Inc()
	return nil
}

// rename writes the proposal to its new name, then removes the old file.
// The two writes are separate commits; a failure between them leaves both
// files on the branch.
func (a *Applier) rename(ctx context.Context, res *githubreconciler.Resource, p testagent.Proposal, old string, known map[string]bool) error {
	if old == "" {
		return errors.New("rename without old filename")
	}
	log := clog.FromContext(ctx).With("file", p.Filename, "old_file", old)
	message := fmt.Sprintf("Renaming %s to %s", old, p.Filename)

	target, err := a.files.GetFile(ctx, res, p.Filename)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		err = a.files.CreateFile(ctx, res, p.Filename, message, p.TestContent)
	case err != nil:
		return fmt.Errorf("fetching rename target: %w", err)
	default:
		err = a.files.UpdateFile(ctx, res, p.Filename, message, p.TestContent, target.SHA)
	}
	if err != nil {
		return err
	}
	known[p.Filename] = true

	prev, err := a.files.GetFile(ctx, res, old)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		log.Warn("Old test file is already gone, nothing to remove")
	case err != nil:
		return fmt.Errorf("fetching %s: %w", old, err)
	default:
		if err := a.files.DeleteFile(ctx, res, old, fmt.Sprintf("Removed old file %s after renaming to %s", old, p.Filename), prev.SHA); err != nil {
			return fmt.Errorf("deleting %s: %w", old, err)
		}
		delete(known, old)
	}
	log.Info("Renamed test file")
	mutationsTotal.WithLabelValues(string(testagent.Rename), "ok").Inc()
	return nil
}
