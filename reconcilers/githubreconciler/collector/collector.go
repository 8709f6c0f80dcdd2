/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package collector gathers the snapshot of a pull request the pipelines
// work from: changed files with their content, commit messages and the
// existing test files. A snapshot is never modified after Collect returns.
package collector

import (
	"context"
	"errors"
	"fmt"

	"chainguard.dev/prbot/reconcilers/githubreconciler"
	"chainguard.dev/prbot/reconcilers/githubreconciler/repo"
	"github.com/chainguard-dev/clog"
	"golang.org/x/sync/errgroup"
)

// DefaultThreshold is the content size, in bytes, at which a file is
// excluded from prompts.
const DefaultThreshold = 32000

// ChangedFile is a file touched by the pull request. Content is nil for
// removed and excluded files.
type ChangedFile struct {
	Filename  string
	Status    string
	Patch     string
	Additions int
	Deletions int
	Content   *string
	Excluded  bool
	Hunks     []Hunk
}

// Commit is a pull request commit.
type Commit struct {
	SHA     string
	Message string
}

// TestFile is a file under the test root at the head ref. Content is empty
// for excluded files.
type TestFile struct {
	Path     string
	Content  string
	Excluded bool
}

// Snapshot is everything the test pipeline reads about a pull request.
type Snapshot struct {
	Files   []ChangedFile
	Commits []Commit
	Tests   []TestFile
}

// Source is the subset of repo.Client the collector reads through.
type Source interface {
	ListFiles(ctx context.Context, res *githubreconciler.Resource) ([]repo.File, error)
	ListCommits(ctx context.Context, res *githubreconciler.Resource) ([]repo.Commit, error)
	GetFile(ctx context.Context, res *githubreconciler.Resource, path string) (*repo.Blob, error)
	ListDir(ctx context.Context, res *githubreconciler.Resource, path string) ([]repo.Entry, error)
}

// Collector reads pull request snapshots.
type Collector struct {
	src         Source
	testDir     string
	threshold   int
	parallelism int
}

// Option configures a Collector.
type Option func(*Collector) error

// WithTestDir sets the root searched for existing tests.
func WithTestDir(dir string) Option {
	return func(c *Collector) error {
		if dir == "" {
			return errors.New("test dir cannot be empty")
		}
		c.testDir = dir
		return nil
	}
}

// WithThreshold sets the exclusion size in bytes.
func WithThreshold(n int) Option {
	return func(c *Collector) error {
		if n <= 0 {
			return fmt.Errorf("threshold must be positive, got %d", n)
		}
		c.threshold = n
		return nil
	}
}

// WithParallelism bounds concurrent content fetches.
func WithParallelism(n int) Option {
	return func(c *Collector) error {
		if n <= 0 {
			return fmt.Errorf("parallelism must be positive, got %d", n)
		}
		c.parallelism = n
		return nil
	}
}

// New returns a Collector reading from src.
func New(src Source, opts ...Option) (*Collector, error) {
	if src == nil {
		return nil, errors.New("source cannot be nil")
	}
	c := &Collector{
		src:         src,
		testDir:     "tests",
		threshold:   DefaultThreshold,
		parallelism: 8,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}
	return c, nil
}

// TestDir is the root searched for existing tests.
func (c *Collector) TestDir() string { return c.testDir }

// Collect reads the changes, commits and existing tests of res.
func (c *Collector) Collect(ctx context.Context, res *githubreconciler.Resource) (*Snapshot, error) {
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.Files, snap.Commits, err = c.Changes(gctx, res)
		return err
	})
	g.Go(func() (err error) {
		snap.Tests, err = c.ExistingTests(gctx, res)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	clog.FromContext(ctx).With(
		"files", len(snap.Files),
		"commits", len(snap.Commits),
		"tests", len(snap.Tests),
	).Info("Collected pull request snapshot")
	return &snap, nil
}

// Changes reads the changed files, with content, and the commits of res.
func (c *Collector) Changes(ctx context.Context, res *githubreconciler.Resource) ([]ChangedFile, []Commit, error) {
	var (
		files   []repo.File
		commits []repo.Commit
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		files, err = c.src.ListFiles(gctx, res)
		return err
	})
	g.Go(func() (err error) {
		commits, err = c.src.ListCommits(gctx, res)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	changed := make([]ChangedFile, len(files))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(c.parallelism)
	for i, f := range files {
		changed[i] = ChangedFile{
			Filename:  f.Filename,
			Status:    f.Status,
			Patch:     f.Patch,
			Additions: f.Additions,
			Deletions: f.Deletions,
			Hunks:     parseHunks(f.Filename, f.Patch),
		}
		if f.Status == "removed" {
			continue
		}
		g.Go(func() error {
			blob, err := c.src.GetFile(gctx, res, f.Filename)
			switch {
			case errors.Is(err, repo.ErrNotFound):
				// Submodules and files GitHub cannot serve as content.
				return nil
			case err != nil:
				return err
			}
			if c.tooLarge(blob) {
				changed[i].Excluded = true
				return nil
			}
			changed[i].Content = &blob.Content
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("fetching changed file content: %w", err)
	}

	out := make([]Commit, 0, len(commits))
	for _, cm := range commits {
		out = append(out, Commit{SHA: cm.SHA, Message: cm.Message})
	}
	return changed, out, nil
}

// ExistingTests reads every file under the test root at the head ref. A
// missing test root yields no tests.
func (c *Collector) ExistingTests(ctx context.Context, res *githubreconciler.Resource) ([]TestFile, error) {
	var paths []string
	if err := c.walk(ctx, res, c.testDir, &paths); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			clog.FromContext(ctx).With("dir", c.testDir).Info("No test directory at head ref")
			return nil, nil
		}
		return nil, fmt.Errorf("listing tests: %w", err)
	}

	tests := make([]TestFile, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallelism)
	for i, p := range paths {
		g.Go(func() error {
			blob, err := c.src.GetFile(gctx, res, p)
			if err != nil {
				return err
			}
			tests[i] = TestFile{Path: p}
			if c.tooLarge(blob) {
				tests[i].Excluded = true
			} else {
				tests[i].Content = blob.Content
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetching tests: %w", err)
	}
	return tests, nil
}

// tooLarge reports whether blob is at or over the threshold. Blobs GitHub
// would not serve are always too large.
func (c *Collector) tooLarge(blob *repo.Blob) bool {
	return blob.Truncated || blob.Size >= c.threshold || len(blob.Content) >= c.threshold
}

func (c *Collector) walk(ctx context.Context, res *githubreconciler.Resource, dir string, paths *[]string) error {
	entries, err := c.src.ListDir(ctx, res, dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		switch e.Type {
		case repo.EntryFile:
			*paths = append(*paths, e.Path)
		case repo.EntryDir:
			if err := c.walk(ctx, res, e.Path, paths); err != nil {
				return err
			}
		}
	}
	return nil
}
