/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package runner executes a single test file with pytest inside a working
// tree. Problems starting or finishing the process are reported as failing
// results so the repair loop treats them like assertion failures.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
)

const (
	// DefaultCommand is the pytest invocation used when none is configured.
	DefaultCommand = "python -m pytest"
	// DefaultTimeout bounds one test file execution.
	DefaultTimeout = 5 * time.Minute
)

// Result is the outcome of one execution. Output holds the captured pytest
// output, or the error text when pytest could not run to completion.
type Result struct {
	Passed bool
	Output string
}

// Runner runs pytest.
type Runner struct {
	command []string
	timeout time.Duration
}

// Option configures a Runner.
type Option func(*Runner) error

// WithCommand sets the command line that precedes the pytest arguments.
func WithCommand(cmd string) Option {
	return func(r *Runner) error {
		fields := strings.Fields(cmd)
		if len(fields) == 0 {
			return errors.New("command cannot be empty")
		}
		r.command = fields
		return nil
	}
}

// WithTimeout bounds each execution.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %v", d)
		}
		r.timeout = d
		return nil
	}
}

// New creates a Runner.
func New(opts ...Option) (*Runner, error) {
	r := &Runner{
		command: strings.Fields(DefaultCommand),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Run executes file, a slash-separated path relative to dir.
func (r *Runner) Run(ctx context.Context, dir, file string) Result {
	log := clog.FromContext(ctx).With("file", file)

	full := filepath.Join(dir, filepath.FromSlash(file))
	if rel, err := filepath.Rel(dir, full); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return Result{Output: fmt.Sprintf("test file %s is outside the working tree", file)}
	}
	if _, err := os.Stat(full); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{Output: fmt.Sprintf("test file %s not found", file)}
		}
		return Result{Output: fmt.Sprintf("stat %s: %v", file, err)}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	args := append(r.command[1:len(r.command):len(r.command)], "-v", file, "-p", "no:warnings")
	cmd := exec.CommandContext(ctx, r.command[0], args...)
	cmd.Dir = dir
	cmd.WaitDelay = time.Second

	start := time.Now()
	out, err := cmd.CombinedOutput()
	log = log.With("duration", time.Since(start))

	switch {
	case err == nil:
		log.Info("Test file passed")
		return Result{Passed: true, Output: string(out)}

	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		log.Warn("Test file timed out")
		return Result{Output: fmt.Sprintf("pytest timed out after %v\n%s", r.timeout, out)}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		log.With("exit_code", exitErr.ExitCode()).Info("Test file failed")
		return Result{Output: string(out)}
	}
	log.With("error", err).Warn("Failed to run pytest")
	return Result{Output: fmt.Sprintf("running pytest: %v\n%s", err, out)}
}
