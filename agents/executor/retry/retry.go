/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package retry runs calls against rate-limited APIs with exponential
// backoff and jitter.
package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/chainguard-dev/clog"
)

// Config bounds a retry sequence.
type Config struct {
	// MaxRetries is the number of retries after the first attempt. 0 disables
	// retrying.
	MaxRetries int
	// BaseBackoff is the wait before the first retry; it doubles per attempt.
	BaseBackoff time.Duration
	// MaxBackoff caps the doubled backoff.
	MaxBackoff time.Duration
	// MaxJitter is the upper bound of the random delay added to each wait.
	MaxJitter time.Duration
}

// DefaultConfig suits quota-based provider limits, which need longer waits
// than ordinary transient failures.
func DefaultConfig() Config {
	return Config{
		MaxRetries:  5,
		BaseBackoff: time.Second,
		MaxBackoff:  time.Minute,
		MaxJitter:   500 * time.Millisecond,
	}
}

// Validate rejects negative settings.
func (c Config) Validate() error {
	switch {
	case c.MaxRetries < 0:
		return errors.New("max retries cannot be negative")
	case c.BaseBackoff < 0, c.MaxBackoff < 0, c.MaxJitter < 0:
		return errors.New("backoff durations cannot be negative")
	}
	return nil
}

// Backoff returns the wait before retry number attempt (0-based), without
// jitter.
func (c Config) Backoff(attempt int) time.Duration {
	if attempt > 62 {
		return c.MaxBackoff
	}
	b := c.BaseBackoff << attempt
	if b < c.BaseBackoff || b > c.MaxBackoff {
		return c.MaxBackoff
	}
	return b
}

func (c Config) jitter() time.Duration {
	if c.MaxJitter <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(c.MaxJitter)))
	if err != nil {
		return 0
	}
	return time.Duration(n.Int64())
}

// Classifier reports whether an error is worth retrying.
type Classifier func(error) bool

// AnyOf retries when any of the classifiers does.
func AnyOf(cs ...Classifier) Classifier {
	return func(err error) bool {
		for _, c := range cs {
			if c(err) {
				return true
			}
		}
		return false
	}
}

// StatusIn builds a classifier from a function that extracts an HTTP status
// code from an error. The extractor returns false when the error carries no
// status.
func StatusIn(status func(error) (int, bool), codes ...int) Classifier {
	return func(err error) bool {
		code, ok := status(err)
		if !ok {
			return false
		}
		for _, c := range codes {
			if code == c {
				return true
			}
		}
		return false
	}
}

// Do calls fn until it succeeds, returns an error the classifier rejects, the
// retries are exhausted, or ctx is done. operation names the call in logs and
// in the final error.
func Do[T any](ctx context.Context, cfg Config, operation string, retryable Classifier, fn func() (T, error)) (T, error) {
	var (
		out T
		err error
	)
	for attempt := 0; ; attempt++ {
		out, err = fn()
		if err == nil || !retryable(err) {
			return out, err
		}
		if attempt >= cfg.MaxRetries {
			return out, fmt.Errorf("%s failed after %d retries: %w", operation, cfg.MaxRetries, err)
		}

		wait := cfg.Backoff(attempt) + cfg.jitter()
		clog.FromContext(ctx).With(
			"operation", operation,
			"attempt", attempt+1,
			"max_retries", cfg.MaxRetries,
			"backoff", wait,
			"error", err.Error(),
		).Warn("Retryable error, backing off")

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return out, ctx.Err()
		case <-t.C:
		}
	}
}
