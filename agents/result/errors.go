/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package result

import (
	"errors"
	"fmt"
)

// GenerationError reports that a model call for Task failed or produced
// output that could not be decoded or validated.
type GenerationError struct {
	Task string
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s generation failed: %v", e.Task, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Generation wraps err as a GenerationError for task. A nil err stays nil and
// an existing GenerationError is returned as is.
func Generation(task string, err error) error {
	if err == nil {
		return nil
	}
	if IsGeneration(err) {
		return err
	}
	return &GenerationError{Task: task, Err: err}
}

// IsGeneration reports whether err carries a GenerationError.
func IsGeneration(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}
