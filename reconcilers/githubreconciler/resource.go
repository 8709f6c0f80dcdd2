/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubreconciler

import (
	"errors"
	"fmt"
)

// Resource identifies a pull request and the branch the pipelines write to.
type Resource struct {
	Owner   string
	Repo    string
	Number  int
	Title   string
	HeadRef string
	HeadSHA string
}

// String returns "owner/repo#number".
func (r *Resource) String() string {
	return fmt.Sprintf("%s/%s#%d", r.Owner, r.Repo, r.Number)
}

// Validate checks the fields every pipeline needs.
func (r *Resource) Validate() error {
	switch {
	case r == nil:
		return errors.New("resource cannot be nil")
	case r.Owner == "":
		return errors.New("resource owner cannot be empty")
	case r.Repo == "":
		return errors.New("resource repo cannot be empty")
	case r.Number <= 0:
		return fmt.Errorf("invalid pull request number %d", r.Number)
	case r.HeadRef == "":
		return errors.New("resource head ref cannot be empty")
	}
	return nil
}
