/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package clonemanager provides pooled git clones of pull request branches
// for running tests locally. A Meta hands out one Manager per repository;
// a Manager leases clones checked out at a branch head. Leases can Sync to
// pick up commits pushed through the API since the lease was taken, which
// is how the repair loop avoids running stale test files.
//
// Callers acquire a lease per pipeline run and Return it when done; the
// working tree is reset and the clone goes back to the pool, avoiding a
// fresh clone for every run.
package clonemanager
