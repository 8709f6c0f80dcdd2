/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package githubreconciler holds what the pull request pipelines share: the
// Resource being reconciled and GitHub authentication. Its subpackages
// provide the REST and GraphQL client (repo), the PR snapshot (collector)
// and local clones for running tests (clonemanager).
package githubreconciler
