/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package clonemanager

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"chainguard.dev/prbot/reconcilers/githubreconciler"
	"golang.org/x/oauth2"
)

// Meta caches one Manager per owner/repo so clones are only reused within
// a repository.
type Meta struct {
	tokenSource oauth2.TokenSource

	mu       sync.RWMutex
	managers map[string]*Manager
}

// NewMeta creates a Meta whose managers authenticate with tokenSource.
func NewMeta(tokenSource oauth2.TokenSource) (*Meta, error) {
	if tokenSource == nil {
		return nil, errors.New("token source cannot be nil")
	}
	return &Meta{
		tokenSource: tokenSource,
		managers:    make(map[string]*Manager),
	}, nil
}

// Get returns the Manager for res's repository, creating it on first use.
func (m *Meta) Get(res *githubreconciler.Resource) (*Manager, error) {
	key := res.Owner + "/" + res.Repo

	m.mu.RLock()
	mgr, ok := m.managers[key]
	m.mu.RUnlock()
	if ok {
		return mgr, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if mgr, ok := m.managers[key]; ok {
		return mgr, nil
	}

	mgr, err := New(m.tokenSource)
	if err != nil {
		return nil, fmt.Errorf("create clone manager: %w", err)
	}
	m.managers[key] = mgr
	return mgr, nil
}

// Lease leases a clone of res from its repository's Manager.
func (m *Meta) Lease(ctx context.Context, res *githubreconciler.Resource) (*Lease, error) {
	mgr, err := m.Get(res)
	if err != nil {
		return nil, err
	}
	return mgr.Lease(ctx, res)
}
