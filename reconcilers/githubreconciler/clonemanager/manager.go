/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package clonemanager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"chainguard.dev/prbot/reconcilers/githubreconciler"
	"github.com/chainguard-dev/clog"
	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"golang.org/x/oauth2"
)

const cloneDirPrefix = "clonemanager-clone-"

// repoURL resolves the remote git URL for a resource. Tests point it at
// local repositories.
var repoURL = defaultRemoteURL

// Manager owns a pool of clones of a single repository.
type Manager struct {
	tokenSource oauth2.TokenSource

	mu        sync.Mutex
	available []*clone
}

type clone struct {
	path string
	repo *git.Repository
}

// Lease is a clone checked out at a resource's head ref.
type Lease struct {
	manager *Manager
	clone   *clone
	res     *githubreconciler.Resource
	sha     string
}

// New constructs a Manager. The token source must allow cloning the
// repository.
func New(tokenSource oauth2.TokenSource) (*Manager, error) {
	if tokenSource == nil {
		return nil, errors.New("token source cannot be nil")
	}
	return &Manager{tokenSource: tokenSource}, nil
}

// Lease returns a clone checked out at res.HeadRef. Callers must Return it.
func (m *Manager) Lease(ctx context.Context, res *githubreconciler.Resource) (*Lease, error) {
	if err := res.Validate(); err != nil {
		return nil, err
	}

	cl, err := m.acquireClone(ctx, res)
	if err != nil {
		return nil, err
	}

	l := &Lease{manager: m, clone: cl, res: res}
	if err := l.Sync(ctx); err != nil {
		clog.FromContext(ctx).Warnf("Discarding clone after sync failure: %v", err)
		m.discardClone(cl)
		return nil, err
	}
	return l, nil
}

// acquireClone takes from the front of the pool and releaseClone appends to
// the back, so a clone that just misbehaved is the last to be reused.
func (m *Manager) acquireClone(ctx context.Context, res *githubreconciler.Resource) (*clone, error) {
	m.mu.Lock()
	if n := len(m.available); n > 0 {
		cl := m.available[0]
		m.available = m.available[1:]
		m.mu.Unlock()
		return cl, nil
	}
	m.mu.Unlock()

	return m.createClone(ctx, res)
}

func (m *Manager) createClone(ctx context.Context, res *githubreconciler.Resource) (*clone, error) {
	dir, err := os.MkdirTemp("", cloneDirPrefix)
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}

	remote := repoURL(res)
	clog.FromContext(ctx).Infof("Cloning repository %s into %s", remote, dir)

	auth, err := m.authForRemote()
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("getting token: %w", err)
	}

	repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:           remote,
		ReferenceName: plumbing.NewBranchReferenceName(res.HeadRef),
		SingleBranch:  true,
		Auth:          auth,
	})
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("cloning repository: %w", err)
	}

	return &clone{path: dir, repo: repo}, nil
}

// Sync fetches the head ref and force checks out its tip, discarding local
// changes. It is the local equivalent of "git pull" for a branch that is
// only ever written through the API.
func (l *Lease) Sync(ctx context.Context) error {
	if l.clone == nil {
		return errors.New("lease already returned")
	}
	repo := l.clone.repo
	ref := l.res.HeadRef

	if err := l.manager.resetClone(l.clone); err != nil {
		return err
	}

	auth, err := l.manager.authForRemote()
	if err != nil {
		return fmt.Errorf("getting token: %w", err)
	}

	clog.FromContext(ctx).Infof("Fetching ref %s", ref)
	err = repo.FetchContext(ctx, &git.FetchOptions{
		RefSpecs: []gitconfig.RefSpec{gitconfig.RefSpec(fmt.Sprintf("+refs/heads/%s:refs/remotes/origin/%s", ref, ref))},
		Auth:     auth,
		Force:    true,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("fetching ref %s: %w", ref, err)
	}

	remoteRef, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", ref), true)
	if err != nil {
		return fmt.Errorf("getting remote ref %s: %w", ref, err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}
	if err := worktree.Checkout(&git.CheckoutOptions{Hash: remoteRef.Hash(), Force: true}); err != nil {
		return fmt.Errorf("checking out ref %s: %w", ref, err)
	}

	l.sha = remoteRef.Hash().String()
	clog.FromContext(ctx).With("sha", l.sha).Debugf("Checked out %s", ref)
	return nil
}

func (m *Manager) resetClone(cl *clone) error {
	worktree, err := cl.repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}

	if err := worktree.Reset(&git.ResetOptions{Mode: git.HardReset}); err != nil {
		return fmt.Errorf("resetting worktree: %w", err)
	}

	if err := worktree.Clean(&git.CleanOptions{Dir: true}); err != nil {
		return fmt.Errorf("cleaning worktree: %w", err)
	}

	return nil
}

func (m *Manager) releaseClone(cl *clone) {
	m.mu.Lock()
	m.available = append(m.available, cl)
	m.mu.Unlock()
}

func (m *Manager) discardClone(cl *clone) {
	os.RemoveAll(cl.path)
}

func (m *Manager) authForRemote() (*githttp.BasicAuth, error) {
	token, err := m.tokenSource.Token()
	if err != nil {
		return nil, err
	}

	return &githttp.BasicAuth{
		Username: "unused-when-using-access-tokens",
		Password: token.AccessToken,
	}, nil
}

func defaultRemoteURL(res *githubreconciler.Resource) string {
	return fmt.Sprintf("https://github.com/%s/%s", res.Owner, res.Repo)
}

// ID returns a clone ID based on the working tree path.
func (l *Lease) ID() string {
	return filepath.Base(l.clone.path)
}

// WorkingTree returns the absolute path of the working directory.
func (l *Lease) WorkingTree() string {
	return l.clone.path
}

// SHA returns the commit checked out by the last Sync.
func (l *Lease) SHA() string {
	return l.sha
}

// Return resets the working tree and puts the clone back in the pool. The
// lease is invalid afterwards.
func (l *Lease) Return(_ context.Context) error {
	if l.clone == nil {
		return nil
	}
	cl := l.clone
	l.clone = nil
	l.sha = ""

	if err := l.manager.resetClone(cl); err != nil {
		l.manager.discardClone(cl)
		return err
	}
	l.manager.releaseClone(cl)
	return nil
}
