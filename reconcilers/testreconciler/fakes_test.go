/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package testreconciler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"chainguard.dev/prbot/agents/result"
	"chainguard.dev/prbot/agents/testagent"
	"chainguard.dev/prbot/reconcilers/githubreconciler"
	"chainguard.dev/prbot/reconcilers/githubreconciler/collector"
	"chainguard.dev/prbot/reconcilers/githubreconciler/repo"
	"chainguard.dev/prbot/reconcilers/testreconciler/runner"
)

var testResource = &githubreconciler.Resource{
	Owner:   "octo",
	Repo:    "app",
	Number:  7,
	Title:   "Add greeting",
	HeadRef: "feature",
}

type write struct {
	op      string
	path    string
	message string
	content string
}

// fakeRepo is an in-memory branch plus comment thread.
type fakeRepo struct {
	mu        sync.Mutex
	files     map[string]string
	shas      map[string]string
	truncated map[string]bool // served without content, like files over 1 MB
	version   int
	writes    []write
	failOn    map[string]error // keyed by "op path"

	comments map[int64]string
	edits    []string
	nextID   int64
}

func newFakeRepo(files map[string]string) *fakeRepo {
	r := &fakeRepo{
		files:    make(map[string]string),
		shas:     make(map[string]string),
		failOn:   make(map[string]error),
		comments: make(map[int64]string),
	}
	for p, c := range files {
		r.put(p, c)
	}
	return r
}

func (r *fakeRepo) put(path, content string) {
	r.version++
	r.files[path] = content
	r.shas[path] = fmt.Sprintf("sha-%d", r.version)
}

func (r *fakeRepo) fail(op, path string) error {
	return r.failOn[op+" "+path]
}

func (r *fakeRepo) snapshot() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.files))
	for k, v := range r.files {
		out[k] = v
	}
	return out
}

func (r *fakeRepo) writesFor(op string) []write {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []write
	for _, w := range r.writes {
		if w.op == op {
			out = append(out, w)
		}
	}
	return out
}

func (r *fakeRepo) GetFile(_ context.Context, _ *githubreconciler.Resource, path string) (*repo.Blob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("get", path); err != nil {
		return nil, err
	}
	c, ok := r.files[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, repo.ErrNotFound)
	}
	if r.truncated[path] {
		return &repo.Blob{Path: path, SHA: r.shas[path], Size: len(c), Truncated: true}, nil
	}
	return &repo.Blob{Path: path, SHA: r.shas[path], Content: c}, nil
}

func (r *fakeRepo) Exists(ctx context.Context, res *githubreconciler.Resource, path string) (bool, error) {
	_, err := r.GetFile(ctx, res, path)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

func (r *fakeRepo) CreateFile(_ context.Context, _ *githubreconciler.Resource, path, message, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("create", path); err != nil {
		return err
	}
	if _, ok := r.files[path]; ok {
		return fmt.Errorf("%s already exists", path)
	}
	r.put(path, content)
	r.writes = append(r.writes, write{op: "create", path: path, message: message, content: content})
	return nil
}

func (r *fakeRepo) UpdateFile(_ context.Context, _ *githubreconciler.Resource, path, message, content, sha string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("update", path); err != nil {
		return err
	}
	if r.shas[path] != sha {
		return fmt.Errorf("%s: sha %q does not match %q", path, sha, r.shas[path])
	}
	r.put(path, content)
	r.writes = append(r.writes, write{op: "update", path: path, message: message, content: content})
	return nil
}

func (r *fakeRepo) DeleteFile(_ context.Context, _ *githubreconciler.Resource, path, message, sha string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("delete", path); err != nil {
		return err
	}
	if r.shas[path] != sha {
		return fmt.Errorf("%s: sha %q does not match %q", path, sha, r.shas[path])
	}
	delete(r.files, path)
	delete(r.shas, path)
	r.writes = append(r.writes, write{op: "delete", path: path, message: message})
	return nil
}

func (r *fakeRepo) CreateComment(_ context.Context, _ *githubreconciler.Resource, body string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("comment", ""); err != nil {
		return 0, err
	}
	r.nextID++
	r.comments[r.nextID] = body
	return r.nextID, nil
}

func (r *fakeRepo) EditComment(_ context.Context, _ *githubreconciler.Resource, id int64, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.comments[id]; !ok {
		return fmt.Errorf("comment %d: %w", id, repo.ErrNotFound)
	}
	r.comments[id] = body
	r.edits = append(r.edits, body)
	return nil
}

// fakeCheckout mirrors the branch only when synced, like a real clone.
type fakeCheckout struct {
	repo     *fakeRepo
	local    map[string]string
	syncs    int
	syncErr  error
	returned bool
}

func (c *fakeCheckout) Sync(context.Context) error {
	c.syncs++
	if c.syncErr != nil {
		return c.syncErr
	}
	c.local = c.repo.snapshot()
	return nil
}

func (c *fakeCheckout) WorkingTree() string { return "/work" }

func (c *fakeCheckout) SHA() string { return fmt.Sprintf("sync-%d", c.syncs) }

func (c *fakeCheckout) Return(context.Context) error {
	c.returned = true
	return nil
}

// fakeRunner passes a file whose local content contains "PASS".
type fakeRunner struct {
	checkout *fakeCheckout
	runs     []string
}

func (f *fakeRunner) Run(_ context.Context, dir, file string) runner.Result {
	f.runs = append(f.runs, file)
	content, ok := f.checkout.local[file]
	switch {
	case !ok:
		return runner.Result{Output: fmt.Sprintf("test file %s not found", file)}
	case strings.Contains(content, "PASS"):
		return runner.Result{Passed: true, Output: "1 passed"}
	}
	return runner.Result{Output: fmt.Sprintf("FAILED %s::test - run %d", file, len(f.runs))}
}

// fakeAgent returns canned model outputs.
type fakeAgent struct {
	decision  testagent.GatingDecision
	proposals []testagent.Proposal
	fixes     []result.Optional[string]
	fixErr    error

	proposeCalls int
	fixRequests  []testagent.FixRequest
}

func (a *fakeAgent) Decide(context.Context, *testagent.GatingRequest) testagent.GatingDecision {
	return a.decision
}

func (a *fakeAgent) Propose(context.Context, *testagent.ProposalRequest) []testagent.Proposal {
	a.proposeCalls++
	return a.proposals
}

func (a *fakeAgent) Fix(_ context.Context, req *testagent.FixRequest) (result.Optional[string], error) {
	a.fixRequests = append(a.fixRequests, *req)
	if a.fixErr != nil {
		return result.None[string](), a.fixErr
	}
	if len(a.fixes) == 0 {
		return result.None[string](), nil
	}
	fix := a.fixes[0]
	a.fixes = a.fixes[1:]
	return fix, nil
}

type fakeCollector struct {
	snap *collector.Snapshot
	err  error
}

func (c *fakeCollector) Collect(context.Context, *githubreconciler.Resource) (*collector.Snapshot, error) {
	return c.snap, c.err
}

type memoryArchive struct {
	records map[string]any
}

func (m *memoryArchive) Put(_ context.Context, name string, v any) error {
	if m.records == nil {
		m.records = make(map[string]any)
	}
	m.records[name] = v
	return nil
}

func proposal(file string, actions ...testagent.Action) testagent.Proposal {
	return testagent.Proposal{
		Filename:    file,
		TestType:    testagent.Unit,
		TestContent: "def test_it():\n    assert broken()\n",
		Actions:     actions,
	}
}

func create() testagent.Action { return testagent.Action{Kind: testagent.Create} }

func update() testagent.Action { return testagent.Action{Kind: testagent.Update} }

func rename(old string) testagent.Action {
	return testagent.Action{Kind: testagent.Rename, OldFilename: old}
}
