/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package testreconciler

import (
	"context"
	"errors"
	"testing"

	"chainguard.dev/prbot/agents/testagent"
	"chainguard.dev/prbot/reconcilers/githubreconciler/collector"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestApplyCreate(t *testing.T) {
	const file = "tests/unit/test_foo.py"

	tests := []struct {
		name       string
		remote     map[string]string
		existing   []collector.TestFile
		wantWrites []write
	}{{
		name: "new file",
		wantWrites: []write{{
			op:      "create",
			path:    file,
			message: "Add tests: " + file,
			content: "def test_it():\n    assert broken()\n",
		}},
	}, {
		name:     "in existing tests snapshot",
		remote:   map[string]string{file: "old"},
		existing: []collector.TestFile{{Path: file, Content: "old"}},
	}, {
		name:   "created on the branch after the snapshot",
		remote: map[string]string{file: "pushed meanwhile"},
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newFakeRepo(tt.remote)
			errs := NewApplier(r).Apply(context.Background(), testResource, []testagent.Proposal{proposal(file, create())}, tt.existing)
			if len(errs) != 0 {
				t.Fatalf("Apply() errors = %v", errs)
			}
			if diff := cmp.Diff(tt.wantWrites, r.writes, cmp.AllowUnexported(write{})); diff != "" {
				t.Errorf("writes mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestApplyIdempotentCreate(t *testing.T) {
	const file = "tests/unit/test_foo.py"
	r := newFakeRepo(nil)
	a := NewApplier(r)
	skipped := testutil.ToFloat64(mutationsTotal.WithLabelValues("create", "skipped"))

	props := []testagent.Proposal{proposal(file, create()), proposal(file, create())}
	if errs := a.Apply(context.Background(), testResource, props, nil); len(errs) != 0 {
		t.Fatalf("Apply() errors = %v", errs)
	}
	// A later run sees the file in its snapshot.
	existing := []collector.TestFile{{Path: file}}
	if errs := a.Apply(context.Background(), testResource, props[:1], existing); len(errs) != 0 {
		t.Fatalf("Apply() errors = %v", errs)
	}

	if got := len(r.writesFor("create")); got != 1 {
		t.Errorf("creates = %d, want 1", got)
	}
	if got := testutil.ToFloat64(mutationsTotal.WithLabelValues("create", "skipped")) - skipped; got != 2 {
		t.Errorf("skipped creates = %v, want 2", got)
	}
}

func TestApplyUpdate(t *testing.T) {
	const file = "tests/unit/test_foo.py"

	r := newFakeRepo(map[string]string{file: "old"})
	p := proposal(file, update())
	if errs := NewApplier(r).Apply(context.Background(), testResource, []testagent.Proposal{p}, nil); len(errs) != 0 {
		t.Fatalf("Apply() errors = %v", errs)
	}
	want := []write{{op: "update", path: file, message: "Update tests: " + file, content: p.TestContent}}
	if diff := cmp.Diff(want, r.writes, cmp.AllowUnexported(write{})); diff != "" {
		t.Errorf("writes mismatch (-want +got):\n%s", diff)
	}

	// Updating a file that does not exist writes it.
	r = newFakeRepo(nil)
	if errs := NewApplier(r).Apply(context.Background(), testResource, []testagent.Proposal{p}, nil); len(errs) != 0 {
		t.Fatalf("Apply() errors = %v", errs)
	}
	if got := r.snapshot()[file]; got != p.TestContent {
		t.Errorf("content = %q, want %q", got, p.TestContent)
	}
}

func TestApplyRename(t *testing.T) {
	const (
		old  = "tests/foo_test.py"
		file = "tests/unit/test_foo.py"
	)

	tests := []struct {
		name       string
		remote     map[string]string
		wantWrites []write
	}{{
		name:   "new target",
		remote: map[string]string{old: "old"},
		wantWrites: []write{
			{op: "create", path: file, message: "Renaming " + old + " to " + file, content: "def test_it():\n    assert broken()\n"},
			{op: "delete", path: old, message: "Removed old file " + old + " after renaming to " + file},
		},
	}, {
		name:   "existing target is updated",
		remote: map[string]string{old: "old", file: "stale"},
		wantWrites: []write{
			{op: "update", path: file, message: "Renaming " + old + " to " + file, content: "def test_it():\n    assert broken()\n"},
			{op: "delete", path: old, message: "Removed old file " + old + " after renaming to " + file},
		},
	}, {
		name: "old file already gone",
		wantWrites: []write{
			{op: "create", path: file, message: "Renaming " + old + " to " + file, content: "def test_it():\n    assert broken()\n"},
		},
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newFakeRepo(tt.remote)
			errs := NewApplier(r).Apply(context.Background(), testResource, []testagent.Proposal{proposal(file, rename(old))}, nil)
			if len(errs) != 0 {
				t.Fatalf("Apply() errors = %v", errs)
			}
			if diff := cmp.Diff(tt.wantWrites, r.writes, cmp.AllowUnexported(write{})); diff != "" {
				t.Errorf("writes mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestApplyRenameNotAtomic(t *testing.T) {
	const (
		old  = "tests/foo_test.py"
		file = "tests/unit/test_foo.py"
	)
	r := newFakeRepo(map[string]string{old: "old"})
	r.failOn["delete "+old] = errors.New("boom")

	errs := NewApplier(r).Apply(context.Background(), testResource, []testagent.Proposal{proposal(file, rename(old))}, nil)
	if len(errs) != 1 {
		t.Fatalf("Apply() errors = %d, want 1", len(errs))
	}
	files := r.snapshot()
	if _, ok := files[old]; !ok {
		t.Error("old file missing, want both files left on the branch")
	}
	if _, ok := files[file]; !ok {
		t.Error("new file missing, want both files left on the branch")
	}
}

func TestApplyContinuesOnError(t *testing.T) {
	boom := errors.New("boom")
	r := newFakeRepo(map[string]string{"tests/unit/test_b.py": "old"})
	r.failOn["create tests/unit/test_a.py"] = boom
	r.failOn["get tests/unit/test_b.py"] = boom

	props := []testagent.Proposal{
		proposal("tests/unit/test_a.py", create()),
		proposal("tests/unit/test_b.py", update()),
		proposal("tests/unit/test_c.py", create()),
	}
	errs := NewApplier(r).Apply(context.Background(), testResource, props, nil)

	if len(errs) != 2 {
		t.Fatalf("Apply() errors = %d, want 2: %v", len(errs), errs)
	}
	var merr *MutationError
	if !errors.As(error(errs[0]), &merr) || merr.Action != testagent.Create || merr.Path != "tests/unit/test_a.py" {
		t.Errorf("errs[0] = %v, want a create error for test_a.py", errs[0])
	}
	if !errors.Is(errs[1], boom) {
		t.Errorf("errs[1] = %v, want it to wrap %v", errs[1], boom)
	}
	if got := r.writesFor("create"); len(got) != 1 || got[0].path != "tests/unit/test_c.py" {
		t.Errorf("creates = %+v, want only test_c.py", got)
	}
}

func TestApplyCumulativeActions(t *testing.T) {
	const (
		old  = "tests/test_legacy.py"
		file = "tests/unit/test_foo.py"
	)
	r := newFakeRepo(map[string]string{old: "old"})

	p := proposal(file, rename(old), update())
	if errs := NewApplier(r).Apply(context.Background(), testResource, []testagent.Proposal{p}, nil); len(errs) != 0 {
		t.Fatalf("Apply() errors = %v", errs)
	}

	var ops []string
	for _, w := range r.writes {
		ops = append(ops, w.op+" "+w.path)
	}
	want := []string{"create " + file, "delete " + old, "update " + file}
	if diff := cmp.Diff(want, ops); diff != "" {
		t.Errorf("ops mismatch (-want +got):\n%s", diff)
	}
	if got := r.snapshot()[file]; got != p.TestContent {
		t.Errorf("content = %q, want the proposal content", got)
	}
}
