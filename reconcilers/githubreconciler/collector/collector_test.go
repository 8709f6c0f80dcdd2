/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"chainguard.dev/prbot/reconcilers/githubreconciler"
	"chainguard.dev/prbot/reconcilers/githubreconciler/repo"
	"github.com/google/go-cmp/cmp"
)

type fakeSource struct {
	files     []repo.File
	commits   []repo.Commit
	blobs     map[string]string
	truncated map[string]int
	dirs      map[string][]repo.Entry
	failOn    string

	mu      sync.Mutex
	fetched []string
}

func (f *fakeSource) ListFiles(context.Context, *githubreconciler.Resource) ([]repo.File, error) {
	return f.files, nil
}

func (f *fakeSource) ListCommits(context.Context, *githubreconciler.Resource) ([]repo.Commit, error) {
	return f.commits, nil
}

func (f *fakeSource) GetFile(_ context.Context, _ *githubreconciler.Resource, path string) (*repo.Blob, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, path)
	f.mu.Unlock()
	if path == f.failOn {
		return nil, errors.New("boom")
	}
	if size, ok := f.truncated[path]; ok {
		return &repo.Blob{Path: path, SHA: "sha-" + path, Size: size, Truncated: true}, nil
	}
	content, ok := f.blobs[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, repo.ErrNotFound)
	}
	return &repo.Blob{Path: path, SHA: "sha-" + path, Content: content}, nil
}

func (f *fakeSource) ListDir(_ context.Context, _ *githubreconciler.Resource, path string) ([]repo.Entry, error) {
	if path == f.failOn {
		return nil, errors.New("boom")
	}
	entries, ok := f.dirs[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, repo.ErrNotFound)
	}
	return entries, nil
}

var res = &githubreconciler.Resource{Owner: "o", Repo: "r", Number: 1, HeadRef: "feature"}

func ptr(s string) *string { return &s }

func TestCollect(t *testing.T) {
	big := strings.Repeat("x", 100)
	src := &fakeSource{
		files: []repo.File{
			{Filename: "app/small.py", Status: "modified", Patch: "@@ -1,2 +1,3 @@\n a\n-b\n+c\n+d", Additions: 2, Deletions: 1},
			{Filename: "app/big.py", Status: "added", Additions: 1},
			{Filename: "app/edge.py", Status: "added"},
			{Filename: "app/gone.py", Status: "removed", Deletions: 4},
		},
		commits: []repo.Commit{{SHA: "a1", Message: "first"}, {SHA: "b2", Message: "second"}},
		blobs: map[string]string{
			"app/small.py":                "print('hi')\n",
			"app/big.py":                  big,
			"app/edge.py":                 strings.Repeat("y", 50),
			"tests/unit/test_small.py":    "def test_small(): pass\n",
			"tests/integration/test_x.py": "def test_x(): pass\n",
			"tests/fixtures/data.json":    big,
		},
		dirs: map[string][]repo.Entry{
			"tests": {
				{Path: "tests/unit", Type: repo.EntryDir},
				{Path: "tests/integration", Type: repo.EntryDir},
				{Path: "tests/fixtures", Type: repo.EntryDir},
			},
			"tests/unit":        {{Path: "tests/unit/test_small.py", Type: repo.EntryFile}},
			"tests/integration": {{Path: "tests/integration/test_x.py", Type: repo.EntryFile}},
			"tests/fixtures":    {{Path: "tests/fixtures/data.json", Type: repo.EntryFile}},
		},
	}
	c, err := New(src, WithThreshold(50))
	if err != nil {
		t.Fatalf("New() = %v", err)
	}

	got, err := c.Collect(context.Background(), res)
	if err != nil {
		t.Fatalf("Collect() = %v", err)
	}

	want := &Snapshot{
		Files: []ChangedFile{
			{Filename: "app/small.py", Status: "modified", Patch: "@@ -1,2 +1,3 @@\n a\n-b\n+c\n+d", Additions: 2, Deletions: 1,
				Content: ptr("print('hi')\n"), Hunks: []Hunk{{OldStart: 1, OldLines: 2, NewStart: 1, NewLines: 3}}},
			{Filename: "app/big.py", Status: "added", Additions: 1, Excluded: true},
			{Filename: "app/edge.py", Status: "added", Excluded: true},
			{Filename: "app/gone.py", Status: "removed", Deletions: 4},
		},
		Commits: []Commit{{SHA: "a1", Message: "first"}, {SHA: "b2", Message: "second"}},
		Tests: []TestFile{
			{Path: "tests/unit/test_small.py", Content: "def test_small(): pass\n"},
			{Path: "tests/integration/test_x.py", Content: "def test_x(): pass\n"},
			{Path: "tests/fixtures/data.json", Excluded: true},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Collect() (-want +got):\n%s", diff)
	}

	for _, p := range src.fetched {
		if p == "app/gone.py" {
			t.Error("fetched content of a removed file")
		}
	}
}

func TestExcludedAtThreshold(t *testing.T) {
	for _, tt := range []struct {
		size     int
		excluded bool
	}{
		{size: DefaultThreshold - 1, excluded: false},
		{size: DefaultThreshold, excluded: true},
		{size: DefaultThreshold + 1, excluded: true},
	} {
		src := &fakeSource{
			files: []repo.File{{Filename: "a.py", Status: "modified"}},
			blobs: map[string]string{"a.py": strings.Repeat("z", tt.size)},
		}
		c, err := New(src)
		if err != nil {
			t.Fatalf("New() = %v", err)
		}
		files, _, err := c.Changes(context.Background(), res)
		if err != nil {
			t.Fatalf("Changes() = %v", err)
		}
		if got := files[0].Excluded; got != tt.excluded {
			t.Errorf("size %d: Excluded = %v, want %v", tt.size, got, tt.excluded)
		}
		if tt.excluded && files[0].Content != nil {
			t.Errorf("size %d: excluded file kept its content", tt.size)
		}
	}
}

func TestCollectExcludesUnservedFiles(t *testing.T) {
	src := &fakeSource{
		files: []repo.File{
			{Filename: "data/big.json", Status: "modified", Patch: "@@ -1 +1 @@\n-a\n+b"},
			{Filename: "app/a.py", Status: "added"},
		},
		blobs: map[string]string{"app/a.py": "a = 1\n"},
		truncated: map[string]int{
			"data/big.json":          2000000,
			"tests/fixtures/big.txt": 1500000,
		},
		dirs: map[string][]repo.Entry{"tests": {{Path: "tests/fixtures/big.txt", Type: repo.EntryFile}}},
	}
	c, err := New(src)
	if err != nil {
		t.Fatalf("New() = %v", err)
	}

	got, err := c.Collect(context.Background(), res)
	if err != nil {
		t.Fatalf("Collect() = %v", err)
	}
	if f := got.Files[0]; !f.Excluded || f.Content != nil {
		t.Errorf("large file = %+v, want excluded without content", f)
	}
	if f := got.Files[1]; f.Excluded || f.Content == nil {
		t.Errorf("small file = %+v, want included with content", f)
	}
	if diff := cmp.Diff([]TestFile{{Path: "tests/fixtures/big.txt", Excluded: true}}, got.Tests); diff != "" {
		t.Errorf("Tests (-want +got):\n%s", diff)
	}
}

func TestExistingTestsMissingRoot(t *testing.T) {
	c, err := New(&fakeSource{}, WithTestDir("checks"))
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	got, err := c.ExistingTests(context.Background(), res)
	if err != nil {
		t.Fatalf("ExistingTests() = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ExistingTests() = %v, want none", got)
	}
}

func TestCollectErrors(t *testing.T) {
	tests := []struct {
		name   string
		failOn string
	}{
		{name: "content fetch", failOn: "app/a.py"},
		{name: "test listing", failOn: "tests"},
		{name: "test fetch", failOn: "tests/test_a.py"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{
				files:  []repo.File{{Filename: "app/a.py", Status: "added"}},
				blobs:  map[string]string{"app/a.py": "a", "tests/test_a.py": "t"},
				dirs:   map[string][]repo.Entry{"tests": {{Path: "tests/test_a.py", Type: repo.EntryFile}}},
				failOn: tt.failOn,
			}
			c, err := New(src)
			if err != nil {
				t.Fatalf("New() = %v", err)
			}
			if _, err := c.Collect(context.Background(), res); err == nil {
				t.Error("Collect() = nil error, want error")
			}
		})
	}
}

func TestNewOptions(t *testing.T) {
	for name, opt := range map[string]Option{
		"empty dir":        WithTestDir(""),
		"zero threshold":   WithThreshold(0),
		"zero parallelism": WithParallelism(0),
	} {
		if _, err := New(&fakeSource{}, opt); err == nil {
			t.Errorf("New(%s) = nil error, want error", name)
		}
	}
	if _, err := New(nil); err == nil {
		t.Error("New(nil) = nil error, want error")
	}
}

func TestParseHunks(t *testing.T) {
	patch := "@@ -10,3 +10,4 @@ def f():\n     a = 1\n-    b = 2\n+    b = 3\n+    c = 4\n     return a\n@@ -40,2 +41,2 @@\n-x\n+y\n z"
	got := parseHunks("app/f.py", patch)
	want := []Hunk{
		{OldStart: 10, OldLines: 3, NewStart: 10, NewLines: 4},
		{OldStart: 40, OldLines: 2, NewStart: 41, NewLines: 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parseHunks() (-want +got):\n%s", diff)
	}
	if got := want[0].String(); got != "-10,3 +10,4" {
		t.Errorf("String() = %q", got)
	}
	if got := parseHunks("bin.png", ""); got != nil {
		t.Errorf("parseHunks(empty) = %v, want nil", got)
	}
}
