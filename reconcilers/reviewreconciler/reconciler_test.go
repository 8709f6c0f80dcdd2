/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package reviewreconciler

import (
	"context"
	"errors"
	"strings"
	"testing"

	"chainguard.dev/prbot/agents/result"
	"chainguard.dev/prbot/agents/reviewagent"
	"chainguard.dev/prbot/reconcilers/githubreconciler"
	"chainguard.dev/prbot/reconcilers/githubreconciler/collector"
	"github.com/google/go-cmp/cmp"
)

var res = &githubreconciler.Resource{Owner: "octo", Repo: "app", Number: 3, Title: "Refactor", HeadRef: "refactor"}

type fakeChanges struct {
	files   []collector.ChangedFile
	commits []collector.Commit
	err     error
}

func (f *fakeChanges) Changes(context.Context, *githubreconciler.Resource) ([]collector.ChangedFile, []collector.Commit, error) {
	return f.files, f.commits, f.err
}

type fakeReviewer struct {
	review *reviewagent.Review
	err    error
	got    *reviewagent.Request
}

func (f *fakeReviewer) Review(_ context.Context, req *reviewagent.Request) (*reviewagent.Review, error) {
	f.got = req
	return f.review, f.err
}

type fakeComments struct {
	bodies  []string
	edits   map[int64]string
	postErr error
}

func (f *fakeComments) CreateComment(_ context.Context, _ *githubreconciler.Resource, body string) (int64, error) {
	if f.postErr != nil {
		return 0, f.postErr
	}
	f.bodies = append(f.bodies, body)
	return int64(len(f.bodies)), nil
}

func (f *fakeComments) EditComment(_ context.Context, _ *githubreconciler.Resource, id int64, body string) error {
	if f.edits == nil {
		f.edits = make(map[int64]string)
	}
	f.edits[id] = body
	return nil
}

func TestReconcile(t *testing.T) {
	big := "ignored"
	changes := &fakeChanges{
		files: []collector.ChangedFile{
			{Filename: "app.py", Status: "modified", Patch: "+x"},
			{Filename: "dump.sql", Status: "added", Content: &big, Excluded: true},
		},
		commits: []collector.Commit{{SHA: "a", Message: "refactor app"}},
	}
	reviewer := &fakeReviewer{review: &reviewagent.Review{
		Summary:      "Looks good.",
		FileAnalyses: []reviewagent.Analysis{{FilePath: "app.py", Analysis: "Clear."}},
		Suggestions:  []string{"Add a docstring."},
	}}
	comments := &fakeComments{}

	r, err := New(changes, reviewer, comments)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := r.Reconcile(context.Background(), res); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if diff := cmp.Diff([]string{Placeholder}, comments.bodies); diff != "" {
		t.Errorf("placeholder mismatch (-want +got):\n%s", diff)
	}
	if got := comments.edits[1]; !strings.HasPrefix(got, "# Pull Request Review") || !strings.Contains(got, "Add a docstring.") {
		t.Errorf("edited body = %q, want the rendered review", got)
	}
	if reviewer.got.Title != "Refactor" {
		t.Errorf("Title = %q, want %q", reviewer.got.Title, "Refactor")
	}
	if diff := cmp.Diff([]string{"refactor app"}, reviewer.got.Commits); diff != "" {
		t.Errorf("commits mismatch (-want +got):\n%s", diff)
	}
	if excluded := reviewer.got.ChangedFiles[1]; excluded.Content != nil || excluded.Patch != "" {
		t.Errorf("excluded file carries content: %+v", excluded)
	}
}

func TestReconcileErrors(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name     string
		changes  *fakeChanges
		reviewer *fakeReviewer
	}{{
		name:     "collect fails",
		changes:  &fakeChanges{err: boom},
		reviewer: &fakeReviewer{},
	}, {
		name:     "model fails",
		changes:  &fakeChanges{},
		reviewer: &fakeReviewer{err: result.Generation("code_review", boom)},
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comments := &fakeComments{}
			r, err := New(tt.changes, tt.reviewer, comments)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if err := r.Reconcile(context.Background(), res); !errors.Is(err, boom) {
				t.Errorf("Reconcile() = %v, want %v", err, boom)
			}
			if got := comments.edits[1]; got != ErrorBody {
				t.Errorf("edited body = %q, want %q", got, ErrorBody)
			}
		})
	}
}

func TestReconcilePlaceholderFails(t *testing.T) {
	comments := &fakeComments{postErr: errors.New("forbidden")}
	reviewer := &fakeReviewer{}
	r, err := New(&fakeChanges{}, reviewer, comments)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := r.Reconcile(context.Background(), res); err == nil {
		t.Fatal("Reconcile() = nil, want error")
	}
	if reviewer.got != nil {
		t.Error("reviewer called without a placeholder")
	}
}
