/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package repo is the GitHub collaborator of the pipelines: pull request
// files and commits, file contents and directory listings at a ref, file
// mutations on a branch, and issue comments. Every call waits on a shared
// rate limiter and retries rate limiting and transient server errors.
package repo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"chainguard.dev/prbot/agents/executor/retry"
	"chainguard.dev/prbot/reconcilers/githubreconciler"
	"github.com/google/go-github/v84/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/time/rate"
)

// ErrNotFound is returned when a path does not exist at the requested ref.
var ErrNotFound = errors.New("not found")

// File is a file changed by a pull request.
type File struct {
	Filename         string
	PreviousFilename string
	Status           string
	Patch            string
	Additions        int
	Deletions        int
}

// Commit is a commit of a pull request.
type Commit struct {
	SHA     string
	Message string
}

// Blob is a file at a ref. SHA is the blob SHA GitHub requires for updates
// and deletes. Truncated is set, and Content left empty, for files GitHub
// serves without content (over 1 MB).
type Blob struct {
	Path      string
	SHA       string
	Size      int
	Content   string
	Truncated bool
}

// EntryType distinguishes files from directories in a listing.
type EntryType string

const (
	EntryFile EntryType = "file"
	EntryDir  EntryType = "dir"
)

// Entry is one item of a directory listing.
type Entry struct {
	Path string
	Type EntryType
}

// Client wraps the REST and GraphQL APIs.
type Client struct {
	gh      *github.Client
	gql     *githubv4.Client
	limiter *rate.Limiter
	retry   retry.Config
}

// Option configures a Client.
type Option func(*Client) error

// WithRateLimit bounds the request rate across all calls of the client.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) error {
		if rps <= 0 || burst <= 0 {
			return fmt.Errorf("rate limit must be positive, got %v/s burst %d", rps, burst)
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		return nil
	}
}

// WithRetryConfig replaces the retry policy.
func WithRetryConfig(cfg retry.Config) Option {
	return func(c *Client) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		c.retry = cfg
		return nil
	}
}

// WithGraphQLClient overrides the GraphQL client, which otherwise shares
// the REST client's transport.
func WithGraphQLClient(gql *githubv4.Client) Option {
	return func(c *Client) error {
		if gql == nil {
			return errors.New("graphql client cannot be nil")
		}
		c.gql = gql
		return nil
	}
}

// New wraps gh.
func New(gh *github.Client, opts ...Option) (*Client, error) {
	if gh == nil {
		return nil, errors.New("github client cannot be nil")
	}
	c := &Client{
		gh:      gh,
		gql:     githubv4.NewClient(gh.Client()),
		limiter: rate.NewLimiter(rate.Inf, 1),
		retry:   defaultRetry(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}
	return c, nil
}

func defaultRetry() retry.Config {
	return retry.Config{
		MaxRetries:  3,
		BaseBackoff: 2 * time.Second,
		MaxBackoff:  30 * time.Second,
		MaxJitter:   250 * time.Millisecond,
	}
}

// IsRetryable reports primary and secondary rate limits and transient
// server errors.
func IsRetryable(err error) bool {
	var (
		rle *github.RateLimitError
		are *github.AbuseRateLimitError
		ere *github.ErrorResponse
	)
	switch {
	case errors.As(err, &rle), errors.As(err, &are):
		return true
	case errors.As(err, &ere) && ere.Response != nil:
		switch ere.Response.StatusCode {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
	}
	return false
}

func isNotFound(err error) bool {
	var ere *github.ErrorResponse
	return errors.As(err, &ere) && ere.Response != nil && ere.Response.StatusCode == http.StatusNotFound
}

// call waits for the limiter, then runs fn with retries.
func call[T any](ctx context.Context, c *Client, op string, fn func() (T, error)) (T, error) {
	return retry.Do(ctx, c.retry, op, IsRetryable, func() (T, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			var zero T
			return zero, err
		}
		return fn()
	})
}

// ListFiles returns every file changed by the pull request.
func (c *Client) ListFiles(ctx context.Context, res *githubreconciler.Resource) ([]File, error) {
	var files []File
	opts := &github.ListOptions{PerPage: 100}
	for {
		page, err := call(ctx, c, "list_files", func() (*github.Response, error) {
			cfs, resp, err := c.gh.PullRequests.ListFiles(ctx, res.Owner, res.Repo, res.Number, opts)
			if err != nil {
				return nil, err
			}
			for _, cf := range cfs {
				files = append(files, File{
					Filename:         cf.GetFilename(),
					PreviousFilename: cf.GetPreviousFilename(),
					Status:           cf.GetStatus(),
					Patch:            cf.GetPatch(),
					Additions:        cf.GetAdditions(),
					Deletions:        cf.GetDeletions(),
				})
			}
			return resp, nil
		})
		if err != nil {
			return nil, fmt.Errorf("listing files of %s: %w", res, err)
		}
		if page.NextPage == 0 {
			return files, nil
		}
		opts.Page = page.NextPage
	}
}

type commitsQuery struct {
	Repository struct {
		PullRequest struct {
			Commits struct {
				Nodes []struct {
					Commit struct {
						Oid     githubv4.GitObjectID
						Message string
					}
				}
				PageInfo struct {
					EndCursor   githubv4.String
					HasNextPage bool
				}
			} `graphql:"commits(first: 100, after: $cursor)"`
		} `graphql:"pullRequest(number: $number)"`
	} `graphql:"repository(owner: $owner, name: $repo)"`
}

// ListCommits returns the pull request's commits in authored order.
func (c *Client) ListCommits(ctx context.Context, res *githubreconciler.Resource) ([]Commit, error) {
	variables := map[string]any{
		"owner":  githubv4.String(res.Owner),
		"repo":   githubv4.String(res.Repo),
		"number": githubv4.Int(res.Number),
		"cursor": (*githubv4.String)(nil),
	}

	var commits []Commit
	for {
		var query commitsQuery
		if _, err := call(ctx, c, "list_commits", func() (struct{}, error) {
			return struct{}{}, c.gql.Query(ctx, &query, variables)
		}); err != nil {
			return nil, fmt.Errorf("listing commits of %s: %w", res, err)
		}
		for _, n := range query.Repository.PullRequest.Commits.Nodes {
			commits = append(commits, Commit{SHA: string(n.Commit.Oid), Message: n.Commit.Message})
		}
		page := query.Repository.PullRequest.Commits.PageInfo
		if !page.HasNextPage {
			return commits, nil
		}
		variables["cursor"] = githubv4.NewString(page.EndCursor)
	}
}

// GetFile returns the file at path on the resource's head ref. It returns
// ErrNotFound when the path is missing or is a directory.
func (c *Client) GetFile(ctx context.Context, res *githubreconciler.Resource, path string) (*Blob, error) {
	fc, err := call(ctx, c, "get_file", func() (*github.RepositoryContent, error) {
		fc, _, _, err := c.gh.Repositories.GetContents(ctx, res.Owner, res.Repo, path,
			&github.RepositoryContentGetOptions{Ref: res.HeadRef})
		return fc, err
	})
	switch {
	case isNotFound(err):
		return nil, fmt.Errorf("%s at %s: %w", path, res.HeadRef, ErrNotFound)
	case err != nil:
		return nil, fmt.Errorf("getting %s at %s: %w", path, res.HeadRef, err)
	case fc == nil:
		return nil, fmt.Errorf("%s at %s is a directory: %w", path, res.HeadRef, ErrNotFound)
	}
	if fc.GetEncoding() == "none" {
		return &Blob{Path: fc.GetPath(), SHA: fc.GetSHA(), Size: fc.GetSize(), Truncated: true}, nil
	}
	content, err := fc.GetContent()
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return &Blob{Path: fc.GetPath(), SHA: fc.GetSHA(), Size: fc.GetSize(), Content: content}, nil
}

// Exists reports whether path is a file on the resource's head ref.
func (c *Client) Exists(ctx context.Context, res *githubreconciler.Resource, path string) (bool, error) {
	_, err := c.GetFile(ctx, res, path)
	switch {
	case errors.Is(err, ErrNotFound):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

// ListDir lists path on the resource's head ref. It returns ErrNotFound
// when the directory does not exist.
func (c *Client) ListDir(ctx context.Context, res *githubreconciler.Resource, path string) ([]Entry, error) {
	dc, err := call(ctx, c, "list_dir", func() ([]*github.RepositoryContent, error) {
		_, dc, _, err := c.gh.Repositories.GetContents(ctx, res.Owner, res.Repo, path,
			&github.RepositoryContentGetOptions{Ref: res.HeadRef})
		return dc, err
	})
	switch {
	case isNotFound(err):
		return nil, fmt.Errorf("%s at %s: %w", path, res.HeadRef, ErrNotFound)
	case err != nil:
		return nil, fmt.Errorf("listing %s at %s: %w", path, res.HeadRef, err)
	}
	entries := make([]Entry, 0, len(dc))
	for _, item := range dc {
		entries = append(entries, Entry{Path: item.GetPath(), Type: EntryType(item.GetType())})
	}
	return entries, nil
}

// CreateFile adds a new file on the resource's head ref.
func (c *Client) CreateFile(ctx context.Context, res *githubreconciler.Resource, path, message, content string) error {
	_, err := call(ctx, c, "create_file", func() (*github.RepositoryContentResponse, error) {
		rc, _, err := c.gh.Repositories.CreateFile(ctx, res.Owner, res.Repo, path, &github.RepositoryContentFileOptions{
			Message: github.Ptr(message),
			Content: []byte(content),
			Branch:  github.Ptr(res.HeadRef),
		})
		return rc, err
	})
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	return nil
}

// UpdateFile overwrites the file whose current blob SHA is sha.
func (c *Client) UpdateFile(ctx context.Context, res *githubreconciler.Resource, path, message, content, sha string) error {
	_, err := call(ctx, c, "update_file", func() (*github.RepositoryContentResponse, error) {
		rc, _, err := c.gh.Repositories.UpdateFile(ctx, res.Owner, res.Repo, path, &github.RepositoryContentFileOptions{
			Message: github.Ptr(message),
			Content: []byte(content),
			SHA:     github.Ptr(sha),
			Branch:  github.Ptr(res.HeadRef),
		})
		return rc, err
	})
	if err != nil {
		return fmt.Errorf("updating %s: %w", path, err)
	}
	return nil
}

// DeleteFile removes the file whose current blob SHA is sha.
func (c *Client) DeleteFile(ctx context.Context, res *githubreconciler.Resource, path, message, sha string) error {
	_, err := call(ctx, c, "delete_file", func() (*github.RepositoryContentResponse, error) {
		rc, _, err := c.gh.Repositories.DeleteFile(ctx, res.Owner, res.Repo, path, &github.RepositoryContentFileOptions{
			Message: github.Ptr(message),
			SHA:     github.Ptr(sha),
			Branch:  github.Ptr(res.HeadRef),
		})
		return rc, err
	})
	if err != nil {
		return fmt.Errorf("deleting %s: %w", path, err)
	}
	return nil
}

// CreateComment posts a comment on the pull request and returns its ID.
func (c *Client) CreateComment(ctx context.Context, res *githubreconciler.Resource, body string) (int64, error) {
	ic, err := call(ctx, c, "create_comment", func() (*github.IssueComment, error) {
		ic, _, err := c.gh.Issues.CreateComment(ctx, res.Owner, res.Repo, res.Number, &github.IssueComment{Body: github.Ptr(body)})
		return ic, err
	})
	if err != nil {
		return 0, fmt.Errorf("commenting on %s: %w", res, err)
	}
	return ic.GetID(), nil
}

// EditComment replaces the body of a comment.
func (c *Client) EditComment(ctx context.Context, res *githubreconciler.Resource, id int64, body string) error {
	_, err := call(ctx, c, "edit_comment", func() (*github.IssueComment, error) {
		ic, _, err := c.gh.Issues.EditComment(ctx, res.Owner, res.Repo, id, &github.IssueComment{Body: github.Ptr(body)})
		return ic, err
	})
	if err != nil {
		return fmt.Errorf("editing comment %d on %s: %w", id, res, err)
	}
	return nil
}
