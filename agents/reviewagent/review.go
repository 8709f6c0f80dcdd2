/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package reviewagent asks a model for a structured review of a pull request
// and renders it as a markdown comment.
package reviewagent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chainguard.dev/prbot/agents/executor"
	"chainguard.dev/prbot/agents/executor/provider"
	"chainguard.dev/prbot/agents/promptbuilder"
	"chainguard.dev/prbot/agents/testagent"
)

// Analysis is the review of one changed file.
type Analysis struct {
	FilePath string `json:"file_path" jsonschema:"required"`
	Analysis string `json:"analysis" jsonschema:"required" jsonschema_description:"Analysis written as regular paragraphs, not code blocks"`
}

// Review is the structured response of the reviewer.
type Review struct {
	Summary      string     `json:"summary" jsonschema:"required" jsonschema_description:"A clear, concise paragraph summarizing the changes"`
	FileAnalyses []Analysis `json:"file_analyses" jsonschema:"required"`
	Suggestions  []string   `json:"suggestions" jsonschema:"required" jsonschema_description:"Single-line suggestions"`
}

// Validate implements result.Validator.
func (r *Review) Validate() error {
	if strings.TrimSpace(r.Summary) == "" {
		return errors.New("summary is empty")
	}
	return nil
}

// Request is the pull request under review. It reuses the test agent's
// file model so excluded files are withheld the same way.
type Request struct {
	Title        string
	Commits      []string
	ChangedFiles []testagent.ChangedFile
}

// Bind implements promptbuilder.Bindable.
func (r *Request) Bind(p *promptbuilder.Prompt) (*promptbuilder.Prompt, error) {
	return (&testagent.GatingRequest{
		Title:        r.Title,
		Commits:      r.Commits,
		ChangedFiles: r.ChangedFiles,
	}).Bind(p)
}

var reviewSystem = promptbuilder.MustNewPrompt(`You are an expert code reviewer. Analyze the pull request changes and provide detailed feedback.
Write your analysis in clear, concise paragraphs. Do not use code blocks for regular text.
Write each suggestion as a single line.
Files marked excluded were too large to include; do not speculate about their content.`)

var reviewPrompt = promptbuilder.MustNewPrompt(`Pull request:
{{pull_request}}`)

// Agent reviews pull requests.
type Agent struct {
	exec executor.Interface[*Request, *Review]
}

// New builds the review executor on backend.
func New(backend provider.Backend) (*Agent, error) {
	exec, err := provider.New[*Request, *Review](backend, "code_review", reviewPrompt,
		executor.WithSystemInstructions(reviewSystem))
	if err != nil {
		return nil, fmt.Errorf("creating review executor: %w", err)
	}
	return NewAgent(exec), nil
}

// NewAgent wraps an existing executor.
func NewAgent(exec executor.Interface[*Request, *Review]) *Agent {
	return &Agent{exec: exec}
}

// Review returns the model's review. Unlike the test steps, errors are
// returned so the caller can report them on the pull request.
func (a *Agent) Review(ctx context.Context, req *Request) (*Review, error) {
	return a.exec.Execute(ctx, req)
}

// Render formats a review as the comment body.
func Render(r *Review) string {
	var sb strings.Builder
	sb.WriteString("# Pull Request Review\n")
	sb.WriteString("## Summary\n")
	sb.WriteString(r.Summary)
	sb.WriteString("\n\n## File Analyses\n")
	for i, fa := range r.FileAnalyses {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "### %s\n - %s", fa.FilePath, fa.Analysis)
	}
	sb.WriteString("\n\n## Suggestions\n")
	for i, s := range r.Suggestions {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "- %s", s)
	}
	sb.WriteString("\n")
	return sb.String()
}
