/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package testagent

import (
	"errors"
	"fmt"

	"chainguard.dev/prbot/agents/promptbuilder"
)

// ChangedFile is a file touched by the pull request, as the agent sees it.
// Excluded files contribute only their name and status to prompts.
type ChangedFile struct {
	Filename     string
	Status       string
	Patch        string
	Content      *string
	Excluded     bool
	ChangedLines []string // hunk ranges, "-a,b +c,d"
}

// TestFile is an existing test file at the head of the pull request.
type TestFile struct {
	Filename string `yaml:"filename"`
	Content  string `yaml:"content"`
}

// GatingDecision says whether tests should be generated for a pull request.
type GatingDecision struct {
	ShouldGenerateTests bool     `json:"should_generate_tests" jsonschema:"required" jsonschema_description:"True if new or updated tests are needed, false otherwise"`
	Reasoning           string   `json:"reasoning" jsonschema:"required" jsonschema_description:"Reasoning for the determination"`
	Recommendations     []string `json:"recommendations" jsonschema:"required" jsonschema_description:"Suggested test changes, one per entry"`
}

// TestType is the category of a proposed test file.
type TestType string

const (
	Unit        TestType = "unit"
	Integration TestType = "integration"
)

// ActionKind is a repository mutation a proposal asks for.
type ActionKind string

const (
	Create ActionKind = "create"
	Update ActionKind = "update"
	Rename ActionKind = "rename"
)

// Action is one step toward a proposal's target file. Renames name the file
// being replaced.
type Action struct {
	Kind        ActionKind `json:"action" jsonschema:"required,enum=create,enum=update,enum=rename"`
	OldFilename string     `json:"old_filename,omitempty" jsonschema_description:"For rename, the current path of the file being renamed"`
}

// Proposal is the desired final content of one test file and the actions
// that bring the repository to it.
type Proposal struct {
	Filename    string   `json:"filename" jsonschema:"required" jsonschema_description:"Relative path, under tests/unit/ or tests/integration/"`
	TestType    TestType `json:"test_type" jsonschema:"required,enum=unit,enum=integration"`
	TestContent string   `json:"test_content" jsonschema:"required" jsonschema_description:"Complete Python test file"`
	Actions     []Action `json:"actions" jsonschema:"required"`
}

// ProposalSet is the structured response of the proposal generator.
type ProposalSet struct {
	Proposals []Proposal `json:"test_proposals" jsonschema:"required" jsonschema_description:"Proposed test file changes; empty when none are needed"`
}

// Validate rejects proposal sets the applier could not act on safely.
func (s *ProposalSet) Validate() error {
	created := make(map[string]bool, len(s.Proposals))
	var errs []error
	for i, p := range s.Proposals {
		if p.Filename == "" {
			errs = append(errs, fmt.Errorf("proposal %d: empty filename", i))
			continue
		}
		switch p.TestType {
		case Unit, Integration:
		default:
			errs = append(errs, fmt.Errorf("%s: unknown test type %q", p.Filename, p.TestType))
		}
		if len(p.Actions) == 0 {
			errs = append(errs, fmt.Errorf("%s: no actions", p.Filename))
		}
		for _, a := range p.Actions {
			switch a.Kind {
			case Create:
				if created[p.Filename] {
					errs = append(errs, fmt.Errorf("%s: created more than once", p.Filename))
				}
				created[p.Filename] = true
			case Update:
			case Rename:
				if a.OldFilename == "" {
					errs = append(errs, fmt.Errorf("%s: rename without old filename", p.Filename))
				} else if a.OldFilename == p.Filename {
					errs = append(errs, fmt.Errorf("%s: rename onto itself", p.Filename))
				}
			default:
				errs = append(errs, fmt.Errorf("%s: unknown action %q", p.Filename, a.Kind))
			}
		}
	}
	return errors.Join(errs...)
}

// FixResponse carries a repaired test file. A nil FixedContent means the
// model could not produce a fix.
type FixResponse struct {
	FixedContent *string `json:"fixed_content" jsonschema_description:"The complete fixed test file, or null if it cannot be fixed"`
}

type changePayload struct {
	Filename     string   `yaml:"filename"`
	Status       string   `yaml:"status"`
	Excluded     bool     `yaml:"excluded,omitempty"`
	ChangedLines []string `yaml:"changed_lines,omitempty"`
	Patch        string   `yaml:"patch,omitempty"`
	Content      string   `yaml:"content,omitempty"`
}

type pullRequestPayload struct {
	Title         string          `yaml:"title"`
	Commits       []string        `yaml:"commits"`
	ChangedFiles  []changePayload `yaml:"changed_files"`
	ExistingTests []TestFile      `yaml:"existing_tests"`
}

// payload renders the pull request for a prompt. Excluded files keep their
// name and status but never their patch or content.
func payload(title string, commits []string, files []ChangedFile, tests []TestFile) pullRequestPayload {
	p := pullRequestPayload{
		Title:         title,
		Commits:       commits,
		ChangedFiles:  make([]changePayload, 0, len(files)),
		ExistingTests: tests,
	}
	for _, f := range files {
		c := changePayload{Filename: f.Filename, Status: f.Status}
		if f.Excluded {
			c.Excluded = true
		} else {
			c.ChangedLines = f.ChangedLines
			c.Patch = f.Patch
			if f.Content != nil {
				c.Content = *f.Content
			}
		}
		p.ChangedFiles = append(p.ChangedFiles, c)
	}
	return p
}

// GatingRequest is the input of the gating decision.
type GatingRequest struct {
	Title         string
	Commits       []string
	ChangedFiles  []ChangedFile
	ExistingTests []TestFile
}

// Bind implements promptbuilder.Bindable.
func (r *GatingRequest) Bind(p *promptbuilder.Prompt) (*promptbuilder.Prompt, error) {
	return p.BindYAML("pull_request", payload(r.Title, r.Commits, r.ChangedFiles, r.ExistingTests))
}

// ProposalRequest is the input of the proposal generator.
type ProposalRequest struct {
	GatingRequest
	Recommendations []string
}

// Bind implements promptbuilder.Bindable.
func (r *ProposalRequest) Bind(p *promptbuilder.Prompt) (*promptbuilder.Prompt, error) {
	p, err := r.GatingRequest.Bind(p)
	if err != nil {
		return nil, err
	}
	return p.BindYAML("recommendations", r.Recommendations)
}

// FixRequest is the input of the fixer.
type FixRequest struct {
	Filename     string
	TestContent  string
	ErrorMessage string
}

// Bind implements promptbuilder.Bindable.
func (r *FixRequest) Bind(p *promptbuilder.Prompt) (*promptbuilder.Prompt, error) {
	p, err := p.BindYAML("test_file", TestFile{Filename: r.Filename, Content: r.TestContent})
	if err != nil {
		return nil, err
	}
	return p.BindYAML("error_message", r.ErrorMessage)
}
