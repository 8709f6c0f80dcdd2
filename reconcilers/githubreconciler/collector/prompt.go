/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package collector

import "chainguard.dev/prbot/agents/testagent"

// AgentFiles returns the changed files in the form the agents prompt with.
// Excluded files keep their flag so their content is never rendered.
func (s *Snapshot) AgentFiles() []testagent.ChangedFile {
	out := make([]testagent.ChangedFile, 0, len(s.Files))
	for _, f := range s.Files {
		cf := testagent.ChangedFile{
			Filename: f.Filename,
			Status:   f.Status,
			Excluded: f.Excluded,
		}
		if !f.Excluded {
			cf.Patch = f.Patch
			cf.Content = f.Content
			for _, h := range f.Hunks {
				cf.ChangedLines = append(cf.ChangedLines, h.String())
			}
		}
		out = append(out, cf)
	}
	return out
}

// AgentTests returns the existing tests. Excluded tests are listed by name only.
func (s *Snapshot) AgentTests() []testagent.TestFile {
	out := make([]testagent.TestFile, 0, len(s.Tests))
	for _, t := range s.Tests {
		tf := testagent.TestFile{Filename: t.Path}
		if !t.Excluded {
			tf.Content = t.Content
		}
		out = append(out, tf)
	}
	return out
}

// CommitMessages returns the commit messages in authored order.
func (s *Snapshot) CommitMessages() []string {
	out := make([]string, 0, len(s.Commits))
	for _, c := range s.Commits {
		out = append(out, c.Message)
	}
	return out
}

// GatingRequest builds the gating input for a pull request titled title.
func (s *Snapshot) GatingRequest(title string) *testagent.GatingRequest {
	return &testagent.GatingRequest{
		Title:         title,
		Commits:       s.CommitMessages(),
		ChangedFiles:  s.AgentFiles(),
		ExistingTests: s.AgentTests(),
	}
}
