/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package testreconciler

import (
	"strings"
	"testing"

	"chainguard.dev/prbot/agents/testagent"
)

func TestRender(t *testing.T) {
	props := []testagent.Proposal{
		proposal("tests/unit/test_pass.py", create()),
		proposal("tests/unit/test_fail.py", create()),
		proposal("tests/unit/test_skipped.py", create()),
		proposal("tests/unit/test_pass.py", update()),
	}
	results := Results{
		"tests/unit/test_pass.py": {File: "tests/unit/test_pass.py", State: Passed, Passed: true, RetryCount: 1},
		"tests/unit/test_fail.py": {File: "tests/unit/test_fail.py", State: FailedExhausted, ErrorMessage: "E   assert 1 == 2\n", RetryCount: 3},
	}

	got := Render("feature", props, results)

	for _, want := range []string{
		"### Test Generator",
		"Test files on branch 'feature':",
		"✅ PASSED",
		"❌ FAILED (after 3 attempts)",
		"⚠️ Not executed",
		"<summary>2. Last error for <code>tests/unit/test_fail.py</code></summary>",
		"E   assert 1 == 2",
		"*(Pull from that branch to see & modify them.)*",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Render() missing %q:\n%s", want, got)
		}
	}

	// Exactly one status row per proposed file.
	for _, file := range []string{"tests/unit/test_pass.py", "tests/unit/test_fail.py", "tests/unit/test_skipped.py"} {
		if n := countRows(got, "`"+file+"`"); n != 1 {
			t.Errorf("rows for %s = %d, want 1", file, n)
		}
	}
	if n := strings.Count(got, "<details>"); n != 1 {
		t.Errorf("failure blocks = %d, want 1", n)
	}
}

func TestRenderNothingExecuted(t *testing.T) {
	props := []testagent.Proposal{
		proposal("tests/unit/test_a.py", create()),
		proposal("tests/integration/test_b.py", create()),
	}
	got := Render("feature", props, nil)

	if n := strings.Count(got, "Not executed"); n != len(props) {
		t.Errorf("not executed rows = %d, want %d:\n%s", n, len(props), got)
	}
	if strings.Contains(got, "PASSED") || strings.Contains(got, "FAILED") {
		t.Errorf("Render() reports outcomes for files that never ran:\n%s", got)
	}
}

func countRows(report, cell string) int {
	n := 0
	for _, line := range strings.Split(report, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "|") && strings.Contains(line, cell) {
			n++
		}
	}
	return n
}

func TestRenderFencesOutput(t *testing.T) {
	output := "E   AssertionError: assert '```py\\nx\\n```' == ''\n```\nstray fence\n"
	got := Render("feature", []testagent.Proposal{proposal("tests/unit/test_md.py", create())}, Results{
		"tests/unit/test_md.py": {File: "tests/unit/test_md.py", State: FailedExhausted, ErrorMessage: output, RetryCount: 3},
	})

	if !strings.Contains(got, "````\n"+strings.TrimRight(output, "\n")+"\n````\n</details>") {
		t.Errorf("Render() did not fence the output with four backticks:\n%s", got)
	}
	if !strings.HasSuffix(got, "*(Pull from that branch to see & modify them.)*\n") {
		t.Errorf("Render() lost its footer:\n%s", got)
	}
}

func TestCodeFence(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want string
	}{
		{in: "plain output", want: "```"},
		{in: "one ` tick", want: "```"},
		{in: "```", want: "````"},
		{in: "a ````` b ``` c", want: "``````"},
	} {
		if got := codeFence(tt.in); got != tt.want {
			t.Errorf("codeFence(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
