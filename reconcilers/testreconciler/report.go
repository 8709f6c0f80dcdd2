/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package testreconciler

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"chainguard.dev/prbot/agents/testagent"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

const (
	reportTitle  = "### Test Generator"
	statusPassed = "✅ PASSED"
	statusNotRun = "⚠️ Not executed"
)

// Render formats the results of a run as the final comment body. Every
// proposed filename gets exactly one row; files without a result are marked
// as not executed.
func Render(branch string, proposals []testagent.Proposal, results Results) string {
	types := make(map[string]testagent.TestType, len(proposals))
	for _, p := range proposals {
		if _, ok := types[p.Filename]; !ok {
			types[p.Filename] = p.TestType
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", reportTitle)
	fmt.Fprintf(&b, "Test files on branch '%s':\n\n", branch)

	table := createResultsTable([]string{"#", "File", "Type", "Status", "Fix attempts"}, &b)

	type failure struct {
		row    int
		file   string
		output string
	}
	var failures []failure

	for i, file := range uniqueFilenames(proposals) {
		row := i + 1
		r, ok := results[file]
		status, attempts := statusNotRun, "-"
		if ok {
			attempts = strconv.Itoa(r.RetryCount)
			if r.Passed {
				status = statusPassed
			} else {
				status = fmt.Sprintf("❌ FAILED (after %d attempts)", r.RetryCount)
				failures = append(failures, failure{row: row, file: file, output: r.ErrorMessage})
			}
		}
		_ = table.Append([]string{strconv.Itoa(row), "`" + file + "`", string(types[file]), status, attempts})
	}
	_ = table.Render()

	for _, f := range failures {
		fmt.Fprintf(&b, "\n<details>\n<summary>%d. Last error for <code>%s</code></summary>\n\n", f.row, f.file)
		fence := codeFence(f.output)
		fmt.Fprintf(&b, "%s\n%s\n%s\n</details>\n", fence, strings.TrimRight(f.output, "\n"), fence)
	}

	b.WriteString("\n*(Pull from that branch to see & modify them.)*\n")
	return b.String()
}

// codeFence returns a backtick fence longer than any backtick run in s.
func codeFence(s string) string {
	longest, run := 0, 0
	for _, r := range s {
		if r != '`' {
			run = 0
			continue
		}
		run++
		longest = max(longest, run)
	}
	return strings.Repeat("`", max(3, longest+1))
}

// createResultsTable returns a markdown table writer for the report.
func createResultsTable(headers []string, w io.Writer) *tablewriter.Table {
	cfg := tablewriter.Config{
		Header: tw.CellConfig{
			Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			Formatting: tw.CellFormatting{AutoFormat: tw.Off},
		},
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		},
		Behavior: tw.Behavior{TrimSpace: tw.Off},
	}
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(cfg),
		tablewriter.WithHeader(headers),
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithRendition(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleMarkdown),
			Borders: tw.Border{
				Left:   tw.On,
				Top:    tw.Off,
				Right:  tw.On,
				Bottom: tw.Off,
			},
		}),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)
}
