/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package collector

import (
	"fmt"

	"github.com/waigani/diffparser"
)

// Hunk is a changed line range of a file, in old and new coordinates.
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
}

// String renders the hunk as a unified diff range, "-a,b +c,d".
func (h Hunk) String() string {
	return fmt.Sprintf("-%d,%d +%d,%d", h.OldStart, h.OldLines, h.NewStart, h.NewLines)
}

// parseHunks extracts the hunk ranges of a GitHub file patch. GitHub omits
// the file headers, so they are added before parsing. Unparseable patches
// (binary files, truncated diffs) yield no hunks.
func parseHunks(filename, patch string) []Hunk {
	if patch == "" {
		return nil
	}
	diff, err := diffparser.Parse(fmt.Sprintf("diff --git a/%[1]s b/%[1]s\n--- a/%[1]s\n+++ b/%[1]s\n%[2]s", filename, patch))
	if err != nil {
		return nil
	}
	var hunks []Hunk
	for _, f := range diff.Files {
		for _, h := range f.Hunks {
			hunks = append(hunks, Hunk{
				OldStart: h.OrigRange.Start,
				OldLines: h.OrigRange.Length,
				NewStart: h.NewRange.Start,
				NewLines: h.NewRange.Length,
			})
		}
	}
	return hunks
}
