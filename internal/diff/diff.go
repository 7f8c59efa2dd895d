// Package diff derives human-readable change descriptions for new versions
// by line-diffing the previous version's compressed text against the new one.
package diff

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// maxListedLines caps how many changed lines a description quotes before
// falling back to counts only.
const maxListedLines = 5

// Describe summarizes the change from before to after. An empty before is
// reported as an initial extraction; identical inputs as no content change.
func Describe(before, after string) string {
	if before == "" {
		return "initial extraction"
	}
	if before == after {
		return "re-extraction, no content change"
	}

	dmp := diffmatchpatch.New()
	beforeChars, afterChars, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(beforeChars, afterChars, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var added, removed int
	var listed []string
	for _, d := range diffs {
		if d.Type == diffmatchpatch.DiffEqual {
			continue
		}
		lines := splitLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += len(lines)
			for _, line := range lines {
				if len(listed) < maxListedLines {
					listed = append(listed, "+ "+line)
				}
			}
		case diffmatchpatch.DiffDelete:
			removed += len(lines)
			for _, line := range lines {
				if len(listed) < maxListedLines {
					listed = append(listed, "- "+line)
				}
			}
		}
	}

	summary := fmt.Sprintf("%d line(s) added, %d removed", added, removed)
	if added+removed > maxListedLines {
		return summary
	}
	return summary + ": " + strings.Join(listed, "; ")
}

func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
