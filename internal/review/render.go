package review

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/hugemartyr/yellowbench/internal/workspace"
)

// Line is one rendered diff line.
type Line struct {
	Type    string
	Text    string
	OldLine int
	NewLine int
}

// Line types.
const (
	LineContext = "context"
	LineAdded   = "added"
	LineRemoved = "removed"
)

// maxDiffLines caps rendering for pathological proposals.
const maxDiffLines = 5000

// Render computes the line diff between a pending diff's baseline and its
// proposal. Returns nil and truncated=true when the inputs are too large to
// render interactively.
func Render(d workspace.PendingDiff) (lines []Line, truncated bool) {
	if lineCount(d.OldCode)+lineCount(d.NewCode) > maxDiffLines {
		return nil, true
	}

	dmp := diffmatchpatch.New()
	oldChars, newChars, lineArray := dmp.DiffLinesToChars(d.OldCode, d.NewCode)
	diffs := dmp.DiffMain(oldChars, newChars, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	oldLine, newLine := 1, 1
	for _, diff := range diffs {
		chunk := strings.Split(diff.Text, "\n")
		if len(chunk) > 0 && chunk[len(chunk)-1] == "" {
			chunk = chunk[:len(chunk)-1]
		}
		for _, text := range chunk {
			switch diff.Type {
			case diffmatchpatch.DiffEqual:
				lines = append(lines, Line{Type: LineContext, Text: text, OldLine: oldLine, NewLine: newLine})
				oldLine++
				newLine++
			case diffmatchpatch.DiffDelete:
				lines = append(lines, Line{Type: LineRemoved, Text: text, OldLine: oldLine})
				oldLine++
			case diffmatchpatch.DiffInsert:
				lines = append(lines, Line{Type: LineAdded, Text: text, NewLine: newLine})
				newLine++
			}
		}
	}
	return lines, false
}

// RenderText formats a pending diff as unified-style text for display.
func RenderText(d workspace.PendingDiff) string {
	lines, truncated := Render(d)
	if truncated {
		return "(diff too large to render)"
	}

	var sb strings.Builder
	for _, l := range lines {
		switch l.Type {
		case LineAdded:
			sb.WriteString("+")
		case LineRemoved:
			sb.WriteString("-")
		default:
			sb.WriteString(" ")
		}
		sb.WriteString(l.Text)
		sb.WriteString("\n")
	}
	return sb.String()
}

func lineCount(value string) int {
	if value == "" {
		return 0
	}
	return strings.Count(value, "\n") + 1
}
