package patch

import (
	"fmt"
	"strings"
)

// Minimal unified-diff support: enough to render the patch a reviewer sees
// and to verify a proposed content change stays inside its allowed ranges.

// Hunk is one contiguous change between old and new content
type Hunk struct {
	OldStart int // 1-based line in the old content
	OldLines []string
	NewStart int
	NewLines []string
}

// ComputeHunks diffs two documents line-wise. The algorithm trims the common
// prefix and suffix and treats the remainder as one hunk, which is exact for
// the bounded single-region edits the generator produces.
func ComputeHunks(oldContent, newContent string) []Hunk {
	if oldContent == newContent {
		return nil
	}
	oldLines := strings.Split(oldContent, "\n")
	newLines := strings.Split(newContent, "\n")

	prefix := 0
	for prefix < len(oldLines) && prefix < len(newLines) && oldLines[prefix] == newLines[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(oldLines)-prefix && suffix < len(newLines)-prefix &&
		oldLines[len(oldLines)-1-suffix] == newLines[len(newLines)-1-suffix] {
		suffix++
	}

	return []Hunk{{
		OldStart: prefix + 1,
		OldLines: oldLines[prefix : len(oldLines)-suffix],
		NewStart: prefix + 1,
		NewLines: newLines[prefix : len(newLines)-suffix],
	}}
}

// Render writes the hunks as a unified diff
func Render(path string, hunks []Hunk) string {
	if len(hunks) == 0 {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "--- a/%s\n+++ b/%s\n", path, path)
	for _, h := range hunks {
		fmt.Fprintf(&sb, "@@ -%d,%d +%d,%d @@\n", h.OldStart, len(h.OldLines), h.NewStart, len(h.NewLines))
		for _, l := range h.OldLines {
			sb.WriteString("-" + l + "\n")
		}
		for _, l := range h.NewLines {
			sb.WriteString("+" + l + "\n")
		}
	}
	return sb.String()
}

// changedCharRange returns the [start, end) byte span of oldContent that the
// change replaces. A pure insertion yields an empty range at the insertion
// point.
func changedCharRange(oldContent, newContent string) (int, int) {
	if oldContent == newContent {
		return 0, 0
	}
	prefix := 0
	for prefix < len(oldContent) && prefix < len(newContent) && oldContent[prefix] == newContent[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(oldContent)-prefix && suffix < len(newContent)-prefix &&
		oldContent[len(oldContent)-1-suffix] == newContent[len(newContent)-1-suffix] {
		suffix++
	}
	return prefix, len(oldContent) - suffix
}
