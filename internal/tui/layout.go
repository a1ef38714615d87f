package tui

import (
	"strings"

	xansi "github.com/charmbracelet/x/ansi"
)

// fitPane forces s to exactly width columns and height lines, ANSI-aware,
// so panes stay aligned when joined side by side. height <= 0 keeps the
// line count.
func fitPane(s string, width, height int) string {
	width = max(width, 0)
	lines := strings.Split(s, "\n")
	if height > 0 {
		if len(lines) > height {
			lines = lines[:height]
		}
		for len(lines) < height {
			lines = append(lines, "")
		}
	}
	for i, ln := range lines {
		w := xansi.StringWidth(ln)
		if w > width {
			ln = xansi.Truncate(ln, width, "…")
			w = xansi.StringWidth(ln)
		}
		lines[i] = ln + strings.Repeat(" ", max(width-w, 0))
	}
	return strings.Join(lines, "\n")
}

func modalWidth(screen int) int {
	return min(max(screen-8, 30), 72)
}
