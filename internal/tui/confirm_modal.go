package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"devon-cli/internal/lifecycle"
)

type confirmFocus int

const (
	focusConfirm confirmFocus = iota
	focusCancel
)

func (f confirmFocus) toggle() confirmFocus {
	if f == focusConfirm {
		return focusCancel
	}
	return focusConfirm
}

// pendingConfirm is an open confirmation. kind selects whether op or
// leave applies.
type pendingConfirm struct {
	kind  modalKind
	title string
	body  string
	label string
	focus confirmFocus
	op    lifecycle.Op
	leave leaveAction
}

func renderModalBox(width int, title, content string) string {
	w := modalWidth(width)
	head := lipgloss.NewStyle().Bold(true).Width(w - 4).Render(title)
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorAccent).
		Background(colorModalBg).
		Padding(1, 1).
		Width(w)
	return box.Render(head + "\n\n" + content)
}

func renderConfirmModal(width int, c pendingConfirm) string {
	// No borders on the buttons: nested borders on a colored background
	// leave artifacts in some terminals.
	btn := lipgloss.NewStyle().Padding(0, 1).Foreground(colorSurfaceFg).Background(colorControlBg)
	active := btn.Foreground(colorSelectedFg).Background(colorSelectedBg).Bold(true)

	confirm, cancel := btn.Render(c.label), btn.Render("Cancel")
	if c.focus == focusConfirm {
		confirm = active.Render(c.label)
	} else {
		cancel = active.Render("Cancel")
	}
	controls := lipgloss.JoinHorizontal(lipgloss.Top, confirm, " ", cancel)

	bodyW := modalWidth(width) - 4
	content := strings.Join([]string{
		lipgloss.NewStyle().Width(bodyW).Render(c.body),
		"",
		controls,
		"",
		styleMuted().Width(bodyW).Render("tab: focus   enter: select   y/n   esc: cancel"),
	}, "\n")
	return renderModalBox(width, c.title, content)
}
