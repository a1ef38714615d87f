package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"devon-cli/internal/lifecycle"
	"devon-cli/internal/model"
	"devon-cli/internal/perm"
)

func (m appModel) renderDetail() string {
	if m.h == nil {
		return ""
	}
	width := max(m.width, 40)

	kv := m.h.Details()
	keyW := 0
	for _, p := range kv {
		keyW = max(keyW, len(p[0]))
	}
	keyStyle := styleMuted().Width(keyW + 2)
	lines := make([]string, 0, len(kv))
	for _, p := range kv {
		val := p[1]
		if p[0] == "state" {
			val = styleState(val).Render(val)
		}
		lines = append(lines, keyStyle.Render(p[0])+val)
	}
	body := strings.Join(lines, "\n")

	if label, md := m.h.Markdown(); strings.TrimSpace(md) != "" {
		body += "\n\n" + lipgloss.NewStyle().Bold(true).Render(label) + "\n" + renderMarkdown(md, width-2)
	}
	if err := m.h.DraftError(); err != nil {
		body += "\n\n" + styleBanner(true).Render("Drafts unavailable: "+err.Error())
	}
	h := max(m.height-8, 0)
	return fitPane(body, width, h)
}

// detailKeys lists only the actions the current operator can see.
func (m appModel) detailKeys() string {
	if m.h == nil {
		return "esc: back"
	}
	keys := []string{}
	if save := m.h.CanSave(); save.Visible {
		keys = append(keys, withState("e: edit", save))
	}
	aff := m.h.Affordances()
	for _, a := range []struct {
		op  lifecycle.Op
		key string
	}{
		{lifecycle.OpSoftDelete, "d: delete"},
		{lifecycle.OpRestore, "u: restore"},
		{lifecycle.OpHardDelete, "D: delete permanently"},
	} {
		if x := aff.For(a.op); x.Visible {
			keys = append(keys, withState(a.key, x))
		}
	}
	if m.h.Kind() == model.KindAuthor {
		keys = append(keys, "p: poems", "a: add poem")
	}
	return strings.Join(append(keys, "r: reload", "esc: back", "q: quit"), "  ")
}

func withState(key string, a perm.Affordance) string {
	if a.Enabled {
		return key
	}
	return key + " (disabled)"
}
