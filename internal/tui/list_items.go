package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	xansi "github.com/charmbracelet/x/ansi"

	"devon-cli/internal/model"
	"devon-cli/internal/mutate"
)

type menuItem struct {
	kind  model.Kind
	label string
}

func (i menuItem) FilterValue() string { return i.label }
func (i menuItem) Title() string       { return i.label }

type rowItem struct {
	row mutate.Row
}

func (i rowItem) FilterValue() string { return i.row.Title }

func (i rowItem) Title() string {
	title := strings.TrimSpace(i.row.Title)
	if title == "" {
		title = "(untitled)"
	}
	meta := []string{i.row.Status}
	if d := strings.TrimSpace(i.row.Detail); d != "" {
		meta = append(meta, d)
	}
	if !i.row.Created.IsZero() {
		meta = append(meta, i.row.Created.Local().Format(time.DateOnly))
	}
	line := fmt.Sprintf("#%-5d %s  %s", i.row.ID, title, styleMuted().Render(strings.Join(meta, " · ")))
	if i.row.State == model.StateTrashed.String() {
		line += "  " + styleState(i.row.State).Render("trashed")
	}
	return line
}

func menuItems() []list.Item {
	return []list.Item{
		menuItem{kind: model.KindAuthor, label: "Authors"},
		menuItem{kind: model.KindPoem, label: "Poems"},
		menuItem{kind: model.KindRole, label: "Roles"},
		menuItem{kind: model.KindEmployee, label: "Employees"},
		menuItem{kind: model.KindSiteSettings, label: "Site settings"},
	}
}

func newList(title string, items []list.Item) list.Model {
	l := list.New(items, compactDelegate{}, 0, 0)
	l.Title = title
	// The app draws its own header and footer.
	l.SetShowTitle(false)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetShowPagination(false)
	l.SetFilteringEnabled(true)
	// esc means back here, not quit.
	l.KeyMap.Quit.SetKeys("q")
	l.KeyMap.CursorUp.SetKeys(append(l.KeyMap.CursorUp.Keys(), "ctrl+p")...)
	l.KeyMap.CursorDown.SetKeys(append(l.KeyMap.CursorDown.Keys(), "ctrl+n")...)
	return l
}

func selectRow(l *list.Model, id int64) {
	for i, it := range l.Items() {
		if r, ok := it.(rowItem); ok && r.row.ID == id {
			l.Select(i)
			return
		}
	}
}

// compactDelegate renders one line per item with a full-width highlight.
type compactDelegate struct{}

func (compactDelegate) Height() int                         { return 1 }
func (compactDelegate) Spacing() int                        { return 0 }
func (compactDelegate) Update(tea.Msg, *list.Model) tea.Cmd { return nil }

func (compactDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	width := m.Width()
	if width < 4 {
		return
	}
	txt := fmt.Sprint(item)
	if t, ok := item.(interface{ Title() string }); ok {
		txt = t.Title()
	}
	line := fitPane(txt, width, 1)
	if index == m.Index() {
		line = styleSelected().Render(xansi.Strip(line))
	}
	fmt.Fprint(w, line)
}
