package tui

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"devon-cli/internal/editor"
	"devon-cli/internal/editsession"
	"devon-cli/internal/model"
	"devon-cli/internal/mutate"
)

type formMode int

const (
	formBrowse formMode = iota
	formText
	formLong
	formGrid
	formAttach
)

// form is the edit view state. Field values live in the handle's edit
// session; the form only holds the cursor and whatever input is open.
type form struct {
	open    bool
	cursor  int
	mode    formMode
	input   textinput.Model
	area    textarea.Model
	grid    permGrid
	staged  string
	err     string
	pending *pendingInput
}

// pendingInput is what the navigation guard watches while the form is
// open: the session, plus a one-line input typed into but not applied.
// It is shared by every copy of the model.
type pendingInput struct {
	h     mutate.Handle
	open  bool
	start string
	value string
}

func (p *pendingInput) begin(v string) { p.open, p.start, p.value = true, v, v }
func (p *pendingInput) end()           { p.open, p.start, p.value = false, "", "" }

func (p *pendingInput) IsDirty() bool {
	return p.h.IsDirty() || (p.open && p.value != p.start)
}

type permGrid struct {
	rows []model.PermissionRow
	row  int
	col  int
}

type formRow struct {
	field  editsession.Field
	attach string
}

func newForm(h mutate.Handle) form {
	in := textinput.New()
	in.Prompt = ""
	in.CharLimit = 0

	area := textarea.New()
	area.ShowLineNumbers = false
	area.CharLimit = 0
	area.Prompt = ""
	area.SetHeight(10)

	return form{open: true, input: in, area: area, pending: &pendingInput{h: h}}
}

func (f *form) resize(width int) {
	if !f.open {
		return
	}
	w := max(width-4, 20)
	f.input.Width = w - 24
	f.area.SetWidth(w)
}

func (f form) editing() bool { return f.mode != formBrowse }

func formRows(h mutate.Handle) []formRow {
	fields := h.Fields()
	rows := make([]formRow, 0, len(fields)+1)
	for _, fl := range fields {
		rows = append(rows, formRow{field: fl})
	}
	if a := h.AttachmentField(); a != "" {
		rows = append(rows, formRow{attach: a})
	}
	return rows
}

func (r formRow) label() string {
	if r.attach != "" {
		return cases.Title(language.English).String(r.attach) + " file"
	}
	return r.field.Label
}

func (m appModel) currentRow() (formRow, bool) {
	rows := formRows(m.h)
	if len(rows) == 0 {
		return formRow{}, false
	}
	m.form.cursor = min(max(m.form.cursor, 0), len(rows)-1)
	return rows[m.form.cursor], true
}

func (m appModel) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.h == nil {
		return m, nil
	}
	key, isKey := msg.(tea.KeyMsg)
	var cmd tea.Cmd

	switch m.form.mode {
	case formText, formAttach:
		if isKey {
			switch key.String() {
			case "esc":
				m.closeInput()
				return m, nil
			case "enter":
				return m.commitInput()
			}
		}
		m.form.input, cmd = m.form.input.Update(msg)
		m.form.pending.value = m.form.input.Value()
		return m, cmd
	case formLong:
		if isKey {
			switch key.String() {
			case "esc":
				return m.commitArea()
			case "ctrl+e":
				row, _ := m.currentRow()
				return m.openEditor(row.field.Name, m.form.area.Value())
			}
		}
		before := m.form.area.Value()
		m.form.area, cmd = m.form.area.Update(msg)
		if m.form.area.Value() != before {
			m.writeArea()
		}
		return m, cmd
	case formGrid:
		if isKey {
			return m.updateGrid(key)
		}
		return m, nil
	}

	if !isKey {
		return m, nil
	}
	rows := formRows(m.h)
	if len(rows) == 0 {
		if key.String() == "esc" {
			return m.leave(leaveToDetail)
		}
		return m, nil
	}
	m.form.cursor = min(max(m.form.cursor, 0), len(rows)-1)
	row := rows[m.form.cursor]

	switch key.String() {
	case "up", "k", "shift+tab":
		m.form.cursor = max(m.form.cursor-1, 0)
		m.form.err = ""
	case "down", "j", "tab":
		m.form.cursor = min(m.form.cursor+1, len(rows)-1)
		m.form.err = ""
	case "esc":
		m.form.err = ""
		return m.leave(leaveToDetail)
	case "ctrl+s":
		return m, m.save()
	case "enter":
		return m.beginEdit(row)
	case " ":
		if row.attach == "" && row.field.Type.Name == editsession.Bool.Name {
			return m.toggleBool(row.field.Name)
		}
	case "left", "h":
		return m.cycleRef(row, -1)
	case "right", "l":
		return m.cycleRef(row, 1)
	case "ctrl+e":
		if row.attach == "" && (row.field.Type.Name == editsession.Text.Name || row.field.Type.Name == editsession.LongText.Name) {
			return m.openEditor(row.field.Name, mutate.FormatValue(row.field, m.h.Value(row.field.Name)))
		}
	}
	return m, nil
}

func (m appModel) beginEdit(row formRow) (tea.Model, tea.Cmd) {
	m.form.err = ""
	if row.attach != "" {
		m.form.input.EchoMode = textinput.EchoNormal
		m.form.input.Placeholder = "path to an image"
		m.form.input.SetValue(m.form.staged)
		m.form.input.CursorEnd()
		m.form.input.Focus()
		m.form.pending.begin(m.form.staged)
		m.form.mode = formAttach
		return m, nil
	}

	f := row.field
	switch f.Type.Name {
	case editsession.Bool.Name:
		return m.toggleBool(f.Name)
	case editsession.Permissions.Name:
		rows, _ := m.h.Value(f.Name).([]model.PermissionRow)
		if len(rows) == 0 {
			rows = model.DefaultPermissionRows()
		}
		m.form.grid = permGrid{rows: slices.Clone(rows)}
		m.form.mode = formGrid
		return m, nil
	case editsession.LongText.Name:
		m.form.area.SetValue(mutate.FormatValue(f, m.h.Value(f.Name)))
		m.form.area.Focus()
		m.form.mode = formLong
		return m, nil
	}

	m.form.input.EchoMode = textinput.EchoNormal
	if f.Type.Name == editsession.Secret.Name {
		m.form.input.EchoMode = textinput.EchoPassword
	}
	m.form.input.Placeholder = ""
	if f.Type.Name == editsession.RefSet.Name {
		m.form.input.Placeholder = "ids, comma separated"
	}
	m.form.input.SetValue(mutate.FormatValue(f, m.h.Value(f.Name)))
	m.form.input.CursorEnd()
	m.form.input.Focus()
	m.form.pending.begin(m.form.input.Value())
	m.form.mode = formText
	return m, nil
}

func (m *appModel) closeInput() {
	m.form.input.Blur()
	m.form.area.Blur()
	if m.form.pending != nil {
		m.form.pending.end()
	}
	m.form.mode = formBrowse
}

// setField applies a value. A rejected value keeps the input open; a
// failed draft write still keeps the value and only warns.
func (m *appModel) setField(apply func() error) bool {
	err := apply()
	if err == nil {
		m.form.err = ""
		return true
	}
	var fe mutate.FieldError
	if errors.As(err, &fe) {
		m.form.err = fe.Error()
		return false
	}
	m.setBanner(err.Error(), true)
	return true
}

func (m appModel) commitInput() (tea.Model, tea.Cmd) {
	row, ok := m.currentRow()
	if !ok {
		m.closeInput()
		return m, nil
	}
	val := m.form.input.Value()
	if row.attach != "" {
		path := strings.TrimSpace(val)
		if path == "" {
			m.closeInput()
			return m, nil
		}
		path = expandHome(path)
		if err := m.h.StageAttachment(editsession.Attachment{Path: path}); err != nil {
			m.form.err = err.Error()
			return m, nil
		}
		m.form.staged = path
		m.closeInput()
		return m, nil
	}
	if !m.setField(func() error { return m.h.SetFieldText(m.ctx, row.field.Name, val) }) {
		return m, nil
	}
	m.closeInput()
	return m, nil
}

// writeArea applies the text area to the session on every change, so a
// long-form field reaches the draft store while it is being typed.
func (m *appModel) writeArea() {
	row, ok := m.currentRow()
	if !ok || row.attach != "" {
		return
	}
	val := m.form.area.Value()
	m.setField(func() error { return m.h.SetField(m.ctx, row.field.Name, val) })
}

func (m appModel) commitArea() (tea.Model, tea.Cmd) {
	m.writeArea()
	m.closeInput()
	return m, nil
}

func (m appModel) toggleBool(name string) (tea.Model, tea.Cmd) {
	cur, _ := m.h.Value(name).(bool)
	m.setField(func() error { return m.h.SetField(m.ctx, name, !cur) })
	return m, nil
}

func (m appModel) cycleRef(row formRow, step int) (tea.Model, tea.Cmd) {
	if row.attach != "" || row.field.Type.Name != editsession.Ref.Name {
		return m, nil
	}
	opts := m.h.Options(row.field.Name)
	if len(opts) == 0 {
		m.form.err = "No choices loaded. Press enter to type an id."
		return m, nil
	}
	cur, _ := m.h.Value(row.field.Name).(int64)
	i := slices.IndexFunc(opts, func(o mutate.Option) bool { return o.ID == cur })
	switch {
	case i < 0 && step > 0:
		i = 0
	case i < 0:
		i = len(opts) - 1
	default:
		i = (i + step + len(opts)) % len(opts)
	}
	id := opts[i].ID
	m.setField(func() error { return m.h.SetField(m.ctx, row.field.Name, id) })
	return m, nil
}

func (m appModel) updateGrid(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	g := &m.form.grid
	toggle := func(col int) {
		a := model.Actions[col]
		g.rows[g.row].Set(a, !g.rows[g.row].Get(a))
	}
	switch key.String() {
	case "up", "k":
		g.row = max(g.row-1, 0)
	case "down", "j":
		g.row = min(g.row+1, len(g.rows)-1)
	case "left", "h":
		g.col = max(g.col-1, 0)
	case "right", "l", "tab":
		g.col = min(g.col+1, len(model.Actions)-1)
	case " ", "x":
		toggle(g.col)
	case "c":
		g.col = 0
		toggle(0)
	case "r":
		g.col = 1
		toggle(1)
	case "u":
		g.col = 2
		toggle(2)
	case "d":
		g.col = 3
		toggle(3)
	case "enter", "esc":
		rows := slices.Clone(g.rows)
		m.setField(func() error { return m.h.SetField(m.ctx, "permissions", rows) })
		m.form.mode = formBrowse
	}
	return m, nil
}

func (m appModel) openEditor(field, initial string) (tea.Model, tea.Cmd) {
	ed, err := editor.Prepare(initial, ".md")
	if err != nil {
		m.setBanner("editor: "+err.Error(), true)
		return m, nil
	}
	return m, tea.ExecProcess(ed.Command(m.ctx), func(err error) tea.Msg {
		return editorDoneMsg{field: field, edit: ed, err: err}
	})
}

func (m appModel) applyEditorResult(msg editorDoneMsg) (tea.Model, tea.Cmd) {
	text, changed, err := msg.edit.Finish(msg.err)
	if err != nil {
		m.setBanner("editor: "+err.Error(), true)
		return m, nil
	}
	if m.view != viewEdit || m.h == nil {
		return m, nil
	}
	if m.form.mode == formLong {
		m.form.area.SetValue(text)
		if changed {
			m.writeArea()
		}
		return m, nil
	}
	if changed {
		m.setField(func() error { return m.h.SetFieldText(m.ctx, msg.field, text) })
	}
	return m, nil
}

func expandHome(p string) string {
	if rest, ok := strings.CutPrefix(p, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, rest)
		}
	}
	return p
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}

func (f form) view(h mutate.Handle, width int) string {
	if h == nil {
		return ""
	}
	rows := formRows(h)
	changed := map[string]bool{}
	for _, n := range h.Changed() {
		changed[n] = true
	}
	labelW := 0
	for _, r := range rows {
		labelW = max(labelW, len(r.label()))
	}
	labelStyle := lipgloss.NewStyle().Width(labelW + 1)
	if width <= 0 {
		width = 80
	}

	lines := make([]string, 0, len(rows)+8)
	for i, r := range rows {
		cur := i == f.cursor
		marker, dirty := "  ", " "
		if cur {
			marker = "> "
		}
		var val string
		if r.attach != "" {
			val = f.staged
			if val == "" {
				val = styleMuted().Render("(none staged)")
			} else {
				dirty = "*"
				val = filepath.Base(val)
			}
		} else {
			if changed[r.field.Name] {
				dirty = "*"
			}
			val = firstLine(h.Display(r.field.Name))
			if r.field.Required && strings.TrimSpace(val) == "" {
				val = styleMuted().Render("(required)")
			}
		}
		if cur && (f.mode == formText || f.mode == formAttach) {
			val = f.input.View()
		}
		line := marker + labelStyle.Render(r.label()) + dirty + " " + val
		if cur && f.mode == formBrowse {
			line = styleSelected().Render(fitPane(xansi.Strip(line), width-2, 1))
		}
		lines = append(lines, line)
	}

	if f.cursor < len(rows) {
		r := rows[f.cursor]
		switch {
		case f.mode == formLong:
			lines = append(lines, "", lipgloss.NewStyle().Bold(true).Render(r.label()), f.area.View())
		case f.mode == formGrid:
			lines = append(lines, "", f.grid.view())
		case r.attach == "" && r.field.Type.Name == editsession.Ref.Name:
			if opts := h.Options(r.field.Name); len(opts) > 0 {
				labels := make([]string, 0, len(opts))
				for _, o := range opts {
					labels = append(labels, fmt.Sprintf("%s (#%d)", o.Label, o.ID))
				}
				lines = append(lines, "", styleMuted().Width(width-2).Render("choices: "+strings.Join(labels, ", ")))
			}
		}
	}
	if f.err != "" {
		lines = append(lines, "", styleBanner(true).Render(f.err))
	}
	if h.Saving() {
		lines = append(lines, "", styleMuted().Render("saving…"))
	}
	return strings.Join(lines, "\n")
}

func (g permGrid) view() string {
	cell := lipgloss.NewStyle().Width(8).Align(lipgloss.Center)
	head := lipgloss.NewStyle().Width(11).Render("")
	for _, a := range model.Actions {
		head += styleMuted().Inherit(cell).Render(string(a))
	}
	lines := []string{head}
	for i, r := range g.rows {
		line := lipgloss.NewStyle().Width(11).Render(string(r.Module))
		for j, a := range model.Actions {
			mark := "[ ]"
			if r.Get(a) {
				mark = "[x]"
			}
			st := cell
			if i == g.row && j == g.col {
				st = styleSelected().Inherit(cell)
			}
			line += st.Render(mark)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (f form) help(h mutate.Handle) string {
	switch f.mode {
	case formText:
		return "enter: apply  esc: cancel"
	case formAttach:
		return "enter: stage file  esc: cancel"
	case formLong:
		return "type to edit  ctrl+e: external editor  esc: done"
	case formGrid:
		return "arrows: move  space: toggle  c/r/u/d: toggle column  enter: done"
	}
	keys := "↑/↓: move  enter: edit  space: toggle  ←/→: choose  ctrl+e: editor  "
	switch {
	case h == nil || h.Saving():
	case !h.CanSave().Enabled:
		keys += "ctrl+s: save (disabled)  "
	default:
		keys += "ctrl+s: save  "
	}
	return keys + "esc: back"
}
