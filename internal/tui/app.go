package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"devon-cli/internal/api"
	"devon-cli/internal/lifecycle"
	"devon-cli/internal/model"
	"devon-cli/internal/mutate"
	"devon-cli/internal/navguard"
	"devon-cli/internal/perm"
)

type appModel struct {
	ctx      context.Context
	svc      *mutate.Service
	guard    *navguard.Guard
	approval *leaveApproval
	log      zerolog.Logger

	identity    chan identityChangedMsg
	unsubscribe func()

	width  int
	height int

	view view

	menu  list.Model
	items list.Model

	kind     model.Kind
	query    api.ListQuery
	authorID int64 // > 0 lists one author's poems
	listing  mutate.Listing
	listSeq  int

	h       mutate.Handle
	detach  func()
	missing string

	form form

	loading   bool
	banner    string
	bannerErr bool
	confirm   pendingConfirm
}

func newAppModel(ctx context.Context, svc *mutate.Service, pageSize int, log zerolog.Logger) appModel {
	approval := &leaveApproval{}
	m := appModel{
		ctx:      ctx,
		svc:      svc,
		guard:    navguard.New(approval.confirm, log),
		approval: approval,
		log:      log,
		identity: make(chan identityChangedMsg, 1),
		view:     viewMenu,
		menu:     newList("Archive", menuItems()),
		items:    newList("Items", nil),
		query:    api.ListQuery{PageSize: pageSize, Page: 1},
	}
	m.unsubscribe = svc.Perms.Subscribe(latestIdentity(m.identity))
	if id, ok := svc.Perms.Identity(); ok && id.MustChangePassword {
		m.setBanner("Your password is temporary. Change it with `devon passwd`.", true)
	}
	return m
}

func (m appModel) Init() tea.Cmd { return m.waitIdentity() }

// latestIdentity forwards identity changes into ch, keeping only the newest
// one when the console has not caught up yet.
func latestIdentity(ch chan identityChangedMsg) func(model.Identity, bool) {
	return func(id model.Identity, ok bool) {
		msg := identityChangedMsg{id: id, ok: ok}
		for {
			select {
			case ch <- msg:
				return
			default:
			}
			select {
			case <-ch:
			default:
			}
		}
	}
}

func (m appModel) waitIdentity() tea.Cmd {
	ch, done := m.identity, m.ctx.Done()
	return func() tea.Msg {
		select {
		case msg := <-ch:
			return msg
		case <-done:
			return nil
		}
	}
}

// onIdentity re-checks the open view's gates after a login, logout or
// role change.
func (m *appModel) onIdentity(msg identityChangedMsg) {
	switch {
	case !msg.ok:
		m.setBanner("Not logged in or session expired. Run `devon login`.", true)
	case m.view == viewEdit && m.h != nil:
		if aff := m.h.CanSave(); !aff.Enabled {
			m.setBanner("Read only: "+aff.Reason, true)
		}
	}
	m.log.Debug().Bool("ok", msg.ok).Str("role", msg.id.Role.Name).Msg("identity changed")
}

func (m *appModel) setBanner(s string, isErr bool) {
	m.banner, m.bannerErr = s, isErr
}

// fail reports err once in the banner. Previously loaded data stays. A
// server-side denial means the local permissions are out of date, so the
// returned command reloads the identity.
func (m *appModel) fail(action string, err error) tea.Cmd {
	m.loading = false
	m.log.Warn().Err(err).Str("action", action).Msg("console")
	switch {
	case errors.Is(err, api.ErrUnauthorized):
		m.setBanner("Not logged in or session expired. Run `devon login`.", true)
	case errors.Is(err, lifecycle.ErrCanceled):
		m.setBanner("Canceled.", false)
	case errors.Is(err, api.ErrPermissionDenied):
		m.setBanner(fmt.Sprintf("%s: %v", action, err), true)
		return m.refreshIdentity()
	default:
		m.setBanner(fmt.Sprintf("%s: %v", action, err), true)
	}
	return nil
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case listLoadedMsg:
		if msg.seq != m.listSeq {
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			return m, m.fail("load "+string(m.kind), msg.err)
		}
		m.setListing(msg.listing)
		return m, nil

	case handleLoadedMsg:
		m.loading = false
		if msg.err != nil {
			var nf mutate.NotFoundError
			if errors.As(msg.err, &nf) {
				m.missing = fmt.Sprintf("%s #%d was not found. It may have been deleted permanently.", nf.Kind, nf.ID)
				m.view = viewNotFound
				return m, nil
			}
			return m, m.fail("open "+string(msg.kind), msg.err)
		}
		m.h = msg.h
		if m.h.Creating() {
			m.startEdit()
		} else {
			m.view = viewDetail
		}
		return m, nil

	case savedMsg:
		m.loading = false
		if msg.h != m.h {
			return m, nil
		}
		if msg.err != nil {
			return m, m.fail("save", msg.err)
		}
		m.stopEdit()
		m.view = viewDetail
		m.setBanner("Saved.", false)
		return m, nil

	case transitionDoneMsg:
		m.loading = false
		if msg.h != m.h {
			return m, nil
		}
		if errors.Is(msg.err, lifecycle.ErrStale) {
			m.log.Warn().Err(msg.err).Str("action", msg.op.String()).Msg("console")
			m.setBanner(transitionBanner(msg)+" Reload failed, press r.", true)
			return m, nil
		}
		if msg.err != nil {
			return m, m.fail(msg.op.String(), msg.err)
		}
		m.setBanner(transitionBanner(msg), false)
		if m.h.State() == model.StatePurged {
			m.h = nil
			return m, m.backToList()
		}
		return m, nil

	case editorDoneMsg:
		return m.applyEditorResult(msg)

	case identityChangedMsg:
		m.onIdentity(msg)
		return m, m.waitIdentity()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.view == viewEdit {
		return m.updateForm(msg)
	}
	return m, nil
}

func transitionBanner(msg transitionDoneMsg) string {
	if s := strings.TrimSpace(msg.message); s != "" {
		return s
	}
	switch msg.op {
	case lifecycle.OpSoftDelete:
		return "Moved to trash."
	case lifecycle.OpRestore:
		return "Restored."
	default:
		return "Deleted permanently."
	}
}

func (m appModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirm.kind != modalNone {
		return m.updateConfirm(msg)
	}
	key := msg.String()
	if key == "ctrl+c" {
		return m.leave(leaveQuit)
	}
	if key == "x" && m.banner != "" && !m.typing() {
		m.banner = ""
		return m, nil
	}

	switch m.view {
	case viewMenu:
		return m.updateMenu(msg)
	case viewList:
		return m.updateList(msg)
	case viewDetail:
		return m.updateDetail(msg)
	case viewEdit:
		return m.updateForm(msg)
	case viewNotFound:
		switch key {
		case "q":
			return m, tea.Quit
		case "esc", "backspace", "enter":
			return m, m.backToList()
		}
	}
	return m, nil
}

// typing reports whether keystrokes currently go to a text input.
func (m appModel) typing() bool {
	return (m.view == viewEdit && m.form.editing()) ||
		(m.view == viewList && m.items.SettingFilter()) ||
		(m.view == viewMenu && m.menu.SettingFilter())
}

func (m appModel) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.menu.SettingFilter() {
		var cmd tea.Cmd
		m.menu, cmd = m.menu.Update(msg)
		return m, cmd
	}
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "enter":
		it, ok := m.menu.SelectedItem().(menuItem)
		if !ok {
			return m, nil
		}
		if it.kind == model.KindSiteSettings {
			m.kind = it.kind
			return m, m.open(it.kind, 0)
		}
		m.kind, m.authorID = it.kind, 0
		m.query.Trash, m.query.Page, m.query.Q = "", 1, ""
		m.items.ResetFilter()
		m.items.SetItems(nil)
		m.view = viewList
		return m, m.loadList()
	}
	var cmd tea.Cmd
	m.menu, cmd = m.menu.Update(msg)
	return m, cmd
}

func (m appModel) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.items.SettingFilter() {
		var cmd tea.Cmd
		m.items, cmd = m.items.Update(msg)
		return m, cmd
	}
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc", "backspace":
		if m.items.IsFiltered() {
			m.items.ResetFilter()
			return m, nil
		}
		m.view = viewMenu
		return m, nil
	case "enter":
		if it, ok := m.items.SelectedItem().(rowItem); ok {
			return m, m.open(m.kind, it.row.ID)
		}
		return m, nil
	case "r":
		return m, m.refreshThen(m.loadList())
	case "t":
		if m.query.Trash == "trash" {
			m.query.Trash = ""
		} else {
			m.query.Trash = "trash"
		}
		m.query.Page = 1
		return m, m.loadList()
	case "]", "pgdown":
		if m.query.Page < m.listing.Pages() {
			m.query.Page++
			return m, m.loadList()
		}
		return m, nil
	case "[", "pgup":
		if m.query.Page > 1 {
			m.query.Page--
			return m, m.loadList()
		}
		return m, nil
	case "n":
		return m, m.create(m.kind, m.authorID)
	}
	var cmd tea.Cmd
	m.items, cmd = m.items.Update(msg)
	return m, cmd
}

func (m appModel) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.h == nil {
		return m, nil
	}
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc", "backspace":
		if m.h.Kind() == model.KindSiteSettings {
			m.h = nil
			m.view = viewMenu
			return m, nil
		}
		return m, m.backToList()
	case "e":
		if aff := m.h.CanSave(); !aff.Enabled {
			m.setBanner("Read only: "+aff.Reason, true)
		}
		m.startEdit()
		return m, nil
	case "r":
		return m, m.refreshThen(m.open(m.h.Kind(), m.h.ID()))
	case "d":
		return m.askLifecycle(lifecycle.OpSoftDelete)
	case "u":
		return m.askLifecycle(lifecycle.OpRestore)
	case "D":
		return m.askLifecycle(lifecycle.OpHardDelete)
	case "p":
		if m.h.Kind() == model.KindAuthor {
			m.kind, m.authorID = model.KindPoem, m.h.ID()
			m.query.Page, m.query.Trash = 1, ""
			m.items.SetItems(nil)
			m.view = viewList
			return m, m.loadList()
		}
	case "a":
		if m.h.Kind() == model.KindAuthor {
			return m, m.create(model.KindPoem, m.h.ID())
		}
	}
	return m, nil
}

func (m appModel) askLifecycle(op lifecycle.Op) (tea.Model, tea.Cmd) {
	aff := m.h.Affordances().For(op)
	switch {
	case !aff.Visible:
		return m, nil
	case !aff.Enabled:
		m.setBanner(fmt.Sprintf("Cannot %s: %s", op, aff.Reason), true)
		return m, nil
	}
	if !op.NeedsConfirm() {
		return m, m.transition(op)
	}
	p := m.h.Prompt(op)
	m.confirm = pendingConfirm{kind: modalConfirmLifecycle, title: p.Title, body: p.Body, label: p.Confirm, op: op, focus: focusCancel}
	return m, nil
}

// leave runs a navigation away from the edit view through the guard. When
// the guard refuses, the modal asks and a yes comes back through leave.
func (m appModel) leave(to leaveAction) (tea.Model, tea.Cmd) {
	ok, err := m.guard.Leave(m.ctx, to.reason())
	if err != nil {
		return m, m.fail("leave", err)
	}
	if ok {
		return m.completeLeave(to)
	}
	label := "Discard"
	if to == leaveQuit {
		label = "Discard and quit"
	}
	m.confirm = pendingConfirm{kind: modalConfirmLeave, title: "Unsaved changes", body: navguard.Message, label: label, leave: to, focus: focusCancel}
	return m, nil
}

// leaveApproval hands the modal's answer to the guard. A grant is used up
// by the next question.
type leaveApproval struct{ granted bool }

func (a *leaveApproval) confirm(context.Context, navguard.Reason) (bool, error) {
	ok := a.granted
	a.granted = false
	return ok, nil
}

func (m appModel) completeLeave(to leaveAction) (tea.Model, tea.Cmd) {
	if m.view == viewEdit && m.h != nil {
		m.h.Cancel()
		m.stopEdit()
	}
	if to == leaveQuit {
		return m, tea.Quit
	}
	if m.h == nil || m.h.Creating() {
		m.h = nil
		return m, m.backToList()
	}
	m.view = viewDetail
	return m, nil
}

func (m appModel) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	c := m.confirm
	accept := false
	switch msg.String() {
	case "tab", "shift+tab", "left", "right", "h", "l":
		m.confirm.focus = c.focus.toggle()
		return m, nil
	case "esc", "n", "ctrl+g":
		m.confirm = pendingConfirm{}
		return m, nil
	case "y":
		accept = true
	case "enter":
		accept = c.focus == focusConfirm
	default:
		return m, nil
	}
	m.confirm = pendingConfirm{}
	if !accept {
		return m, nil
	}
	switch c.kind {
	case modalConfirmLifecycle:
		return m, m.transition(c.op)
	case modalConfirmLeave:
		m.approval.granted = true
		next, cmd := m.leave(c.leave)
		m.approval.granted = false
		return next, cmd
	}
	return m, nil
}

func (m *appModel) startEdit() {
	m.form = newForm(m.h)
	m.form.resize(m.width)
	if m.detach != nil {
		m.detach()
	}
	m.detach = m.guard.Attach(m.form.pending)
	m.view = viewEdit
}

func (m *appModel) stopEdit() {
	if m.detach != nil {
		m.detach()
		m.detach = nil
	}
	m.form = form{}
}

func (m *appModel) setListing(l mutate.Listing) {
	m.listing = l
	cur := int64(0)
	if it, ok := m.items.SelectedItem().(rowItem); ok {
		cur = it.row.ID
	}
	items := make([]list.Item, 0, len(l.Items))
	for _, r := range l.Items {
		items = append(items, rowItem{row: r})
	}
	m.items.SetItems(items)
	if cur > 0 {
		selectRow(&m.items, cur)
	}
}

func (m *appModel) resize() {
	h := max(m.height-6, 5)
	w := max(m.width, 20)
	m.menu.SetSize(w, h)
	m.items.SetSize(w, h)
	m.form.resize(m.width)
}

// Commands. Each runs one API call off the update loop.

func (m *appModel) loadList() tea.Cmd {
	m.listSeq++
	m.loading = true
	seq, kind, q, authorID, svc, ctx := m.listSeq, m.kind, m.query, m.authorID, m.svc, m.ctx
	return func() tea.Msg {
		var (
			l   mutate.Listing
			err error
		)
		if authorID > 0 {
			l, err = svc.AuthorPoems(ctx, authorID, q)
		} else {
			l, err = svc.List(ctx, kind, q)
		}
		return listLoadedMsg{seq: seq, listing: l, err: err}
	}
}

func (m *appModel) refreshIdentity() tea.Cmd {
	return m.refreshThen(func() tea.Msg { return nil })
}

// refreshThen reloads the identity before running next, so a manual reload
// also picks up role changes. The change itself arrives by subscription.
func (m *appModel) refreshThen(next tea.Cmd) tea.Cmd {
	svc, ctx, log := m.svc, m.ctx, m.log
	return func() tea.Msg {
		if err := svc.RefreshIdentity(ctx); err != nil {
			log.Warn().Err(err).Msg("refresh identity")
		}
		return next()
	}
}

func (m *appModel) backToList() tea.Cmd {
	m.view = viewList
	if m.kind == "" || m.kind == model.KindSiteSettings {
		m.view = viewMenu
		return nil
	}
	return m.loadList()
}

func (m *appModel) open(kind model.Kind, id int64) tea.Cmd {
	m.loading = true
	svc, ctx := m.svc, m.ctx
	return func() tea.Msg {
		h, err := svc.Open(ctx, kind, id)
		return handleLoadedMsg{kind: kind, id: id, h: h, err: err}
	}
}

func (m *appModel) create(kind model.Kind, authorID int64) tea.Cmd {
	if aff := perm.CreateAffordance(m.svc.Perms, kind); !aff.Enabled {
		m.setBanner("Cannot create: "+aff.Reason, true)
		return nil
	}
	m.loading = true
	svc, ctx := m.svc, m.ctx
	return func() tea.Msg {
		h, err := svc.New(ctx, kind, authorID)
		return handleLoadedMsg{kind: kind, h: h, err: err}
	}
}

func (m *appModel) save() tea.Cmd {
	h, ctx := m.h, m.ctx
	if aff := h.CanSave(); !aff.Enabled {
		m.setBanner("Cannot save: "+aff.Reason, true)
		return nil
	}
	if h.Saving() {
		return nil
	}
	if err := h.Validate(); err != nil {
		m.setBanner(err.Error(), true)
		return nil
	}
	m.loading = true
	return func() tea.Msg {
		return savedMsg{h: h, err: h.Save(ctx)}
	}
}

func (m *appModel) transition(op lifecycle.Op) tea.Cmd {
	h, ctx := m.h, m.ctx
	m.loading = true
	return func() tea.Msg {
		text, err := h.Transition(ctx, op, true)
		return transitionDoneMsg{h: h, op: op, message: text, err: err}
	}
}

func (m appModel) View() string {
	header := m.renderHeader()
	var body string
	switch m.view {
	case viewMenu:
		body = m.menu.View()
	case viewList:
		body = m.items.View()
	case viewDetail:
		body = m.renderDetail()
	case viewEdit:
		body = m.form.view(m.h, m.width)
	case viewNotFound:
		body = lipgloss.NewStyle().Bold(true).Render("Not found") + "\n\n" + m.missing
	}

	parts := []string{header}
	if m.banner != "" {
		parts = append(parts, styleBanner(m.bannerErr).Render(m.banner)+styleMuted().Render("  x: dismiss"))
	}
	parts = append(parts, body, styleMuted().Render(m.footer()))
	out := strings.Join(parts, "\n\n")

	if m.confirm.kind != modalNone {
		modal := renderConfirmModal(m.width, m.confirm)
		if m.width > 0 && m.height > 0 {
			return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal)
		}
		return modal
	}
	return out
}

func (m appModel) renderHeader() string {
	who := "not logged in"
	if id, ok := m.svc.Perms.Identity(); ok {
		who = id.FullName
		if id.Role.Name != "" {
			who += " (" + id.Role.Name + ")"
		}
	}
	crumbs := []string{"devon"}
	switch m.view {
	case viewList:
		crumbs = append(crumbs, m.listTitle())
	case viewDetail, viewEdit:
		if m.h != nil {
			crumbs = append(crumbs, string(m.h.Kind()), m.h.Title())
		}
	case viewNotFound:
		crumbs = append(crumbs, "not found")
	}
	line := styleHeader().Render(strings.Join(crumbs, " › "))
	line += "  " + styleMuted().Render(who)
	if m.loading {
		line += "  " + styleMuted().Render("loading…")
	}
	return line
}

func (m appModel) listTitle() string {
	title := m.kind.Collection()
	if m.authorID > 0 {
		title = fmt.Sprintf("poems of author #%d", m.authorID)
	}
	if m.query.Trash == "trash" {
		title += " (trash)"
	}
	return fmt.Sprintf("%s  page %d/%d  %d total", title, max(m.listing.Page, 1), m.listing.Pages(), m.listing.Count)
}

func (m appModel) footer() string {
	switch m.view {
	case viewMenu:
		return "enter: open  /: filter  q: quit"
	case viewList:
		return "enter: open  n: new  t: trash  [ ]: page  r: reload  /: filter  esc: back  q: quit"
	case viewDetail:
		return m.detailKeys()
	case viewEdit:
		return m.form.help(m.h)
	case viewNotFound:
		return "esc: back  q: quit"
	}
	return ""
}
