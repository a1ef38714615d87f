package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"devon-cli/internal/api"
	"devon-cli/internal/editor"
	"devon-cli/internal/editsession"
	"devon-cli/internal/lifecycle"
	"devon-cli/internal/model"
	"devon-cli/internal/mutate"
	"devon-cli/internal/navguard"
	"devon-cli/internal/slug"
)

func formatID(id int64) string { return strconv.FormatInt(id, 10) }

// parseID accepts "12", "#12" and "12-some-slug".
func parseID(arg string) (int64, error) {
	id, err := slug.ParseID(strings.TrimPrefix(strings.TrimSpace(arg), "#"))
	if err != nil {
		return 0, errUsage("%v", err)
	}
	return id, nil
}

func newAuthorsCmd(app *App) *cobra.Command {
	cmd := newKindCmd(app, model.KindAuthor, "Author commands")
	cmd.AddCommand(newAuthorPoemsCmd(app))
	cmd.AddCommand(newAuthorAddPoemCmd(app))
	return cmd
}

func newPoemsCmd(app *App) *cobra.Command {
	return newKindCmd(app, model.KindPoem, "Poem commands")
}

func newRolesCmd(app *App) *cobra.Command {
	return newKindCmd(app, model.KindRole, "Role commands")
}

func newEmployeesCmd(app *App) *cobra.Command {
	cmd := newKindCmd(app, model.KindEmployee, "Employee commands")
	cmd.AddCommand(newEmployeeResetPasswordCmd(app))
	return cmd
}

func newKindCmd(app *App, kind model.Kind, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   kind.Collection(),
		Short: short,
	}
	cmd.AddCommand(newListCmd(app, kind))
	cmd.AddCommand(newShowCmd(app, kind))
	cmd.AddCommand(newCreateCmd(app, kind))
	cmd.AddCommand(newEditCmd(app, kind))
	cmd.AddCommand(newLifecycleCmd(app, kind, lifecycle.OpSoftDelete))
	cmd.AddCommand(newLifecycleCmd(app, kind, lifecycle.OpRestore))
	cmd.AddCommand(newLifecycleCmd(app, kind, lifecycle.OpHardDelete))
	return cmd
}

type listFlags struct {
	q         string
	sort      string
	published string
	status    string
	trash     string
	page      int
	pageSize  int
	author    int64
}

func (f *listFlags) register(cmd *cobra.Command, kind model.Kind) {
	cmd.Flags().StringVarP(&f.q, "query", "q", "", "Search text")
	cmd.Flags().StringVar(&f.sort, "sort", "", "Sort order (alphabetic|oldest|newest)")
	switch kind {
	case model.KindAuthor, model.KindPoem:
		cmd.Flags().StringVar(&f.published, "published", "", "Filter (all|published|unpublished)")
	default:
		cmd.Flags().StringVar(&f.status, "status", "", "Filter (all|active|inactive)")
	}
	if kind == model.KindPoem {
		cmd.Flags().Int64Var(&f.author, "author", 0, "Only poems of this author id")
	}
	cmd.Flags().StringVar(&f.trash, "trash", "", "Which records (active|trash|all)")
	cmd.Flags().IntVar(&f.page, "page", 1, "Page number")
	cmd.Flags().IntVar(&f.pageSize, "page-size", 0, "Page size (default from config, max 100)")
}

func (f listFlags) query(defaultSize int) (api.ListQuery, error) {
	switch f.trash {
	case "", "active", "trash", "all":
	default:
		return api.ListQuery{}, errUsage("--trash must be active, trash or all")
	}
	size := f.pageSize
	if size <= 0 {
		size = defaultSize
	}
	return api.ListQuery{
		Q:         f.q,
		Sort:      f.sort,
		Published: f.published,
		Status:    f.status,
		Trash:     f.trash,
		AuthorID:  f.author,
		Page:      max(f.page, 1),
		PageSize:  min(size, api.MaxPageSize),
	}, nil
}

func listEnvelope(l mutate.Listing, next string) envelope {
	meta := map[string]any{"count": l.Count, "page": l.Page, "pages": l.Pages()}
	var hints []string
	if l.Page < l.Pages() && next != "" {
		hints = append(hints, next+" --page "+strconv.Itoa(l.Page+1))
	}
	return envelope{Data: l.Items, Meta: meta, Hints: hints, view: l}
}

func newListCmd(app *App, kind model.Kind) *cobra.Command {
	var f listFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List " + kind.Collection(),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := app.open(cmd, true)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer rt.Close()
			q, err := f.query(rt.cfg.PageSize)
			if err != nil {
				return writeErr(cmd, err)
			}
			l, err := rt.svc.List(cmd.Context(), kind, q)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, listEnvelope(l, "devon "+kind.Collection()+" list"))
		},
	}
	f.register(cmd, kind)
	return cmd
}

// actionsMeta lists the lifecycle actions shown for the current operator.
func actionsMeta(h mutate.Handle) []map[string]any {
	aff := h.Affordances()
	var out []map[string]any
	for _, op := range []lifecycle.Op{lifecycle.OpSoftDelete, lifecycle.OpRestore, lifecycle.OpHardDelete} {
		a := aff.For(op)
		if !a.Visible {
			continue
		}
		m := map[string]any{"action": op.String(), "enabled": a.Enabled}
		if a.Reason != "" {
			m["reason"] = a.Reason
		}
		out = append(out, m)
	}
	return out
}

func showEnvelope(h mutate.Handle) envelope {
	meta := map[string]any{"kind": h.Kind(), "id": h.ID()}
	if h.Kind().Manageable() {
		meta["state"] = h.State().String()
		meta["actions"] = actionsMeta(h)
	}
	if aff := h.CanSave(); !aff.Enabled {
		meta["read_only"] = aff.Reason
	}
	return envelope{Data: h.Entity(), Meta: meta, view: h.Details()}
}

func newShowCmd(app *App, kind model.Kind) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one " + string(kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			rt, err := app.open(cmd, true)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer rt.Close()
			h, err := rt.svc.Open(cmd.Context(), kind, id)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, showEnvelope(h))
		},
	}
}

// editFlags are the ways a command can change fields.
type editFlags struct {
	sets       []string
	editFields []string
	attach     string
	noSave     bool
}

func (f *editFlags) register(cmd *cobra.Command, attachment string, drafts bool) {
	cmd.Flags().StringArrayVar(&f.sets, "set", nil, "Set a field: name=value (repeatable)")
	cmd.Flags().StringArrayVar(&f.editFields, "editor", nil, "Edit a text field in $EDITOR (repeatable)")
	if attachment != "" {
		cmd.Flags().StringVar(&f.attach, attachment, "", "Upload a "+attachment+" image from this path")
	}
	if drafts {
		cmd.Flags().BoolVar(&f.noSave, "no-save", false, "Keep long-text changes as local drafts without saving")
	}
}

func (f editFlags) apply(cmd *cobra.Command, h mutate.Handle) error {
	ctx := cmd.Context()
	for _, s := range f.sets {
		name, raw, err := mutate.ParseAssignment(s)
		if err != nil {
			return err
		}
		if err := h.SetFieldText(ctx, name, raw); err != nil {
			return err
		}
	}
	for _, name := range f.editFields {
		fl, ok := fieldOf(h, name)
		if !ok {
			return errUsage("unknown field %q", name)
		}
		if fl.Type.Name != editsession.Text.Name && fl.Type.Name != editsession.LongText.Name {
			return errUsage("%s is not a text field", name)
		}
		text, changed, err := editor.EditText(ctx, mutate.FormatValue(fl, h.Value(name)), ".md", cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		if err != nil {
			return fmt.Errorf("edit %s: %w", name, err)
		}
		if changed {
			if err := h.SetFieldText(ctx, name, text); err != nil {
				return err
			}
		}
	}
	if f.attach != "" {
		if err := h.StageAttachment(editsession.Attachment{Path: f.attach}); err != nil {
			return err
		}
	}
	return nil
}

// guard protects --editor runs from interrupts. The command continues on a
// context only the guard cancels, so SIGINT with unsaved changes asks first.
func (f editFlags) guard(cmd *cobra.Command, rt *runtime, h mutate.Handle) (stop func()) {
	if len(f.editFields) == 0 {
		return func() {}
	}
	ctx, cancel := context.WithCancel(context.WithoutCancel(cmd.Context()))
	cmd.SetContext(ctx)
	g := navguard.New(leaveConfirmer(cmd), rt.log.Logger)
	detach := g.Attach(h)
	unwatch := g.WatchSignals(ctx, func() {
		rt.log.Info().Str("kind", string(h.Kind())).Int64("id", h.ID()).Msg("edit interrupted")
		cancel()
	})
	return func() {
		unwatch()
		detach()
		cancel()
	}
}

func fieldOf(h mutate.Handle, name string) (editsession.Field, bool) {
	for _, f := range h.Fields() {
		if f.Name == name {
			return f, true
		}
	}
	return editsession.Field{}, false
}

// save writes h and renders the outcome. With noSave, draft fields stay in
// the local store for a later edit or the console.
func save(cmd *cobra.Command, app *App, h mutate.Handle, noSave bool) error {
	changed := h.Changed()
	if noSave {
		if err := h.DraftError(); err != nil {
			return writeErr(cmd, err)
		}
		return writeOut(cmd, app, envelope{
			Data:  map[string]any{"kind": h.Kind(), "id": h.ID(), "changed": changed, "saved": false},
			Hints: []string{"Only long-text fields are kept as drafts; other changes were dropped."},
		})
	}
	if !h.Creating() && !h.IsDirty() {
		env := showEnvelope(h)
		env.Hints = []string{"Nothing changed."}
		return writeOut(cmd, app, env)
	}
	if err := h.Save(cmd.Context()); err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) && h.DraftError() == nil {
			rtHint(cmd, "Long-text changes are kept as drafts; run the same edit again to retry.")
		}
		return writeErr(cmd, err)
	}
	env := showEnvelope(h)
	env.Meta["changed"] = changed
	return writeOut(cmd, app, env)
}

func rtHint(cmd *cobra.Command, s string) {
	fmt.Fprintln(cmd.ErrOrStderr(), s)
}

func newCreateCmd(app *App, kind model.Kind) *cobra.Command {
	var (
		f        editFlags
		authorID int64
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a " + string(kind),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := app.open(cmd, true)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer rt.Close()
			h, err := rt.svc.New(cmd.Context(), kind, authorID)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer f.guard(cmd, rt, h)()
			if err := f.apply(cmd, h); err != nil {
				return writeErr(cmd, err)
			}
			return save(cmd, app, h, f.noSave)
		},
	}
	attachment := ""
	if kind == model.KindAuthor {
		attachment = "photo"
	}
	f.register(cmd, attachment, kind == model.KindAuthor || kind == model.KindPoem)
	if kind == model.KindPoem {
		cmd.Flags().Int64Var(&authorID, "author", 0, "Create under this author")
	}
	return cmd
}

func newEditCmd(app *App, kind model.Kind) *cobra.Command {
	var f editFlags
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a " + string(kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			rt, err := app.open(cmd, true)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer rt.Close()
			h, err := rt.svc.Open(cmd.Context(), kind, id)
			if err != nil {
				return writeErr(cmd, err)
			}
			if aff := h.CanSave(); !aff.Enabled && !f.noSave {
				return writeErr(cmd, fmt.Errorf("%s #%d is read only: %s: %w", kind, id, aff.Reason, editsession.ErrNotPermitted))
			}
			defer f.guard(cmd, rt, h)()
			if err := f.apply(cmd, h); err != nil {
				return writeErr(cmd, err)
			}
			return save(cmd, app, h, f.noSave)
		},
	}
	attachment := ""
	if kind == model.KindAuthor {
		attachment = "photo"
	}
	f.register(cmd, attachment, kind == model.KindAuthor || kind == model.KindPoem)
	return cmd
}

var opCommands = map[lifecycle.Op]struct{ use, short string }{
	lifecycle.OpSoftDelete: {"delete <id>", "Move a %s to the trash"},
	lifecycle.OpRestore:    {"restore <id>", "Restore a %s from the trash"},
	lifecycle.OpHardDelete: {"purge <id>", "Delete a trashed %s permanently"},
}

func newLifecycleCmd(app *App, kind model.Kind, op lifecycle.Op) *cobra.Command {
	var yes bool
	spec := opCommands[op]
	cmd := &cobra.Command{
		Use:   spec.use,
		Short: fmt.Sprintf(spec.short, kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			rt, err := app.open(cmd, true)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer rt.Close()
			h, err := rt.svc.Open(cmd.Context(), kind, id)
			if err != nil {
				return writeErr(cmd, err)
			}
			msg, err := h.Transition(cmd.Context(), op, yes)
			if errors.Is(err, lifecycle.ErrCanceled) {
				return writeOut(cmd, app, envelope{Data: map[string]any{"kind": kind, "id": id, "canceled": true}})
			}
			if errors.Is(err, lifecycle.ErrStale) {
				rt.log.Warn().Err(err).Msg(op.String())
				return writeOut(cmd, app, envelope{
					Data:  map[string]any{"kind": kind, "id": id, "message": msg, "stale": true},
					Hints: []string{"devon " + kind.Collection() + " show " + formatID(id)},
				})
			}
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, envelope{Data: map[string]any{
				"kind":    kind,
				"id":      id,
				"state":   h.State().String(),
				"message": msg,
			}})
		},
	}
	if op.NeedsConfirm() {
		cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	}
	return cmd
}

func newAuthorPoemsCmd(app *App) *cobra.Command {
	var f listFlags
	cmd := &cobra.Command{
		Use:   "poems <author-id>",
		Short: "List the poems of one author",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			rt, err := app.open(cmd, true)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer rt.Close()
			q, err := f.query(rt.cfg.PageSize)
			if err != nil {
				return writeErr(cmd, err)
			}
			l, err := rt.svc.AuthorPoems(cmd.Context(), id, q)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, listEnvelope(l, "devon authors poems "+formatID(id)))
		},
	}
	f.register(cmd, model.KindAuthor)
	return cmd
}

func newAuthorAddPoemCmd(app *App) *cobra.Command {
	var f editFlags
	cmd := &cobra.Command{
		Use:   "add-poem <author-id>",
		Short: "Create a poem under an author",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			rt, err := app.open(cmd, true)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer rt.Close()
			h, err := rt.svc.New(cmd.Context(), model.KindPoem, id)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer f.guard(cmd, rt, h)()
			if err := f.apply(cmd, h); err != nil {
				return writeErr(cmd, err)
			}
			return save(cmd, app, h, f.noSave)
		},
	}
	f.register(cmd, "", true)
	return cmd
}

func newEmployeeResetPasswordCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-password <id>",
		Short: "Set a new password for an employee",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			rt, err := app.open(cmd, true)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer rt.Close()
			if !rt.perms.HasPermission(model.ModuleEmployees, model.ActionUpdate) {
				return writeErr(cmd, fmt.Errorf("reset password: %w", editsession.ErrNotPermitted))
			}
			pw, confirm, err := readNewPassword(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			msg, err := rt.client.ResetEmployeePassword(cmd.Context(), id, pw, confirm)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, envelope{Data: map[string]any{"id": id, "message": msg}})
		},
	}
}
