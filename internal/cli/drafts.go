package cli

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"devon-cli/internal/store"
)

type draftsView []store.Draft

func (v draftsView) Headers() []string { return []string{"key", "updated", "preview"} }

func (v draftsView) Rows() [][]string {
	rows := make([][]string, 0, len(v))
	for _, d := range v {
		rows = append(rows, []string{d.Key.String(), d.UpdatedAt.Local().Format(time.DateTime), preview(d.Value, 40)})
	}
	return rows
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

type draftJSON struct {
	Key       string    `json:"key"`
	UpdatedAt time.Time `json:"updated_at"`
	Length    int       `json:"length"`
	Value     string    `json:"value"`
}

func newDraftsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drafts",
		Short: "Unsaved long-text drafts kept on this machine",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List drafts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := app.open(cmd, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer rt.Close()
			drafts, err := rt.store.ListDrafts(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			out := make([]draftJSON, 0, len(drafts))
			for _, d := range drafts {
				out = append(out, draftJSON{Key: d.Key.String(), UpdatedAt: d.UpdatedAt, Length: len([]rune(d.Value)), Value: d.Value})
			}
			return writeOut(cmd, app, envelope{
				Data: out,
				Meta: map[string]any{"count": len(out)},
				view: draftsView(drafts),
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear [key]",
		Short: "Discard one draft, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var key *store.DraftKey
			if len(args) == 1 {
				k, err := store.ParseDraftKey(args[0])
				if err != nil {
					return writeErr(cmd, errUsage("%v", err))
				}
				key = &k
			}
			rt, err := app.open(cmd, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer rt.Close()
			if key != nil {
				if err := rt.store.DeleteDraft(cmd.Context(), *key); err != nil {
					return writeErr(cmd, err)
				}
				return writeOut(cmd, app, envelope{Data: map[string]any{"cleared": key.String()}})
			}
			n, err := rt.store.ClearDrafts(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, envelope{Data: map[string]any{"cleared": n}})
		},
	})

	var (
		ttl  time.Duration
		maxN int
	)
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Drop drafts older than the TTL and beyond the entry cap",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := app.open(cmd, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer rt.Close()
			p := rt.cfg.Retention()
			if cmd.Flags().Changed("ttl") {
				p.TTL = ttl
			}
			if cmd.Flags().Changed("max") {
				p.MaxEntries = maxN
			}
			n, err := rt.store.PruneDrafts(cmd.Context(), p)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, envelope{Data: map[string]any{
				"removed":     n,
				"ttl":         p.TTL.String(),
				"max_entries": strconv.Itoa(p.MaxEntries),
			}})
		},
	}
	prune.Flags().DurationVar(&ttl, "ttl", 0, "Override the configured draft TTL")
	prune.Flags().IntVar(&maxN, "max", 0, "Override the configured entry cap")
	cmd.AddCommand(prune)
	return cmd
}
