package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"devon-cli/internal/api"
	"devon-cli/internal/model"
)

// newReadCmd is the public reading portal. It never needs a login; views
// and reactions are attributed to this machine's visitor id.
func newReadCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read",
		Short: "Browse the public reading portal",
	}
	cmd.AddCommand(newReadAuthorsCmd(app))
	cmd.AddCommand(newReadAuthorCmd(app))
	cmd.AddCommand(newReadPoemCmd(app))
	cmd.AddCommand(newReadRandomCmd(app))
	cmd.AddCommand(newReadSearchCmd(app))
	cmd.AddCommand(newReadReactCmd(app))
	return cmd
}

type portalFlags struct {
	ordering string
	page     int
	pageSize int
}

func (f *portalFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.ordering, "ordering", "", "Server ordering, e.g. full_name or -popularity")
	cmd.Flags().IntVar(&f.page, "page", 1, "Page number")
	cmd.Flags().IntVar(&f.pageSize, "page-size", 0, "Page size (default from config, max 100)")
}

func (f portalFlags) query(q string, defaultSize int) api.PortalQuery {
	size := f.pageSize
	if size <= 0 {
		size = defaultSize
	}
	return api.PortalQuery{Q: strings.TrimSpace(q), Ordering: f.ordering, Page: max(f.page, 1), PageSize: size}
}

func pageMeta[T any](p model.Page[T]) map[string]any {
	return map[string]any{"count": p.Count, "page": p.Page, "pages": p.Pages()}
}

func newReadAuthorsCmd(app *App) *cobra.Command {
	var (
		f portalFlags
		q string
	)
	cmd := &cobra.Command{
		Use:   "authors",
		Short: "List published authors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := app.open(cmd, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer rt.Close()
			page, err := rt.client.Portal().Authors(cmd.Context(), f.query(q, rt.cfg.PageSize))
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, envelope{Data: page.Results, Meta: pageMeta(page), view: portalAuthorsView(page.Results)})
		},
	}
	cmd.Flags().StringVarP(&q, "query", "q", "", "Search by name")
	f.register(cmd)
	return cmd
}

func newReadAuthorCmd(app *App) *cobra.Command {
	var f portalFlags
	cmd := &cobra.Command{
		Use:   "author <id|slug>",
		Short: "Show an author with their poems",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			rt, err := app.open(cmd, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer rt.Close()

			portal := rt.client.Portal()
			var (
				author model.PortalAuthor
				poems  model.Page[model.PortalPoem]
			)
			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() (err error) {
				author, err = portal.Author(ctx, id)
				return err
			})
			g.Go(func() (err error) {
				poems, err = portal.AuthorPoems(ctx, id, f.query("", rt.cfg.PageSize))
				return err
			})
			if err := g.Wait(); err != nil {
				return writeErr(cmd, err)
			}
			meta := pageMeta(poems)
			meta["path"] = authorPath(author)
			return writeOut(cmd, app, envelope{
				Data: map[string]any{"author": author, "poems": poems.Results},
				Meta: meta,
				view: portalPoemsView(poems.Results),
			})
		},
	}
	f.register(cmd)
	return cmd
}

// openPoem loads a poem, counts the view and fetches its neighbors within
// the author's list. A failed view count is logged, not fatal.
func openPoem(ctx context.Context, rt *runtime, p model.PortalPoem) (envelope, error) {
	portal := rt.client.Portal()
	id, authorID := p.ID, p.Author.ID
	g, gctx := errgroup.WithContext(ctx)
	var (
		nb    model.Neighbors
		views = p.Views
	)
	g.Go(func() error {
		res, err := portal.RegisterView(gctx, id)
		if err != nil {
			rt.log.Warn().Err(err).Int64("poem", id).Msg("register view")
			return nil
		}
		views = res.Views
		return nil
	})
	if authorID > 0 {
		g.Go(func() (err error) {
			nb, err = portal.Neighbors(gctx, id, authorID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return envelope{}, err
	}
	p.Views = views
	return envelope{
		Data: map[string]any{"poem": p, "neighbors": nb},
		Meta: map[string]any{"path": poemPath(p)},
		view: poemView{PortalPoem: p, Neighbors: nb},
	}, nil
}

func newReadPoemCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "poem <id|slug>",
		Short: "Read a poem",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			rt, err := app.open(cmd, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer rt.Close()
			p, err := rt.client.Portal().Poem(cmd.Context(), id)
			if err != nil {
				return writeErr(cmd, err)
			}
			env, err := openPoem(cmd.Context(), rt, p)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, env)
		},
	}
}

func newReadRandomCmd(app *App) *cobra.Command {
	var authors int
	cmd := &cobra.Command{
		Use:   "random",
		Short: "Read a random poem, or list random authors with --authors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := app.open(cmd, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer rt.Close()
			portal := rt.client.Portal()
			if authors > 0 {
				list, err := portal.RandomAuthors(cmd.Context(), authors, 0)
				if err != nil {
					return writeErr(cmd, err)
				}
				return writeOut(cmd, app, envelope{Data: list, view: portalAuthorsView(list)})
			}
			p, err := portal.RandomPoem(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			env, err := openPoem(cmd.Context(), rt, p)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, env)
		},
	}
	cmd.Flags().IntVar(&authors, "authors", 0, "List this many random authors instead")
	return cmd
}

type searchView model.SearchResult

func (v searchView) Headers() []string { return []string{"type", "id", "title", "path"} }

func (v searchView) Rows() [][]string {
	var rows [][]string
	for _, a := range v.Authors.Results {
		rows = append(rows, []string{"author", formatID(a.ID), a.FullName, authorPath(a)})
	}
	for _, p := range v.Poems.Results {
		rows = append(rows, []string{"poem", formatID(p.ID), p.Title, poemPath(p)})
	}
	return rows
}

func newReadSearchCmd(app *App) *cobra.Command {
	var f portalFlags
	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Search authors and poems",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := strings.Join(args, " ")
			if strings.TrimSpace(q) == "" {
				return writeErr(cmd, errUsage("search text is empty"))
			}
			rt, err := app.open(cmd, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer rt.Close()
			res, err := rt.client.Portal().Search(cmd.Context(), f.query(q, rt.cfg.PageSize))
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, envelope{
				Data: res,
				Meta: map[string]any{"authors": res.Authors.Count, "poems": res.Poems.Count},
				view: searchView(res),
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newReadReactCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "react <poem> <heart|fire|like|sad|star>",
		Short: "Toggle your reaction on a poem",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			typ, ok := model.ParseReactionType(args[1])
			if !ok {
				return writeErr(cmd, errUsage("unknown reaction %q", args[1]))
			}
			rt, err := app.open(cmd, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer rt.Close()
			sum, err := rt.client.Portal().ToggleReaction(cmd.Context(), id, typ)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, envelope{Data: sum, Meta: map[string]any{"poem": id, "type": typ}})
		},
	}
}
