package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"devon-cli/internal/api"
	"devon-cli/internal/config"
	"devon-cli/internal/format"
	"devon-cli/internal/lifecycle"
	"devon-cli/internal/logging"
	"devon-cli/internal/mutate"
	"devon-cli/internal/perm"
	"devon-cli/internal/store"
	"devon-cli/internal/tui"
)

type App struct {
	APIURL     string
	DataDir    string
	ConfigFile string
	LogLevel   string
	LogFile    string
	PrettyJSON bool
	Format     string
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "devon",
		Short:        "Poetry archive admin console and reading portal client",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start the interactive console
  devon

  # Log in once; the session is kept in ~/.devon
  devon login --email editor@example.com

  # Scriptable commands
  devon authors list --trash trash
  devon authors edit 7 --editor biography_md

  # Direct lookup (shortcut for: devon poems show 12)
  devon poem:12
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive console.
			if len(args) == 0 {
				return runTUI(cmd, app)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&app.APIURL, "api", "", "API base URL (env DEVON_API_URL, default "+config.DefaultAPIURL+")")
	cmd.PersistentFlags().StringVar(&app.DataDir, "data-dir", "", "Local state directory (env DEVON_DATA_DIR, default ~/.devon)")
	cmd.PersistentFlags().StringVar(&app.ConfigFile, "config", envOr("DEVON_CONFIG", ""), "Config file (default <data-dir>/config.yaml)")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", "", "Log level (trace|debug|info|warn|error|off)")
	cmd.PersistentFlags().StringVar(&app.LogFile, "log-file", "", "Log file, or - for stderr (default <data-dir>/devon.log)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("DEVON_FORMAT", "json"), "Output format (json|edn|table)")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if !format.Valid(app.Format) {
			return fmt.Errorf("unknown format: %s", app.Format)
		}
		return nil
	}

	cmd.AddCommand(newLoginCmd(app))
	cmd.AddCommand(newLogoutCmd(app))
	cmd.AddCommand(newWhoamiCmd(app))
	cmd.AddCommand(newPasswdCmd(app))
	cmd.AddCommand(newForgotPasswordCmd(app))
	cmd.AddCommand(newHomeCmd(app))
	cmd.AddCommand(newAuthorsCmd(app))
	cmd.AddCommand(newPoemsCmd(app))
	cmd.AddCommand(newRolesCmd(app))
	cmd.AddCommand(newEmployeesCmd(app))
	cmd.AddCommand(newSettingsCmd(app))
	cmd.AddCommand(newDraftsCmd(app))
	cmd.AddCommand(newReadCmd(app))
	cmd.AddCommand(newDoctorCmd(app))
	cmd.AddCommand(newDocsCmd(app))
	cmd.AddCommand(newTUICmd(app))

	return cmd
}

func newTUICmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Start the interactive console",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, app)
		},
	}
}

func runTUI(cmd *cobra.Command, app *App) error {
	rt, err := app.open(cmd, true)
	if err != nil {
		return writeErr(cmd, err)
	}
	defer rt.Close()
	// The console asks through its own modal.
	rt.svc.Confirm = lifecycle.AlwaysConfirm
	return tui.Run(cmd.Context(), rt.svc, rt.cfg.PageSize, rt.log.Logger)
}

// runtime is everything one command invocation needs. Close releases the
// local database and the log file.
type runtime struct {
	cfg    *config.Config
	log    *logging.Logger
	store  *store.Store
	client *api.Client
	perms  *perm.Evaluator
	svc    *mutate.Service
}

var errNotLoggedIn = errors.New("not logged in; run `devon login`")

// open resolves configuration and opens local state and the API client.
// With auth set, the saved session is restored and the identity refreshed;
// a missing or expired session is an error.
func (a *App) open(cmd *cobra.Command, auth bool) (*runtime, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(cmd.Flags(), a.ConfigFile)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	st, err := store.Open(ctx, cfg.DataDir)
	if err != nil {
		_ = log.Close()
		return nil, err
	}
	rt := &runtime{cfg: cfg, log: log, store: st, perms: perm.NewEvaluator()}

	if n, err := st.PruneDrafts(ctx, cfg.Retention()); err != nil {
		log.Warn().Err(err).Msg("prune drafts")
	} else if n > 0 {
		log.Info().Int("removed", n).Msg("pruned drafts")
	}

	visitor, err := st.VisitorID(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("visitor id")
	}
	rt.client, err = api.New(cfg.APIURL,
		api.WithTimeout(cfg.HTTPTimeout),
		api.WithLogger(log.Logger),
		api.WithSessionStore(st),
		api.WithVisitorID(visitor),
	)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.svc = &mutate.Service{
		Client:  rt.client,
		Perms:   rt.perms,
		Drafts:  st,
		Confirm: stdinConfirmer(cmd),
		Log:     log.Logger,
	}

	if !auth {
		return rt, nil
	}
	ok, err := rt.client.Restore(ctx)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("restore session: %w", err)
	}
	if !ok {
		rt.Close()
		return nil, errNotLoggedIn
	}
	id, err := rt.client.Me(ctx)
	if err != nil {
		rt.Close()
		if errors.Is(err, api.ErrUnauthorized) {
			return nil, errNotLoggedIn
		}
		return nil, err
	}
	rt.perms.Set(id)
	return rt, nil
}

func (r *runtime) Close() {
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.log.Warn().Err(err).Msg("close store")
		}
	}
	_ = r.log.Close()
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

// envelope is the shape of every command's output: {"data", "meta", "_hints"}.
// With --format table, view (or data itself when it is tabular) is rendered.
type envelope struct {
	Data  any            `json:"data"`
	Meta  map[string]any `json:"meta,omitempty"`
	Hints []string       `json:"_hints,omitempty"`

	view format.Tabular
}

func (e envelope) tabular() format.Tabular {
	if e.view != nil {
		return e.view
	}
	if t, ok := e.Data.(format.Tabular); ok {
		return t
	}
	return nil
}

func (e envelope) Headers() []string {
	if t := e.tabular(); t != nil {
		return t.Headers()
	}
	return []string{"data"}
}

func (e envelope) Rows() [][]string {
	if t := e.tabular(); t != nil {
		return t.Rows()
	}
	b, err := json.Marshal(e.Data)
	if err != nil {
		return [][]string{{err.Error()}}
	}
	return [][]string{{string(b)}}
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), describe(err))
	return err
}
