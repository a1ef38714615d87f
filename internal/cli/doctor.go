package cli

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"devon-cli/internal/api"
	"devon-cli/internal/docs"
	"devon-cli/internal/format"
	"devon-cli/internal/store"
)

type doctorView store.DoctorReport

func (v doctorView) Headers() []string { return []string{"level", "code", "key", "message"} }

func (v doctorView) Rows() [][]string {
	rows := make([][]string, 0, len(v.Issues))
	for _, it := range v.Issues {
		rows = append(rows, []string{string(it.Level), it.Code, it.Key, it.Message})
	}
	return rows
}

var errDoctorFailed = errors.New("doctor found errors")

func newDoctorCmd(app *App) *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check local state and the connection to the API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := app.open(cmd, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer rt.Close()

			rep := rt.store.Doctor(cmd.Context(), rt.cfg.Retention())
			if !offline {
				checkAPI(cmd, rt, &rep)
			}
			meta := map[string]any{"data_dir": rt.cfg.DataDir, "api": rt.cfg.APIURL}
			if rt.cfg.File != "" {
				meta["config"] = rt.cfg.File
			}
			if err := writeOut(cmd, app, envelope{Data: rep, Meta: meta, view: doctorView(rep)}); err != nil {
				return err
			}
			if rep.HasErrors() {
				return errDoctorFailed
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the API checks")
	return cmd
}

// checkAPI reports whether the server answers and whether the saved session
// is still accepted.
func checkAPI(cmd *cobra.Command, rt *runtime, rep *store.DoctorReport) {
	ctx := cmd.Context()
	restored, err := rt.client.Restore(ctx)
	if err != nil {
		rep.Issues = append(rep.Issues, store.DoctorIssue{Level: store.DoctorIssueLevelError, Code: "session_unreadable", Message: err.Error()})
		return
	}
	_, err = rt.client.Me(ctx)
	switch {
	case err == nil:
	case errors.Is(err, api.ErrUnauthorized):
		if restored {
			rep.Issues = append(rep.Issues, store.DoctorIssue{Level: store.DoctorIssueLevelWarn, Code: "session_rejected", Message: "saved session is no longer accepted; run `devon login`"})
		}
	case errors.Is(err, api.ErrTransport):
		rep.Issues = append(rep.Issues, store.DoctorIssue{Level: store.DoctorIssueLevelError, Code: "api_unreachable", Message: err.Error()})
	default:
		rep.Issues = append(rep.Issues, store.DoctorIssue{Level: store.DoctorIssueLevelWarn, Code: "api_unexpected", Message: err.Error()})
	}
}

func newDocsCmd(app *App) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "docs [topic]",
		Short: "Show help topics (permissions, trash, drafts, config, portal)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return writeOut(cmd, app, envelope{Data: map[string]any{"topics": docs.Topics()}})
			}

			topic := args[0]
			body, ok := docs.Get(topic)
			if !ok {
				return writeErr(cmd, errUsage("unknown docs topic: %q (run `devon docs` to list topics)", topic))
			}

			switch {
			case raw:
				_, err := fmt.Fprint(cmd.OutOrStdout(), body)
				return err
			case app.Format == format.Table:
				out, err := glamour.Render(body, "notty")
				if err != nil {
					return writeErr(cmd, err)
				}
				_, err = fmt.Fprint(cmd.OutOrStdout(), out)
				return err
			}
			return writeOut(cmd, app, envelope{Data: map[string]any{"topic": topic, "markdown": body}})
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print raw markdown (no JSON envelope)")

	return cmd
}
