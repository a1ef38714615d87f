package cli

import (
	"github.com/spf13/cobra"

	"devon-cli/internal/model"
)

func newSettingsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Site settings (title, contacts, logo)",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the site settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := app.open(cmd, true)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer rt.Close()
			h, err := rt.svc.Open(cmd.Context(), model.KindSiteSettings, 0)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, showEnvelope(h))
		},
	})

	var f editFlags
	edit := &cobra.Command{
		Use:   "edit",
		Short: "Change the site settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := app.open(cmd, true)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer rt.Close()
			h, err := rt.svc.Open(cmd.Context(), model.KindSiteSettings, 0)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer f.guard(cmd, rt, h)()
			if err := f.apply(cmd, h); err != nil {
				return writeErr(cmd, err)
			}
			return save(cmd, app, h, false)
		},
	}
	f.register(edit, "logo", false)
	cmd.AddCommand(edit)
	return cmd
}
