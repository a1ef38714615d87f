package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"devon-cli/internal/api"
	"devon-cli/internal/editsession"
	"devon-cli/internal/model"
)

type profileView struct {
	model.Identity
}

func (p profileView) Headers() []string { return []string{"field", "value"} }

func (p profileView) Rows() [][]string {
	id := "-"
	if p.ID != nil {
		id = formatID(*p.ID)
	}
	rows := [][]string{
		{"id", id},
		{"name", p.FullName},
		{"email", p.Email},
		{"role", p.Role.Name},
	}
	perms := make([]string, 0, len(model.Modules))
	for _, mod := range model.Modules {
		c := p.Permissions[mod]
		perms = append(perms, string(mod)+":"+flag(c.Create, 'c')+flag(c.Read, 'r')+flag(c.Update, 'u')+flag(c.Delete, 'd'))
	}
	rows = append(rows, []string{"permissions", strings.Join(perms, " ")})
	if p.MustChangePassword {
		rows = append(rows, []string{"must change password", "yes"})
	}
	return rows
}

func flag(b bool, c byte) string {
	if b {
		return string(c)
	}
	return "-"
}

func newLoginCmd(app *App) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the dashboard and keep the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := app.open(cmd, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer rt.Close()

			p := promptFor(cmd)
			if strings.TrimSpace(email) == "" {
				if email, err = p.Line("Email: "); err != nil {
					return writeErr(cmd, err)
				}
			}
			password, err := p.Secret("Password: ")
			if err != nil {
				return writeErr(cmd, err)
			}
			id, err := rt.client.Login(cmd.Context(), strings.TrimSpace(email), password)
			if err != nil {
				return writeErr(cmd, err)
			}
			rt.perms.Set(id)
			rt.log.Info().Str("email", id.Email).Msg("logged in")

			var hints []string
			if id.MustChangePassword {
				hints = append(hints, "Your password is temporary: devon passwd")
			}
			return writeOut(cmd, app, envelope{Data: id, Hints: hints, view: profileView{id}})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email (prompted when empty)")
	return cmd
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the dashboard session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := app.open(cmd, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer rt.Close()
			if ok, err := rt.client.Restore(cmd.Context()); err != nil || !ok {
				return writeOut(cmd, app, envelope{Data: map[string]any{"logged_out": true}})
			}
			// The local session is dropped either way; a remote failure is only logged.
			if err := rt.client.Logout(cmd.Context()); err != nil {
				rt.log.Warn().Err(err).Msg("logout")
			}
			rt.perms.Clear()
			return writeOut(cmd, app, envelope{Data: map[string]any{"logged_out": true}})
		},
	}
}

func newWhoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in profile and its permissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := app.open(cmd, true)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer rt.Close()
			id, _ := rt.perms.Identity()
			return writeOut(cmd, app, envelope{Data: id, view: profileView{id}})
		},
	}
}

func readNewPassword(cmd *cobra.Command) (string, string, error) {
	p := promptFor(cmd)
	pw, err := p.Secret("New password: ")
	if err != nil {
		return "", "", err
	}
	confirm, err := p.Secret("Repeat password: ")
	if err != nil {
		return "", "", err
	}
	if err := editsession.CheckNewPassword(pw, confirm); err != nil {
		return "", "", err
	}
	return pw, confirm, nil
}

func newPasswdCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "passwd",
		Short: "Change your password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := app.open(cmd, true)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer rt.Close()
			pw, confirm, err := readNewPassword(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			msg, err := rt.client.ChangePassword(cmd.Context(), pw, confirm)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, envelope{Data: map[string]any{"message": msg}})
		},
	}
}

func newForgotPasswordCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "forgot-password <email>",
		Short: "Ask the server to send a password reset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := app.open(cmd, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer rt.Close()
			email := strings.TrimSpace(args[0])
			if !strings.Contains(email, "@") {
				return writeErr(cmd, errUsage("not an email address: %q", email))
			}
			msg, err := rt.client.ForgotPassword(cmd.Context(), email)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, envelope{Data: map[string]any{"message": msg}})
		},
	}
}

func newHomeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "home",
		Short: "Show the dashboard summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := app.open(cmd, true)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer rt.Close()
			home, err := rt.client.Home(cmd.Context())
			if err != nil {
				if errors.Is(err, api.ErrUnauthorized) {
					return writeErr(cmd, errNotLoggedIn)
				}
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, envelope{Data: home, view: homeView(home)})
		},
	}
}
