package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/taskhub/internal/model"
)

func newLoginCmd(a *App) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:         "login <email>",
		Short:       "Verify your password and remember you as the acting user",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{annotSetup: setupHydrate},
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				var err error
				if password, err = a.promptPassword("Password for " + args[0]); err != nil {
					return err
				}
			}
			u, err := a.Workspace.Authenticate(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}

			a.Config.Session.UserEmail = u.Email
			if err := model.SaveConfig(a.ConfigPath, a.Config); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", u.Name, u.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	return cmd
}
