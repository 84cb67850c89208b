package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nhle/taskhub/internal/credential"
	"github.com/nhle/taskhub/internal/model"
)

func newConfigCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and initialise configuration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:         "show",
			Short:       "Print the effective configuration",
			Args:        cobra.NoArgs,
			Annotations: map[string]string{annotSetup: setupConfig},
			RunE: func(cmd *cobra.Command, _ []string) error {
				out, err := yaml.Marshal(a.Config)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", a.ConfigPath, out)
				return nil
			},
		},
		&cobra.Command{
			Use:         "init",
			Short:       "Write the default configuration file",
			Args:        cobra.NoArgs,
			Annotations: map[string]string{annotSetup: setupConfig},
			RunE: func(cmd *cobra.Command, _ []string) error {
				if _, err := os.Stat(a.ConfigPath); err == nil {
					return fmt.Errorf("%s already exists", a.ConfigPath)
				} else if !errors.Is(err, os.ErrNotExist) {
					return err
				}
				if err := model.SaveConfig(a.ConfigPath, a.Config); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", a.ConfigPath)
				return nil
			},
		},
		&cobra.Command{
			Use:         "set-secret <api_token|email_password|server_token> <value>",
			Short:       "Store a secret in the system keyring",
			Args:        cobra.ExactArgs(2),
			Annotations: map[string]string{annotSetup: setupConfig},
			RunE: func(cmd *cobra.Command, args []string) error {
				switch args[0] {
				case credential.KeyAPIToken, credential.KeyEmailPassword, credential.KeyServerToken:
				default:
					return fmt.Errorf("unknown secret %q", args[0])
				}
				if err := credential.Set(args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stored %s (override with %s)\n", args[0], credential.EnvVar(args[0]))
				return nil
			},
		},
	)
	return cmd
}
