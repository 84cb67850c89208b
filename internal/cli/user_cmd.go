package cli

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/taskhub/internal/model"
)

func newUserCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "users",
		Aliases: []string{"user"},
		Short:   "List and manage user accounts",
	}
	cmd.AddCommand(
		newUserListCmd(a),
		newUserAddCmd(a),
		newUserUpdateCmd(a),
		newUserRemoveCmd(a),
	)
	return cmd
}

func newUserListCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var rows [][]string
			for _, u := range a.Workspace.Users.GetAll() {
				rows = append(rows, []string{u.ID, u.Name, u.Email, string(u.Role), string(u.Status)})
			}
			renderTable(cmd.OutOrStdout(), []string{"ID", "NAME", "EMAIL", "ROLE", "STATUS"}, rows)
			return nil
		},
	}
}

func newUserAddCmd(a *App) *cobra.Command {
	var name, email, role, password string

	cmd := &cobra.Command{
		Use:         "add",
		Short:       "Create a user; the first user becomes an admin",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotSetup: setupHydrate},
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, ok := model.ParseRole(role)
			if !ok {
				return fmt.Errorf("unknown role %q", role)
			}
			if password == "" {
				var err error
				if password, err = a.promptPassword("Password for " + email); err != nil {
					return err
				}
			}
			u := model.User{Name: name, Email: email, Role: r, Status: model.UserActive}

			// Nobody can grant permissions on an empty workspace, so the
			// first account is written straight to the backend.
			if a.Workspace.Users.Len() == 0 {
				u.Role = model.RoleAdmin
				if err := u.Validate(); err != nil {
					return err
				}
				got, err := a.Backend.CreateUser(cmd.Context(), u, password)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created admin #%s %s\n", got.ID, got.Email)
				return a.Workspace.Hydrate(cmd.Context())
			}

			actor, err := a.resolveActor()
			if err != nil {
				return err
			}
			got, err := a.Workspace.CreateUser(cmd.Context(), actor, u, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created user #%s %s (%s)\n", got.ID, got.Email, got.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&role, "role", string(model.RoleMember), "admin, project_manager, member or viewer")
	cmd.Flags().StringVar(&password, "password", "", "initial password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newUserUpdateCmd(a *App) *cobra.Command {
	var name, role string
	var inactive bool

	cmd := &cobra.Command{
		Use:   "update <email>",
		Short: "Change a user's name, role or status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, ok := a.Workspace.UserByEmail(args[0])
			if !ok {
				return fmt.Errorf("user not found: %q", args[0])
			}
			if cmd.Flags().Changed("name") {
				u.Name = name
			}
			if cmd.Flags().Changed("role") {
				r, ok := model.ParseRole(role)
				if !ok {
					return fmt.Errorf("unknown role %q", role)
				}
				u.Role = r
			}
			if cmd.Flags().Changed("inactive") {
				u.Status = model.UserActive
				if inactive {
					u.Status = model.UserInactive
				}
			}
			got, err := a.Workspace.UpdateUser(cmd.Context(), a.Actor, u)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated user #%s %s (%s, %s)\n", got.ID, got.Email, got.Role, got.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", "", "admin, project_manager, member or viewer")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "deactivate (or --inactive=false to reactivate)")
	return cmd
}

func newUserRemoveCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <email>",
		Aliases: []string{"delete"},
		Short:   "Delete a user",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, ok := a.Workspace.UserByEmail(args[0])
			if !ok {
				return fmt.Errorf("user not found: %q", args[0])
			}
			if err := a.Workspace.DeleteUser(cmd.Context(), a.Actor, u.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted user %s\n", u.Email)
			return nil
		},
	}
}

// promptPassword asks for a secret on the terminal.
func (a *App) promptPassword(title string) (string, error) {
	if !a.Interactive {
		return "", errors.New("--password is required")
	}
	var pw string
	err := huh.NewInput().
		Title(title).
		EchoMode(huh.EchoModePassword).
		Value(&pw).
		Validate(func(s string) error {
			if s == "" {
				return errors.New("password is required")
			}
			return nil
		}).
		Run()
	return pw, err
}
