package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/taskhub/internal/model"
)

func newProjectCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"project"},
		Short:   "List and manage projects",
	}
	cmd.AddCommand(
		newProjectListCmd(a),
		newProjectAddCmd(a),
		newProjectUpdateCmd(a),
		newProjectRemoveCmd(a),
	)
	return cmd
}

func newProjectListCmd(a *App) *cobra.Command {
	var mine bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the projects you can see",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names := userNames(a.Workspace.Users.GetAll())
			counts := make(map[string]int)
			for _, t := range a.Workspace.Tasks.GetAll() {
				counts[t.ProjectID]++
			}

			var rows [][]string
			for _, p := range a.Workspace.VisibleProjects(a.Actor, mine) {
				rows = append(rows, []string{
					p.ID,
					p.Title,
					p.Status,
					orDash(names[p.ManagerID]),
					strconv.Itoa(len(p.Members)),
					strconv.Itoa(counts[p.ID]),
				})
			}
			renderTable(cmd.OutOrStdout(), []string{"ID", "TITLE", "STATUS", "MANAGER", "MEMBERS", "TASKS"}, rows)
			return nil
		},
	}
	cmd.Flags().BoolVar(&mine, "mine", false, "only projects you manage or belong to")
	return cmd
}

// projectFlags are shared by add and update.
type projectFlags struct {
	title, description, status, manager string
	members                             []string
	progress                            int
}

func (f *projectFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "project title")
	cmd.Flags().StringVar(&f.description, "description", "", "project description")
	cmd.Flags().StringVar(&f.status, "status", "", "Planning, In Progress, On Hold or Completed")
	cmd.Flags().StringVar(&f.manager, "manager", "", "manager email")
	cmd.Flags().StringSliceVar(&f.members, "member", nil, "member email (repeatable)")
	cmd.Flags().IntVar(&f.progress, "progress", 0, "progress percentage")
}

// apply copies the flags that were set onto p.
func (f *projectFlags) apply(a *App, cmd *cobra.Command, p *model.Project) error {
	if cmd.Flags().Changed("title") {
		p.Title = f.title
	}
	if cmd.Flags().Changed("description") {
		p.Description = f.description
	}
	if cmd.Flags().Changed("status") {
		p.Status = f.status
	}
	if cmd.Flags().Changed("progress") {
		p.Progress = f.progress
	}
	if cmd.Flags().Changed("manager") {
		id, err := a.userID(f.manager)
		if err != nil {
			return err
		}
		p.ManagerID = id
	}
	if cmd.Flags().Changed("member") {
		p.Members = nil
		for _, email := range f.members {
			id, err := a.userID(email)
			if err != nil {
				return err
			}
			p.Members = append(p.Members, id)
		}
	}
	return nil
}

func newProjectAddCmd(a *App) *cobra.Command {
	var f projectFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := model.Project{Status: model.ProjectPlanning}
			if err := f.apply(a, cmd, &p); err != nil {
				return err
			}
			if len(p.Members) == 0 {
				p.Members = []string{a.Actor.ID}
			}
			got, err := a.Workspace.CreateProject(cmd.Context(), a.Actor, p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created project #%s %s\n", got.ID, got.Title)
			return nil
		},
	}
	f.register(cmd)
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newProjectUpdateCmd(a *App) *cobra.Command {
	var f projectFlags

	cmd := &cobra.Command{
		Use:   "update <project>",
		Short: "Change a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.resolveProject(args[0])
			if err != nil {
				return err
			}
			if err := f.apply(a, cmd, &p); err != nil {
				return err
			}
			got, err := a.Workspace.UpdateProject(cmd.Context(), a.Actor, p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated project #%s %s\n", got.ID, got.Title)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newProjectRemoveCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <project>",
		Aliases: []string{"delete"},
		Short:   "Delete a project and its tasks",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.resolveProject(args[0])
			if err != nil {
				return err
			}
			if err := a.Workspace.DeleteProject(cmd.Context(), a.Actor, p.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted project #%s %s\n", p.ID, p.Title)
			return nil
		},
	}
}

// userID resolves an email (or a raw id) to a user id.
func (a *App) userID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", nil
	}
	if u, ok := a.Workspace.UserByEmail(ref); ok {
		return u.ID, nil
	}
	if _, err := a.Workspace.Users.Get(ref); err == nil {
		return ref, nil
	}
	return "", fmt.Errorf("user not found: %q", ref)
}
