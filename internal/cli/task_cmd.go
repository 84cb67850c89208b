package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/theme"
	"github.com/nhle/taskhub/internal/ui/taskform"
	"github.com/nhle/taskhub/internal/view"
)

func newTaskCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task"},
		Short:   "List and manage tasks",
	}
	cmd.AddCommand(
		newTaskListCmd(a),
		newTaskAddCmd(a),
		newTaskUpdateCmd(a),
		newTaskMoveCmd(a),
		newTaskRemoveCmd(a),
	)
	return cmd
}

func newTaskListCmd(a *App) *cobra.Command {
	var project, status, priority, assignee, search, sortSpec string
	var mine bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks with optional filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var filter view.TaskFilter
			filter.SearchTerm = search

			if project != "" {
				p, err := a.resolveProject(project)
				if err != nil {
					return err
				}
				filter.ProjectID = p.ID
			}
			if status != "" {
				st, ok := model.ParseTaskStatus(status)
				if !ok {
					return fmt.Errorf("unknown status %q", status)
				}
				filter.Status = st
			}
			if priority != "" {
				pr, ok := model.ParsePriority(priority)
				if !ok {
					return fmt.Errorf("unknown priority %q", priority)
				}
				filter.Priority = pr
			}
			if mine {
				filter.AssigneeID = a.Actor.ID
			} else if assignee != "" {
				id, err := a.userID(assignee)
				if err != nil {
					return err
				}
				filter.AssigneeID = id
			}

			visible := make(map[string]string)
			for _, p := range a.Workspace.VisibleProjects(a.Actor, false) {
				visible[p.ID] = p.Title
			}
			names := userNames(a.Workspace.Users.GetAll())

			var rows [][]string
			for _, t := range a.Workspace.ListTasks(filter, view.ParseSort(sortSpec)) {
				title, ok := visible[t.ProjectID]
				if !ok {
					continue
				}
				rows = append(rows, []string{
					t.ID,
					t.Title,
					title,
					t.Status.Label(),
					string(t.Priority),
					orDash(names[t.AssigneeID]),
					formatDate(t.DueDate),
				})
			}
			renderTable(cmd.OutOrStdout(), []string{"ID", "TITLE", "PROJECT", "STATUS", "PRIORITY", "ASSIGNEE", "DUE"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "project id or title")
	cmd.Flags().StringVar(&status, "status", "", "backlog, in_progress, blocked or done")
	cmd.Flags().StringVar(&priority, "priority", "", "critical, high, medium or low")
	cmd.Flags().StringVar(&assignee, "assignee", "", "assignee email")
	cmd.Flags().BoolVar(&mine, "mine", false, "only tasks assigned to you")
	cmd.Flags().StringVar(&search, "search", "", "text to look for in title and description")
	cmd.Flags().StringVar(&sortSpec, "sort", "", "title, priority, status, due_date or created_at, optionally :desc")
	return cmd
}

// taskFlags are shared by add and update.
type taskFlags struct {
	project, title, description, priority, status, assignee, due string
}

func (f *taskFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.project, "project", "", "project id or title")
	cmd.Flags().StringVar(&f.title, "title", "", "task title")
	cmd.Flags().StringVar(&f.description, "description", "", "task description")
	cmd.Flags().StringVar(&f.priority, "priority", "", "critical, high, medium or low")
	cmd.Flags().StringVar(&f.status, "status", "", "backlog, in_progress, blocked or done")
	cmd.Flags().StringVar(&f.assignee, "assignee", "", "assignee email, or empty to unassign")
	cmd.Flags().StringVar(&f.due, "due", "", "due date YYYY-MM-DD, or empty to clear")
}

func (f *taskFlags) apply(a *App, cmd *cobra.Command, t *model.Task) error {
	changed := cmd.Flags().Changed
	if changed("project") {
		p, err := a.resolveProject(f.project)
		if err != nil {
			return err
		}
		t.ProjectID = p.ID
	}
	if changed("title") {
		t.Title = f.title
	}
	if changed("description") {
		t.Description = f.description
	}
	if changed("priority") {
		pr, ok := model.ParsePriority(f.priority)
		if !ok {
			return fmt.Errorf("unknown priority %q", f.priority)
		}
		t.Priority = pr
	}
	if changed("status") {
		st, ok := model.ParseTaskStatus(f.status)
		if !ok {
			return fmt.Errorf("unknown status %q", f.status)
		}
		t.Status = st
	}
	if changed("assignee") {
		id, err := a.userID(f.assignee)
		if err != nil {
			return err
		}
		t.AssigneeID = id
	}
	if changed("due") {
		due, err := parseDate(f.due)
		if err != nil {
			return err
		}
		t.DueDate = due
	}
	return nil
}

func newTaskAddCmd(a *App) *cobra.Command {
	var f taskFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a task; prompts for the fields when --title is omitted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t := model.Task{Priority: model.PriorityMedium, Status: model.StatusBacklog}

			if !cmd.Flags().Changed("title") {
				if !a.Interactive {
					return errors.New("--title is required")
				}
				projects := a.Workspace.VisibleProjects(a.Actor, false)
				defaultProject := ""
				if p, err := a.resolveProject(f.project); err == nil {
					defaultProject = p.ID
				}
				entered, err := taskform.Prompt(projects, a.Workspace.Users.GetAll(), defaultProject)
				if err != nil {
					return err
				}
				t = entered
			} else if err := f.apply(a, cmd, &t); err != nil {
				return err
			}

			if t.ProjectID == "" {
				p, err := a.resolveProject("")
				if err != nil {
					return err
				}
				t.ProjectID = p.ID
			}

			got, err := a.Workspace.CreateTask(cmd.Context(), a.Actor, t)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created task #%s %s\n", got.ID, got.Title)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newTaskUpdateCmd(a *App) *cobra.Command {
	var f taskFlags

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.Workspace.Tasks.Get(args[0])
			if err != nil {
				return err
			}
			if err := f.apply(a, cmd, &t); err != nil {
				return err
			}
			got, err := a.Workspace.UpdateTask(cmd.Context(), a.Actor, t)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated task #%s %s\n", got.ID, got.Title)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newTaskMoveCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> <status>",
		Short: "Move a task to another column",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, ok := model.ParseTaskStatus(args[1])
			if !ok {
				return fmt.Errorf("unknown status %q", args[1])
			}
			got, err := a.Workspace.MoveTask(cmd.Context(), a.Actor, args[0], st)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved task #%s to %s\n", got.ID, theme.StatusStyle(got.Status).Render(got.Status.Label()))
			return nil
		},
	}
}

func newTaskRemoveCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.Workspace.DeleteTask(cmd.Context(), a.Actor, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted task #%s\n", args[0])
			return nil
		},
	}
}
