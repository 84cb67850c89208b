package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/taskhub/internal/app"
	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/notify"
	"github.com/nhle/taskhub/internal/theme"
	"github.com/nhle/taskhub/internal/view"
)

func newBoardCmd(a *App) *cobra.Command {
	var plain bool
	var sortSpec, search string

	cmd := &cobra.Command{
		Use:         "board [project]",
		Short:       "Show a project's kanban board",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{annotTUI: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := ""
			if len(args) == 1 {
				ref = args[0]
			}
			if ref == "" && !plain && a.Interactive {
				return a.runBoard(cmd.Context(), "")
			}
			project, err := a.resolveProject(ref)
			if err != nil {
				return err
			}
			if !plain && a.Interactive {
				return a.runBoard(cmd.Context(), project.ID)
			}

			filter := view.TaskFilter{SearchTerm: search}
			cols := a.Workspace.Board(project.ID, filter, view.ParseSort(sortSpec))
			printBoard(cmd.OutOrStdout(), project, cols, userNames(a.Workspace.Users.GetAll()), time.Now())
			return nil
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "print the board instead of opening the interactive view")
	cmd.Flags().StringVar(&sortSpec, "sort", "", "sort within columns, e.g. priority or due_date:desc")
	cmd.Flags().StringVar(&search, "search", "", "only tasks whose title or description contains this text")
	return cmd
}

// runBoard opens the interactive board, starting on projectID if set.
func (a *App) runBoard(ctx context.Context, projectID string) error {
	interval := time.Duration(a.Config.Notifications.PollIntervalSec) * time.Second
	poller := notify.NewPoller(a.Workspace.Notifications, interval, a.Log)

	m := app.New(a.Workspace, a.Actor, poller)
	if projectID != "" {
		m = m.WithProject(projectID)
	}
	return app.Run(ctx, m)
}

// resolveProject finds a visible project by id or case-insensitive title.
// An empty ref selects the first visible project.
func (a *App) resolveProject(ref string) (model.Project, error) {
	projects := a.Workspace.VisibleProjects(a.Actor, false)
	if ref == "" {
		if len(projects) == 0 {
			return model.Project{}, fmt.Errorf("%s cannot see any project", a.Actor.Name)
		}
		return projects[0], nil
	}
	for _, p := range projects {
		if p.ID == ref || strings.EqualFold(p.Title, ref) {
			return p, nil
		}
	}
	return model.Project{}, fmt.Errorf("project not found: %q", ref)
}

func printBoard(w io.Writer, project model.Project, cols view.Columns, names map[string]string, now time.Time) {
	fmt.Fprintln(w, theme.HeaderStyle.Render(project.Title))
	for _, st := range model.TaskStatuses {
		tasks := cols[st]
		fmt.Fprintf(w, "\n%s (%d)\n", theme.StatusStyle(st).Render(st.Label()), len(tasks))
		for _, t := range tasks {
			line := fmt.Sprintf("  #%s %s %s", t.ID, theme.PriorityBadge(t.Priority), t.Title)
			if t.AssigneeID != "" {
				line += " @" + names[t.AssigneeID]
			}
			if t.DueDate != nil {
				due := "due " + formatDate(t.DueDate)
				if t.IsOverdue(now) {
					due = theme.OverdueStyle.Render(due + " (overdue)")
				}
				line += "  " + due
			}
			fmt.Fprintln(w, line)
		}
	}
}
