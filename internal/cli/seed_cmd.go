package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/source"
)

func newSeedCmd(a *App) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:         "seed",
		Short:       "Fill an empty backend with demo users, projects and tasks",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotSetup: setupHydrate},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.Workspace.Users.Len() > 0 {
				return errors.New("the backend already has users; seed only fills an empty one")
			}
			if err := seed(cmd.Context(), a.Backend, password, time.Now()); err != nil {
				return err
			}
			if err := a.Workspace.Hydrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d users, %d projects and %d tasks. Sign in with `taskhub login ada@example.com`.\n",
				a.Workspace.Users.Len(), a.Workspace.Projects.Len(), a.Workspace.Tasks.Len())
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "taskhub", "password for every demo user")
	return cmd
}

// seed writes the demo data straight to the backend.
func seed(ctx context.Context, b source.Backend, password string, now time.Time) error {
	day := now.Truncate(24 * time.Hour)
	due := func(days int) *time.Time {
		t := day.AddDate(0, 0, days)
		return &t
	}

	users := make(map[string]model.User)
	for _, u := range []model.User{
		{Name: "Ada Admin", Email: "ada@example.com", Role: model.RoleAdmin},
		{Name: "Pam Manager", Email: "pam@example.com", Role: model.RoleProjectManager},
		{Name: "Bob Member", Email: "bob@example.com", Role: model.RoleMember},
		{Name: "Vic Viewer", Email: "vic@example.com", Role: model.RoleViewer},
	} {
		u.Status = model.UserActive
		got, err := b.CreateUser(ctx, u, password)
		if err != nil {
			return fmt.Errorf("seeding user %s: %w", u.Email, err)
		}
		users[u.Email] = got
	}
	pam, bob, vic := users["pam@example.com"], users["bob@example.com"], users["vic@example.com"]

	apollo, err := b.CreateProject(ctx, model.Project{
		Title:       "Apollo",
		Description: "Customer portal relaunch",
		Status:      model.ProjectInProgress,
		StartDate:   day.AddDate(0, 0, -14),
		EndDate:     day.AddDate(0, 2, 0),
		Progress:    35,
		ManagerID:   pam.ID,
		Members:     []string{pam.ID, bob.ID, vic.ID},
	})
	if err != nil {
		return fmt.Errorf("seeding project: %w", err)
	}
	zeus, err := b.CreateProject(ctx, model.Project{
		Title:       "Zeus",
		Description: "Billing service migration",
		Status:      model.ProjectPlanning,
		ManagerID:   pam.ID,
		Members:     []string{pam.ID},
	})
	if err != nil {
		return fmt.Errorf("seeding project: %w", err)
	}

	var loginTask model.Task
	for _, t := range []model.Task{
		{ProjectID: apollo.ID, Title: "Wireframes", Priority: model.PriorityHigh, Status: model.StatusDone, AssigneeID: pam.ID},
		{ProjectID: apollo.ID, Title: "Login page", Description: "Email and password sign-in", Priority: model.PriorityCritical, Status: model.StatusInProgress, AssigneeID: bob.ID, DueDate: due(3)},
		{ProjectID: apollo.ID, Title: "Payment provider contract", Priority: model.PriorityMedium, Status: model.StatusBlocked, DueDate: due(-2)},
		{ProjectID: apollo.ID, Title: "Accessibility review", Priority: model.PriorityLow, Status: model.StatusBacklog},
		{ProjectID: zeus.ID, Title: "Inventory current invoices", Priority: model.PriorityMedium, Status: model.StatusBacklog, AssigneeID: pam.ID, DueDate: due(10)},
	} {
		got, err := b.CreateTask(ctx, t)
		if err != nil {
			return fmt.Errorf("seeding task %q: %w", t.Title, err)
		}
		if got.AssigneeID == bob.ID {
			loginTask = got
		}
	}

	if w, ok := b.(source.NotificationWriter); ok {
		if _, err := w.CreateNotification(ctx, model.Notification{
			Actor:            pam.Name,
			Verb:             "assigned you to " + loginTask.Title,
			RelatedObjectRef: model.ObjectRef("task", loginTask.ID),
			Timestamp:        now,
		}); err != nil {
			return fmt.Errorf("seeding notification: %w", err)
		}
	}
	return nil
}
