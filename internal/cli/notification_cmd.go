package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/taskhub/internal/notify"
)

func newNotificationCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"inbox"},
		Short:   "Read and acknowledge notifications",
	}
	cmd.AddCommand(
		newNotificationListCmd(a),
		newNotificationReadCmd(a),
		newNotificationReadAllCmd(a),
	)
	return cmd
}

func newNotificationListCmd(a *App) *cobra.Command {
	var unread bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notifications, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n := a.Workspace.Notifications
			if n.State() == notify.StateLoadFailed {
				return fmt.Errorf("notifications unavailable: %w", n.Err())
			}

			var rows [][]string
			for _, it := range n.Notifications() {
				if unread && it.IsRead {
					continue
				}
				read := ""
				if !it.IsRead {
					read = "●"
				}
				rows = append(rows, []string{
					read,
					it.ID,
					it.Actor,
					it.Verb,
					orDash(it.RelatedObjectRef),
					it.Timestamp.Local().Format(time.DateTime),
				})
			}
			renderTable(cmd.OutOrStdout(), []string{"", "ID", "FROM", "WHAT", "REF", "WHEN"}, rows)
			fmt.Fprintf(cmd.OutOrStdout(), "%d unread\n", a.Workspace.UnreadCount())
			return nil
		},
	}
	cmd.Flags().BoolVar(&unread, "unread", false, "only unread notifications")
	return cmd
}

func newNotificationReadCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "read <id>",
		Short: "Mark one notification read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.Workspace.Notifications.MarkRead(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Marked %s read, %d unread\n", args[0], a.Workspace.UnreadCount())
			return nil
		},
	}
}

func newNotificationReadAllCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "read-all",
		Short: "Mark every notification read",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.Workspace.Notifications.MarkAllRead(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All notifications read")
			return nil
		},
	}
}
