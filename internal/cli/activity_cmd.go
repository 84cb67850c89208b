package cli

import (
	"time"

	"github.com/spf13/cobra"
)

func newActivityCmd(a *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show the most recent activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var rows [][]string
			for _, rec := range a.Workspace.RecentActivity(limit) {
				rows = append(rows, []string{
					rec.Timestamp.Local().Format(time.DateTime),
					rec.User,
					rec.Action,
					rec.Target,
				})
			}
			renderTable(cmd.OutOrStdout(), []string{"WHEN", "WHO", "ACTION", "TARGET"}, rows)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of records")
	return cmd
}
