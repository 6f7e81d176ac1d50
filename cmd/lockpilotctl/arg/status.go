package arg

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"lockpilot/internal/ipc"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check that lockpilotd is running and show its state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *ipc.Client) error {
			st, err := c.Status(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), st)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "lockpilotd %s, up since %s\n", st.Version, st.StartedAt.Local().Format(time.DateTime))
			fmt.Fprintf(out, "timers: %d  pending prompts: %d  dry-run: %t  timezone: %s\n",
				st.Scheduler.ActiveTimers, st.Scheduler.PendingPrompts, st.DryRun, st.Scheduler.Timezone)
			if st.Scheduler.Dirty {
				fmt.Fprintln(out, "warning: last save failed; retrying")
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
