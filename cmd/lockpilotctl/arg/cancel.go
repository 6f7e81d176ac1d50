package arg

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"lockpilot/internal/ipc"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <timer-id>...",
	Short: "Cancel one or more timers",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *ipc.Client) error {
			for _, id := range args {
				found, err := c.CancelTimer(ctx, id)
				if err != nil {
					return fmt.Errorf("cancel %s: %w", id, err)
				}
				if found {
					fmt.Fprintln(cmd.OutOrStdout(), "cancelled", id)
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "not found", id)
				}
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(cancelCmd)
}
