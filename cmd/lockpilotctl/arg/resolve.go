package arg

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"lockpilot/internal/ipc"
	"lockpilot/internal/services/prompt"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <prompt-id> <run_now|snooze10|cancel_action|continue_scheduled>",
	Short: "Answer a pre-action warning",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := prompt.ParseDecision(args[1])
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *ipc.Client) error {
			ok, err := c.ResolveDecision(ctx, args[0], d)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("prompt %s is no longer pending", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), "resolved", args[0], d)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}
