package arg

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"lockpilot/internal/ipc"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print pre-action warnings as they are raised",
	Long: `watch prints every warning the daemon raises together with its prompt id.
Answer a warning with "lockpilotctl resolve <prompt-id> <decision>".`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := ipc.Dial(ipc.ParseBus(busName))
		if err != nil {
			return err
		}
		defer c.Close()
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		out := cmd.OutOrStdout()
		return c.Watch(ctx, func(s ipc.Signal) {
			if asJSON {
				_ = printJSON(out, s)
				return
			}
			printSignal(out, s)
		})
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func printSignal(out io.Writer, s ipc.Signal) {
	switch s.Name {
	case ipc.SignalPreActionWarning:
		w := s.Warning
		fmt.Fprintf(out, "warning %s: %s in %d min (timer %s, answer within %ds)\n",
			w.PromptID, w.Action, w.WarningMinutes, w.TimerID, w.CountdownSeconds)
	case ipc.SignalClosePrompt:
		fmt.Fprintf(out, "close prompts for timer %s\n", s.TimerID)
	}
}
