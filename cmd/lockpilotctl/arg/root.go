package arg

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"lockpilot/internal/ipc"
)

var (
	busName string
	timeout time.Duration
	asJSON  bool
)

var rootCmd = &cobra.Command{
	Use:   "lockpilotctl",
	Short: "lockpilotctl controls the LockPilot daemon",
	Long: `lockpilotctl talks to lockpilotd over D-Bus.
Use it to schedule, list and cancel timers and to answer pre-action warnings.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&busName, "bus", "session", "bus the daemon listens on (session|system)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "call timeout")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print raw JSON")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withClient dials the daemon and runs fn with a call-scoped context.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *ipc.Client) error) error {
	c, err := ipc.Dial(ipc.ParseBus(busName))
	if err != nil {
		return err
	}
	defer c.Close()
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	return fn(ctx, c)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
