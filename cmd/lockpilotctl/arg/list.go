package arg

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"lockpilot/internal/ipc"
	"lockpilot/internal/timer"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List scheduled timers",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *ipc.Client) error {
			ts, err := c.ListTimers(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), ts)
			}
			return writeTable(cmd.OutOrStdout(), ts)
		})
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func writeTable(out io.Writer, ts []timer.Timer) error {
	if len(ts) == 0 {
		_, err := fmt.Fprintln(out, "no timers")
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tACTION\tNEXT\tREPEAT\tWARN\tMESSAGE")
	for _, t := range ts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID,
			t.Action,
			t.TargetTime.Local().Format(time.DateTime),
			describeRecurrence(t.Recurrence),
			describeWarnings(t.PreWarningMinutes),
			t.Message,
		)
	}
	return w.Flush()
}

func describeRecurrence(r *timer.Recurrence) string {
	if r == nil {
		return "-"
	}
	switch r.Preset {
	case timer.PresetEveryNHours:
		if r.IntervalHours != nil {
			return fmt.Sprintf("every %dh", *r.IntervalHours)
		}
	case timer.PresetEveryNMinutes:
		if r.IntervalMinutes != nil {
			return fmt.Sprintf("every %dm", *r.IntervalMinutes)
		}
	case timer.PresetSpecificDays:
		return strings.Join(r.DaysOfWeek, ",")
	}
	return string(r.Preset)
}

func describeWarnings(ws []int) string {
	if len(ws) == 0 {
		return "-"
	}
	parts := make([]string, len(ws))
	for i, w := range ws {
		parts[i] = fmt.Sprintf("%dm", w)
	}
	return strings.Join(parts, ",")
}
