package arg

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"lockpilot/internal/ipc"
	"lockpilot/internal/timer"
)

var createOpts struct {
	action  string
	at      string
	repeat  string
	every   int
	days    []string
	warn    []int
	message string
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Schedule a timer",
	Example: `  lockpilotctl create --action lock --at 22:30 --warn 10,1
  lockpilotctl create --action popup --at +25m --message "stretch"
  lockpilotctl create --action shutdown --at 23:00 --repeat specific_days --days fri,sat`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := buildRequest(time.Now())
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *ipc.Client) error {
			t, err := c.CreateTimer(ctx, req)
			switch {
			case errors.Is(err, ipc.ErrNotPersisted):
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", err)
			case err != nil:
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), t)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s at %s\n", t.ID, t.Action, t.TargetTime.Local().Format(time.RFC1123))
			return nil
		})
	},
}

func init() {
	f := createCmd.Flags()
	f.StringVarP(&createOpts.action, "action", "a", "popup", "popup|lock|shutdown|reboot")
	f.StringVar(&createOpts.at, "at", "", "RFC3339 time, HH:MM (next occurrence) or +duration")
	f.StringVar(&createOpts.repeat, "repeat", "", "daily|weekdays|specific_days|every_n_hours|every_n_minutes")
	f.IntVar(&createOpts.every, "every", 0, "interval for every_n_hours/every_n_minutes")
	f.StringSliceVar(&createOpts.days, "days", nil, "weekdays for specific_days (mon,tue,...)")
	f.IntSliceVar(&createOpts.warn, "warn", nil, "minutes before the action to warn (lock/shutdown/reboot)")
	f.StringVarP(&createOpts.message, "message", "m", "", "popup text")
	_ = createCmd.MarkFlagRequired("at")
	rootCmd.AddCommand(createCmd)
}

func buildRequest(now time.Time) (timer.Request, error) {
	action, err := timer.ParseAction(createOpts.action)
	if err != nil {
		return timer.Request{}, err
	}
	at, err := parseAt(createOpts.at, now)
	if err != nil {
		return timer.Request{}, err
	}
	rec, err := buildRecurrence(createOpts.repeat, createOpts.every, createOpts.days)
	if err != nil {
		return timer.Request{}, err
	}
	req := timer.Request{
		Action:            action,
		TargetTime:        at.Format(time.RFC3339),
		Recurrence:        rec,
		PreWarningMinutes: createOpts.warn,
	}
	if createOpts.message != "" {
		msg := createOpts.message
		req.Message = &msg
	}
	return req, nil
}

// parseAt accepts an RFC3339 instant, "+<duration>" from now, or a local
// wall clock "HH:MM" meaning its next occurrence.
func parseAt(raw string, now time.Time) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("--at is required")
	}
	if d, ok := strings.CutPrefix(s, "+"); ok {
		dur, err := time.ParseDuration(d)
		if err != nil || dur <= 0 {
			return time.Time{}, fmt.Errorf("invalid relative time %q", raw)
		}
		return now.Add(dur).Truncate(time.Second), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	hm, err := time.ParseInLocation("15:04", s, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q (use RFC3339, HH:MM or +duration)", raw)
	}
	t := time.Date(now.Year(), now.Month(), now.Day(), hm.Hour(), hm.Minute(), 0, 0, now.Location())
	if !t.After(now) {
		t = t.AddDate(0, 0, 1)
	}
	return t, nil
}

func buildRecurrence(preset string, every int, days []string) (*timer.Recurrence, error) {
	switch timer.Preset(strings.ToLower(strings.TrimSpace(preset))) {
	case "":
		return nil, nil
	case timer.PresetDaily:
		return timer.Daily(), nil
	case timer.PresetWeekdays:
		return timer.Weekdays(), nil
	case timer.PresetSpecificDays:
		if len(days) == 0 {
			return nil, fmt.Errorf("--days is required with --repeat specific_days")
		}
		return timer.SpecificDays(days...), nil
	case timer.PresetEveryNHours:
		return timer.EveryNHours(every), nil
	case timer.PresetEveryNMinutes:
		return timer.EveryNMinutes(every), nil
	default:
		return nil, fmt.Errorf("unknown --repeat %q", preset)
	}
}
