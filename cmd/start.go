package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/pomo/internal/pomodoro"
)

var startCmd = &cobra.Command{
	Use:   "start [minutes] [label...]",
	Short: "Start a focus session",
	Long: `Start a focus session of the given length. Minutes default to
defaults.minutes from the config; the label defaults to defaults.label.
A detached timer finalizes the session when it runs out.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		minutes, label, err := parseStartArgs(args, cfg.Defaults.Minutes)
		if err != nil {
			return err
		}

		res, err := machine.Start(cmd.Context(), minutes, label)
		var active *pomodoro.AlreadyActiveError
		switch {
		case errors.As(err, &active) && active.Slot.Remaining(active.Now) <= 0:
			return fmt.Errorf("session %q already in progress and its time is up; run 'pomo status' to log it or 'pomo stop'",
				active.Slot.Label)
		case errors.As(err, &active):
			return fmt.Errorf("session %q already in progress (%s left); see 'pomo status' or 'pomo stop'",
				active.Slot.Label, pomodoro.FormatRemaining(active.Slot.Remaining(active.Now)))
		case err != nil:
			return fmt.Errorf("starting session: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Started %q for %d min (until %s).\n",
			res.Slot.Label, res.Slot.PlannedMinutes, res.Slot.Deadline().Format("15:04"))
		if res.Warning != nil {
			fmt.Fprintf(out, "⚠ Auto-stop timer unavailable: %v\n", res.Warning)
			fmt.Fprintln(out, "  The session still completes on the next 'pomo status'.")
		}
		return nil
	},
}

// parseStartArgs splits args into minutes and a label. The first argument is
// taken as minutes when it looks like a number; otherwise fallback applies
// and every argument belongs to the label.
func parseStartArgs(args []string, fallback int) (int, string, error) {
	if len(args) == 0 {
		return fallback, "", nil
	}
	minutes, err := strconv.Atoi(args[0])
	if err != nil {
		if looksNumeric(args[0]) {
			return 0, "", fmt.Errorf("%w: %q is not a whole number of minutes", pomodoro.ErrInvalidDuration, args[0])
		}
		return fallback, strings.Join(args, " "), nil
	}
	if minutes <= 0 {
		return 0, "", fmt.Errorf("%w: got %d", pomodoro.ErrInvalidDuration, minutes)
	}
	return minutes, strings.Join(args[1:], " "), nil
}

func looksNumeric(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return s != "" && strings.Trim(s, "0123456789.") == ""
}

func init() {
	rootCmd.AddCommand(startCmd)
}
