package cmd

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/pomo/internal/dispatch"
	"github.com/fakeyudi/pomo/internal/pomodoro"
)

// processAlive is replaced in tests.
var processAlive = dispatch.Alive

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running session, completing it if its time is up",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := machine.Status(cmd.Context())
		if err != nil {
			return fmt.Errorf("reading session status: %w", err)
		}
		printStatus(cmd.OutOrStdout(), res)
		return nil
	},
}

func printStatus(out io.Writer, res pomodoro.Result) {
	switch res.Outcome {
	case pomodoro.Running:
		slot := res.Slot
		fmt.Fprintf(out, "%s remaining · %s (%d min)\n",
			pomodoro.FormatRemaining(res.Remaining), slot.Label, slot.PlannedMinutes)
		fmt.Fprintf(out, "  started %s (%s)\n", humanize.Time(slot.StartTime), slot.StartTime.Format("15:04"))
		switch {
		case slot.TimerPID == 0:
			fmt.Fprintln(out, "  timer: none, run 'pomo status' after the deadline to complete it")
		case processAlive(slot.TimerPID):
			fmt.Fprintf(out, "  timer: running (pid %d)\n", slot.TimerPID)
		default:
			fmt.Fprintf(out, "  timer: gone (pid %d), run 'pomo status' after the deadline to complete it\n", slot.TimerPID)
		}
	case pomodoro.JustCompleted:
		s := res.Session
		fmt.Fprintf(out, "Session %q completed (%d min, finished %s).\n",
			s.Label, s.PlannedMinutes, s.EndTime.Format("15:04"))
	default:
		fmt.Fprintln(out, "No active session.")
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
