package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/pomo/internal/pomodoro"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "End the running session early and log it",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := machine.Stop(cmd.Context())
		if err != nil {
			return fmt.Errorf("stopping session: %w", err)
		}
		out := cmd.OutOrStdout()
		if res.Outcome != pomodoro.Finalized {
			fmt.Fprintln(out, "Nothing to stop.")
			return nil
		}
		s := res.Session
		fmt.Fprintf(out, "Stopped %q after %s (%s).\n",
			s.Label, time.Duration(s.ElapsedSeconds)*time.Second, s.Reason())
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Discard the running session without logging it",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := machine.Cancel(cmd.Context())
		if err != nil {
			return fmt.Errorf("cancelling session: %w", err)
		}
		out := cmd.OutOrStdout()
		if res.Outcome != pomodoro.Cancelled {
			fmt.Fprintln(out, "Nothing to cancel.")
			return nil
		}
		fmt.Fprintf(out, "Cancelled %q. Nothing was logged.\n", res.Slot.Label)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(cancelCmd)
}
