package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/pomo/internal/dispatch"
	"github.com/fakeyudi/pomo/internal/logging"
	"github.com/fakeyudi/pomo/internal/pomodoro"
)

var autostopDelay int64

// autostopCmd is the detached timer spawned by start. It prints nothing;
// everything goes to the log file.
var autostopCmd = &cobra.Command{
	Use:    dispatch.CallbackCommand + " <session-start>",
	Short:  "Finalize a session when its time is up (used by start)",
	Hidden: true,
	Args:   cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		identity, err := dispatch.ParseIdentity(args[0])
		if err != nil {
			logging.Error("autostop: bad identity", "err", err)
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logging.Debug("autostop armed", "identity", identity, "delay_seconds", autostopDelay)
		err = dispatch.Wait(ctx, time.Duration(autostopDelay)*time.Second, func(ctx context.Context) (time.Duration, bool, error) {
			res, err := machine.AutoStop(ctx, identity)
			if err != nil {
				return 0, true, err
			}
			switch res.Outcome {
			case pomodoro.NotYet:
				logging.Debug("autostop fired early, re-arming", "remaining", res.Remaining)
				return res.Remaining, false, nil
			case pomodoro.Finalized:
				logging.Info("autostop completed session", "label", res.Session.Label)
			default:
				logging.Debug("autostop found nothing to do", "outcome", res.Outcome)
			}
			return 0, true, nil
		})
		if err != nil {
			logging.Error("autostop failed", "identity", identity, "err", err)
		}
		return err
	},
}

func init() {
	autostopCmd.Flags().Int64Var(&autostopDelay, "delay", 0, "seconds to wait before the first attempt")
	rootCmd.AddCommand(autostopCmd)
}
