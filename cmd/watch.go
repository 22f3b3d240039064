package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/pomo/internal/tui"
)

var plainOutput bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show a live countdown of the running session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if plainOutput || !term.IsTerminal(os.Stdout.Fd()) {
			res, err := machine.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("reading session status: %w", err)
			}
			printStatus(cmd.OutOrStdout(), res)
			return nil
		}
		return tui.Run(cmd.Context(), machine, dataDir)
	},
}

func init() {
	watchCmd.Flags().BoolVar(&plainOutput, "plain", false, "print the status once instead of opening the countdown")
	rootCmd.AddCommand(watchCmd)
}
