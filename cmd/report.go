package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/pomo/internal/report"
)

var statsDays int

var todayCmd = &cobra.Command{
	Use:   "today",
	Short: "Show today's focused time and sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := machine.History(cmd.Context())
		if err != nil {
			return fmt.Errorf("reading session log: %w", err)
		}
		return report.WriteToday(cmd.OutOrStdout(), report.Today(log, newClock().Now()))
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show focused minutes per day",
	RunE: func(cmd *cobra.Command, args []string) error {
		days := statsDays
		if !cmd.Flags().Changed("days") {
			days = cfg.Stats.Days
		}
		if days <= 0 {
			return fmt.Errorf("--days must be positive, got %d", days)
		}
		log, err := machine.History(cmd.Context())
		if err != nil {
			return fmt.Errorf("reading session log: %w", err)
		}
		return report.WriteStats(cmd.OutOrStdout(), report.LastNDays(log, newClock().Now(), days))
	},
}

func init() {
	statsCmd.Flags().IntVarP(&statsDays, "days", "d", report.DefaultDays, "number of days to show, ending today")
	rootCmd.AddCommand(todayCmd)
	rootCmd.AddCommand(statsCmd)
}
