package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/pomo/internal/report"
	"github.com/fakeyudi/pomo/internal/session"
)

var (
	exportFormat string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the session history",
	RunE: func(cmd *cobra.Command, args []string) error {
		renderer, err := report.RendererFor(exportFormat)
		if err != nil {
			return err
		}
		log, err := machine.History(cmd.Context())
		if err != nil {
			return fmt.Errorf("reading session log: %w", err)
		}
		data, err := renderer.Render(report.NewExport(log, newClock().Now()))
		if err != nil {
			return fmt.Errorf("render export: %w", err)
		}

		if exportOutput == "" || exportOutput == "-" {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		if err := os.WriteFile(exportOutput, data, 0o644); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d sessions to %s\n", len(log), exportOutput)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Add sessions from an export that are not in the history yet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("file not found: %s", path)
			}
			return err
		}

		parser, err := report.ParserFor(path, data)
		if err != nil {
			return err
		}
		e, err := parser.Parse(data)
		if err != nil {
			return err
		}

		added, err := machine.Import(cmd.Context(), func(log []session.Session) []session.Session {
			return report.Merge(log, e.Sessions)
		})
		if err != nil {
			return fmt.Errorf("importing sessions: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d sessions.\n", len(added), len(e.Sessions))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", report.FormatText,
		"output format: "+strings.Join(report.Formats, ", "))
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write to file instead of stdout")
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
