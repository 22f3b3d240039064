package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	timeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("178"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	barStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	labelStyle  = lipgloss.NewStyle().Width(24)
	minuteStyle = lipgloss.NewStyle().Width(9).Align(lipgloss.Right)
)

const barWidth = 24

// WriteToday prints the itemized daily report.
func WriteToday(w io.Writer, rep DayReport) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n",
		headerStyle.Render("Today "+rep.Date.Format("Mon Jan 2")+":"),
		fmt.Sprintf("%.1f min focused", rep.TotalMinutes))
	if len(rep.Entries) == 0 {
		sb.WriteString(dimStyle.Render("No sessions yet today.") + "\n")
	}
	for _, e := range rep.Entries {
		fmt.Fprintf(&sb, "%3d. %s %s %s %s\n",
			e.Index,
			timeStyle.Render(e.Start+"–"+e.End),
			minuteStyle.Render(fmt.Sprintf("%.1f min", e.Minutes)),
			labelStyle.Render(e.Label),
			dimStyle.Render(string(e.Reason)),
		)
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// WriteStats prints one row per day with a proportional bar.
func WriteStats(w io.Writer, days []DayTotal) error {
	var (
		sb    strings.Builder
		most  int64
		total int64
	)
	for _, d := range days {
		most = max(most, d.Seconds)
		total += d.Seconds
	}

	sb.WriteString(headerStyle.Render(fmt.Sprintf("Last %d days", len(days))) + "\n")
	for _, d := range days {
		bar := ""
		if most > 0 {
			bar = strings.Repeat("█", int(d.Seconds*barWidth/most))
		}
		fmt.Fprintf(&sb, "%s %s %s %s\n",
			timeStyle.Render(d.Date.Format("Mon 2006-01-02")),
			minuteStyle.Render(fmt.Sprintf("%.1f min", d.Minutes)),
			dimStyle.Render(fmt.Sprintf("(%d)", d.Count)),
			barStyle.Render(bar),
		)
	}
	fmt.Fprintf(&sb, "Total: %.1f min\n", Minutes(total))
	_, err := io.WriteString(w, sb.String())
	return err
}
