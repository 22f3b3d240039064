// Package report aggregates the session log into per-day views and converts
// the log to and from export documents.
package report

import (
	"math"
	"time"

	"github.com/fakeyudi/pomo/internal/session"
)

// DefaultDays is the stats window used when a non-positive one is requested.
const DefaultDays = 7

// Entry is one session as shown in the daily report.
type Entry struct {
	Index   int               `json:"index" yaml:"index"`
	Start   string            `json:"start" yaml:"start"`
	End     string            `json:"end" yaml:"end"`
	Minutes float64           `json:"minutes" yaml:"minutes"`
	Label   string            `json:"label" yaml:"label"`
	Reason  session.EndReason `json:"reason" yaml:"reason"`
}

// DayReport is the itemized view of one local calendar day.
type DayReport struct {
	Date         time.Time `json:"date" yaml:"date"`
	TotalSeconds int64     `json:"total_seconds" yaml:"total_seconds"`
	TotalMinutes float64   `json:"total_minutes" yaml:"total_minutes"`
	Entries      []Entry   `json:"entries" yaml:"entries"`
}

// DayTotal is one row of the multi-day summary.
type DayTotal struct {
	Date    time.Time `json:"date" yaml:"date"`
	Seconds int64     `json:"seconds" yaml:"seconds"`
	Minutes float64   `json:"minutes" yaml:"minutes"`
	Count   int       `json:"sessions" yaml:"sessions"`
}

// Today itemizes the sessions that started on now's local date, in log order.
func Today(log []session.Session, now time.Time) DayReport {
	loc := now.Location()
	day := midnight(now)
	rep := DayReport{Date: day, Entries: []Entry{}}

	for _, s := range log {
		start := s.StartTime.In(loc)
		if !midnight(start).Equal(day) {
			continue
		}
		rep.TotalSeconds += s.ElapsedSeconds
		rep.Entries = append(rep.Entries, Entry{
			Index:   len(rep.Entries) + 1,
			Start:   start.Format("15:04"),
			End:     s.EndTime.In(loc).Format("15:04"),
			Minutes: Minutes(s.ElapsedSeconds),
			Label:   s.Label,
			Reason:  s.Reason(),
		})
	}
	rep.TotalMinutes = Minutes(rep.TotalSeconds)
	return rep
}

// LastNDays totals the n local calendar days ending with now's date, oldest
// first. Days without sessions are included with zero totals. n <= 0 means
// DefaultDays.
func LastNDays(log []session.Session, now time.Time, n int) []DayTotal {
	if n <= 0 {
		n = DefaultDays
	}
	loc := now.Location()
	today := midnight(now)

	days := make([]DayTotal, n)
	index := make(map[time.Time]int, n)
	for i := range days {
		d := time.Date(today.Year(), today.Month(), today.Day()-(n-1-i), 0, 0, 0, 0, loc)
		days[i].Date = d
		index[d] = i
	}

	for _, s := range log {
		i, ok := index[midnight(s.StartTime.In(loc))]
		if !ok {
			continue
		}
		days[i].Seconds += s.ElapsedSeconds
		days[i].Count++
	}
	for i := range days {
		days[i].Minutes = Minutes(days[i].Seconds)
	}
	return days
}

// Minutes converts seconds to minutes rounded to one decimal place.
func Minutes(seconds int64) float64 {
	return math.Round(float64(seconds)/60*10) / 10
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
