package session

import (
	"fmt"
	"strings"
	"time"
)

// DefaultLabel is used when a session is started without a label.
const DefaultLabel = "Focus"

// EndReason records how a session was closed.
type EndReason string

const (
	ReasonCompleted    EndReason = "completed"
	ReasonStoppedEarly EndReason = "stopped_early"
	// ReasonCancelled is never written to the log; cancelled slots are discarded.
	ReasonCancelled EndReason = "cancelled"
)

// Session is a finalized, immutable entry in the session log.
type Session struct {
	ID             string    `json:"id,omitempty" yaml:"id,omitempty"`
	StartTime      time.Time `json:"start_time" yaml:"start_time"`
	EndTime        time.Time `json:"end_time" yaml:"end_time"`
	PlannedMinutes int       `json:"planned_minutes" yaml:"planned_minutes"`
	ElapsedSeconds int64     `json:"elapsed_seconds" yaml:"elapsed_seconds"`
	Label          string    `json:"label" yaml:"label"`
	EndReason      EndReason `json:"end_reason,omitempty" yaml:"end_reason,omitempty"`
}

// Reason returns the end reason, treating a missing value as completed.
func (s Session) Reason() EndReason {
	if s.EndReason == "" {
		return ReasonCompleted
	}
	return s.EndReason
}

// Validate reports whether s satisfies the log schema.
func (s Session) Validate() error {
	switch {
	case s.StartTime.IsZero():
		return fmt.Errorf("session %q: missing start_time", s.ID)
	case s.EndTime.IsZero():
		return fmt.Errorf("session %q: missing end_time", s.ID)
	case s.PlannedMinutes <= 0:
		return fmt.Errorf("session %q: planned_minutes must be positive, got %d", s.ID, s.PlannedMinutes)
	case s.ElapsedSeconds < 0:
		return fmt.Errorf("session %q: elapsed_seconds must not be negative, got %d", s.ID, s.ElapsedSeconds)
	}
	switch s.EndReason {
	case "", ReasonCompleted, ReasonStoppedEarly:
		return nil
	default:
		return fmt.Errorf("session %q: unexpected end_reason %q", s.ID, s.EndReason)
	}
}

// ActiveSlot is the single mutable record of the running session.
// StartTime doubles as the session identity.
type ActiveSlot struct {
	StartTime      time.Time `json:"start_time"`
	PlannedMinutes int       `json:"planned_minutes"`
	Label          string    `json:"label"`
	// TimerPID is the detached timer process, if one was scheduled. Diagnostic only.
	TimerPID int `json:"timer_pid,omitempty"`
}

// Validate reports whether a satisfies the active-slot schema.
func (a ActiveSlot) Validate() error {
	if a.StartTime.IsZero() {
		return fmt.Errorf("active slot: missing start_time")
	}
	if a.PlannedMinutes <= 0 {
		return fmt.Errorf("active slot: planned_minutes must be positive, got %d", a.PlannedMinutes)
	}
	return nil
}

// Planned returns the planned duration.
func (a ActiveSlot) Planned() time.Duration {
	return time.Duration(a.PlannedMinutes) * time.Minute
}

// Deadline is the instant the session is due to complete.
func (a ActiveSlot) Deadline() time.Time {
	return a.StartTime.Add(a.Planned())
}

// Remaining is the time left at now. It is negative once the deadline passed.
func (a ActiveSlot) Remaining(now time.Time) time.Duration {
	return a.Planned() - now.Sub(a.StartTime)
}

// Matches reports whether identity refers to this slot.
func (a ActiveSlot) Matches(identity time.Time) bool {
	return a.StartTime.Equal(identity)
}

// Close turns the slot into a log entry ending at end. Elapsed time is whole
// seconds, clamped at zero when the clock moved backwards.
func (a ActiveSlot) Close(id string, end time.Time, reason EndReason) Session {
	elapsed := end.Sub(a.StartTime)
	if elapsed < 0 {
		elapsed = 0
		end = a.StartTime
	}
	return Session{
		ID:             id,
		StartTime:      a.StartTime,
		EndTime:        end,
		PlannedMinutes: a.PlannedMinutes,
		ElapsedSeconds: int64(elapsed / time.Second),
		Label:          a.Label,
		EndReason:      reason,
	}
}

// NormalizeLabel trims label and substitutes fallback, then DefaultLabel,
// when it is blank.
func NormalizeLabel(label, fallback string) string {
	if l := strings.TrimSpace(label); l != "" {
		return l
	}
	if f := strings.TrimSpace(fallback); f != "" {
		return f
	}
	return DefaultLabel
}
