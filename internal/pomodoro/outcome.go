package pomodoro

import (
	"fmt"
	"time"

	"github.com/fakeyudi/pomo/internal/session"
)

// Outcome names the result of a state machine call. Apart from errors, every
// call ends in exactly one Outcome; "nothing to do" cases are outcomes, not
// errors.
type Outcome int

const (
	Idle Outcome = iota
	Started
	Running
	// JustCompleted: Status found the slot expired and finalized it.
	JustCompleted
	Finalized
	Cancelled
	NothingToFinalize
	NothingToStop
	NothingToCancel
	// StaleIdentity: a deferred callback targeted a session that was replaced.
	StaleIdentity
	// NotYet: a deferred callback fired before the deadline (clock moved).
	NotYet
)

var outcomeNames = map[Outcome]string{
	Idle:              "idle",
	Started:           "started",
	Running:           "running",
	JustCompleted:     "just_completed",
	Finalized:         "finalized",
	Cancelled:         "cancelled",
	NothingToFinalize: "nothing_to_finalize",
	NothingToStop:     "nothing_to_stop",
	NothingToCancel:   "nothing_to_cancel",
	StaleIdentity:     "stale_identity",
	NotYet:            "not_yet",
}

func (o Outcome) String() string {
	if s, ok := outcomeNames[o]; ok {
		return s
	}
	return "unknown"
}

// Result describes what a state machine call observed or did.
type Result struct {
	Outcome Outcome
	// Slot is the active slot the call acted on or observed, if any.
	Slot session.ActiveSlot
	// Session is the log entry written by this call, if any.
	Session *session.Session
	// Remaining is set for Started, Running and NotYet.
	Remaining time.Duration
	// Warning reports a non-fatal problem, such as a timer that could not be
	// scheduled.
	Warning error
}

// FormatRemaining renders d as MM:SS, rounding partial seconds up so a
// running session never shows 00:00. Hours fold into the minutes.
func FormatRemaining(d time.Duration) string {
	if d <= 0 {
		return "00:00"
	}
	secs := int64((d + time.Second - 1) / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
