package pomodoro

import (
	"errors"
	"fmt"
	"time"

	"github.com/fakeyudi/pomo/internal/session"
)

var (
	// ErrInvalidDuration is returned by Start for non-positive minutes.
	ErrInvalidDuration = errors.New("duration must be a positive number of minutes")
	// ErrSessionAlreadyActive is returned by Start while a session is running.
	ErrSessionAlreadyActive = errors.New("a session is already active")
)

// AlreadyActiveError carries the running slot that blocked a Start.
// errors.Is(err, ErrSessionAlreadyActive) holds for it.
type AlreadyActiveError struct {
	Slot session.ActiveSlot
	Now  time.Time
}

func (e *AlreadyActiveError) Error() string {
	rem := e.Slot.Remaining(e.Now).Round(time.Second)
	return fmt.Sprintf("%s: %q started at %s, %s remaining",
		ErrSessionAlreadyActive, e.Slot.Label, e.Slot.StartTime.Format("15:04"), rem)
}

func (e *AlreadyActiveError) Unwrap() error {
	return ErrSessionAlreadyActive
}
