// Package pomodoro implements the session state machine:
//
//	NoActive --Start--> Running --Finalize--> NoActive (session logged)
//	                    Running --Cancel----> NoActive (nothing logged)
//
// Finalize can be reached from Status (lazy completion), Stop and the detached
// timer. Each caller re-reads the active slot under the cross-process lock
// and acts only if it is still there and still the same session, so racing
// callers write exactly one log entry between them.
package pomodoro

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fakeyudi/pomo/internal/clock"
	"github.com/fakeyudi/pomo/internal/logging"
	"github.com/fakeyudi/pomo/internal/notify"
	"github.com/fakeyudi/pomo/internal/session"
)

// Locker is held around every read-check-act sequence on the store.
type Locker interface {
	Lock() error
	Unlock() error
}

// Scheduler arranges a detached Finalize call for the session identified by
// identity, delay from now. It returns the PID of the timer process, or 0.
type Scheduler interface {
	Schedule(delay time.Duration, identity time.Time) (int, error)
}

// Options wires a Machine. Store is required; everything else has a default.
type Options struct {
	Store session.Store
	Clock clock.Clock
	// NewLock returns a fresh Locker per operation. Defaults to an
	// in-process mutex, which does not protect against other processes.
	NewLock   func() Locker
	Scheduler Scheduler
	Notifier  notify.Notifier
	// DefaultLabel replaces a blank label before falling back to "Focus".
	DefaultLabel string
	// NewID names finalized sessions. Defaults to random UUIDs.
	NewID func() string
}

// Machine owns all session transitions.
type Machine struct {
	store        session.Store
	clock        clock.Clock
	newLock      func() Locker
	scheduler    Scheduler
	notifier     notify.Notifier
	defaultLabel string
	newID        func() string
}

// New returns a Machine for opts.
func New(opts Options) *Machine {
	m := &Machine{
		store:        opts.Store,
		clock:        opts.Clock,
		newLock:      opts.NewLock,
		scheduler:    opts.Scheduler,
		notifier:     opts.Notifier,
		defaultLabel: opts.DefaultLabel,
		newID:        opts.NewID,
	}
	if m.clock == nil {
		m.clock = clock.System{}
	}
	if m.newLock == nil {
		mu := &sync.Mutex{}
		m.newLock = func() Locker { return mutexLocker{mu} }
	}
	if m.scheduler == nil {
		m.scheduler = noScheduler{}
	}
	if m.notifier == nil {
		m.notifier = notify.Noop{}
	}
	if m.newID == nil {
		m.newID = func() string { return uuid.New().String() }
	}
	return m
}

// Start begins a session of minutes length. Any existing slot, even one past
// its deadline that nobody finalized yet, is an *AlreadyActiveError. Failure to schedule the detached timer is reported in
// Result.Warning and never fails Start.
func (m *Machine) Start(ctx context.Context, minutes int, label string) (Result, error) {
	if minutes <= 0 {
		return Result{}, fmt.Errorf("%w: got %d", ErrInvalidDuration, minutes)
	}

	var res Result
	err := m.locked(func() error {
		existing, err := m.store.LoadActive(ctx)
		switch {
		case err == nil:
			return &AlreadyActiveError{Slot: existing, Now: m.clock.Now()}
		case !errors.Is(err, session.ErrNoActive):
			return err
		}

		res.Slot = session.ActiveSlot{
			StartTime:      m.clock.Now(),
			PlannedMinutes: minutes,
			Label:          session.NormalizeLabel(label, m.defaultLabel),
		}
		return m.store.SaveActive(ctx, res.Slot)
	})
	if err != nil {
		return Result{}, err
	}
	res.Outcome = Started
	res.Remaining = res.Slot.Planned()
	logging.Info("session started", "label", res.Slot.Label, "minutes", minutes, "identity", res.Slot.StartTime)

	pid, err := m.scheduler.Schedule(res.Slot.Planned(), res.Slot.StartTime)
	if err != nil {
		logging.Warn("auto-stop timer not scheduled; status will finalize instead", "err", err)
		res.Warning = fmt.Errorf("scheduling auto-stop: %w", err)
		return res, nil
	}
	if pid > 0 {
		if err := m.recordTimer(ctx, res.Slot.StartTime, pid); err != nil {
			logging.Warn("could not record timer pid", "pid", pid, "err", err)
		} else {
			res.Slot.TimerPID = pid
		}
	}
	return res, nil
}

// recordTimer stores the timer PID on the slot if it is still the session
// identified by identity.
func (m *Machine) recordTimer(ctx context.Context, identity time.Time, pid int) error {
	return m.locked(func() error {
		slot, err := m.store.LoadActive(ctx)
		if err != nil {
			if errors.Is(err, session.ErrNoActive) {
				return nil
			}
			return err
		}
		if !slot.Matches(identity) {
			return nil
		}
		slot.TimerPID = pid
		return m.store.SaveActive(ctx, slot)
	})
}

// Status reports the running session. A session whose time is up is
// finalized as completed by this call, so the answer never depends on the
// detached timer having fired.
func (m *Machine) Status(ctx context.Context) (Result, error) {
	// A stale identity means the slot was replaced between the read and the
	// finalize; the second pass reports the replacement.
	for attempt := 0; attempt < 2; attempt++ {
		slot, err := m.store.LoadActive(ctx)
		if err != nil {
			if errors.Is(err, session.ErrNoActive) {
				return Result{Outcome: Idle}, nil
			}
			return Result{}, err
		}

		remaining := slot.Remaining(m.clock.Now())
		if remaining > 0 {
			return Result{Outcome: Running, Slot: slot, Remaining: remaining}, nil
		}

		identity := slot.StartTime
		res, err := m.Finalize(ctx, &identity, session.ReasonCompleted)
		if err != nil {
			return Result{}, err
		}
		switch res.Outcome {
		case Finalized:
			m.announce(*res.Session)
			res.Outcome = JustCompleted
			return res, nil
		case NothingToFinalize:
			return Result{Outcome: Idle}, nil
		}
	}
	return Result{Outcome: Idle}, nil
}

// Stop finalizes the running session as stopped early, whatever its
// remaining time.
func (m *Machine) Stop(ctx context.Context) (Result, error) {
	res, err := m.Finalize(ctx, nil, session.ReasonStoppedEarly)
	if err != nil {
		return Result{}, err
	}
	if res.Outcome == NothingToFinalize {
		res.Outcome = NothingToStop
	}
	return res, nil
}

// Cancel discards the running session without logging it.
func (m *Machine) Cancel(ctx context.Context) (Result, error) {
	var res Result
	err := m.locked(func() error {
		slot, err := m.store.LoadActive(ctx)
		if err != nil {
			if errors.Is(err, session.ErrNoActive) {
				res.Outcome = NothingToCancel
				return nil
			}
			return err
		}
		if err := m.store.DeleteActive(ctx); err != nil {
			return err
		}
		res = Result{Outcome: Cancelled, Slot: slot}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	if res.Outcome == Cancelled {
		logging.Info("session cancelled", "label", res.Slot.Label, "identity", res.Slot.StartTime)
	}
	return res, nil
}

// Finalize closes the active slot into the log with reason. With expected
// set, only the session whose identity equals *expected is finalized.
// A missing slot yields NothingToFinalize and an identity mismatch yields
// StaleIdentity; neither is an error.
func (m *Machine) Finalize(ctx context.Context, expected *time.Time, reason session.EndReason) (Result, error) {
	var res Result
	err := m.locked(func() error {
		slot, err := m.store.LoadActive(ctx)
		if err != nil {
			if errors.Is(err, session.ErrNoActive) {
				res.Outcome = NothingToFinalize
				return nil
			}
			return err
		}
		if expected != nil && !slot.Matches(*expected) {
			res = Result{Outcome: StaleIdentity, Slot: slot}
			return nil
		}
		s, err := m.finalizeLocked(ctx, slot, reason)
		if err != nil {
			return err
		}
		res = Result{Outcome: Finalized, Slot: slot, Session: &s}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// AutoStop is the deferred timer's entry point. It finalizes the session
// identified by identity as completed once its deadline has passed. Before
// the deadline it returns NotYet with the time still to wait, recomputed from
// the stored start time.
func (m *Machine) AutoStop(ctx context.Context, identity time.Time) (Result, error) {
	var res Result
	err := m.locked(func() error {
		slot, err := m.store.LoadActive(ctx)
		if err != nil {
			if errors.Is(err, session.ErrNoActive) {
				res.Outcome = NothingToFinalize
				return nil
			}
			return err
		}
		if !slot.Matches(identity) {
			res = Result{Outcome: StaleIdentity, Slot: slot}
			return nil
		}
		if remaining := slot.Remaining(m.clock.Now()); remaining > 0 {
			res = Result{Outcome: NotYet, Slot: slot, Remaining: remaining}
			return nil
		}
		s, err := m.finalizeLocked(ctx, slot, session.ReasonCompleted)
		if err != nil {
			return err
		}
		res = Result{Outcome: Finalized, Slot: slot, Session: &s}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	if res.Outcome == Finalized {
		m.announce(*res.Session)
	}
	return res, nil
}

// History returns the session log.
func (m *Machine) History(ctx context.Context) ([]session.Session, error) {
	return m.store.LoadLog(ctx)
}

// Import appends the sessions pick selects from the current log, all under
// one lock so a concurrent finalize cannot interleave. It returns the
// appended sessions.
func (m *Machine) Import(ctx context.Context, pick func(log []session.Session) []session.Session) ([]session.Session, error) {
	var added []session.Session
	err := m.locked(func() error {
		log, err := m.store.LoadLog(ctx)
		if err != nil {
			return err
		}
		for _, s := range pick(log) {
			if err := m.store.AppendLog(ctx, s); err != nil {
				return fmt.Errorf("appending imported session: %w", err)
			}
			added = append(added, s)
		}
		return nil
	})
	if len(added) > 0 {
		logging.Info("sessions imported", "count", len(added))
	}
	return added, err
}

// finalizeLocked appends the closed slot to the log and deletes the slot.
// The caller must hold the lock. If a previous finalize appended the entry
// but failed to delete the slot, the entry is not appended again.
func (m *Machine) finalizeLocked(ctx context.Context, slot session.ActiveSlot, reason session.EndReason) (session.Session, error) {
	log, err := m.store.LoadLog(ctx)
	if err != nil {
		return session.Session{}, err
	}
	s, logged := findLogged(log, slot.StartTime)
	if !logged {
		s = slot.Close(m.newID(), m.clock.Now(), reason)
		if err := m.store.AppendLog(ctx, s); err != nil {
			return session.Session{}, err
		}
	}
	if err := m.store.DeleteActive(ctx); err != nil {
		return session.Session{}, err
	}
	logging.Info("session finalized",
		"label", s.Label, "reason", s.Reason(), "elapsed_seconds", s.ElapsedSeconds, "identity", s.StartTime)
	return s, nil
}

// findLogged returns the log entry for the session started at identity.
// Recent entries are checked first.
func findLogged(log []session.Session, identity time.Time) (session.Session, bool) {
	for i := len(log) - 1; i >= 0; i-- {
		if log[i].StartTime.Equal(identity) {
			return log[i], true
		}
	}
	return session.Session{}, false
}

// announce fires the completion hook for sessions that ran their full time.
func (m *Machine) announce(s session.Session) {
	if s.Reason() != session.ReasonCompleted {
		return
	}
	m.notifier.Notify("Pomodoro complete", fmt.Sprintf("%s · %d min", s.Label, s.PlannedMinutes))
}

// locked runs fn while holding a fresh lock.
func (m *Machine) locked(fn func() error) error {
	l := m.newLock()
	if err := l.Lock(); err != nil {
		return fmt.Errorf("acquiring session lock: %w", err)
	}
	defer func() {
		if err := l.Unlock(); err != nil {
			logging.Warn("releasing session lock", "err", err)
		}
	}()
	return fn()
}

type mutexLocker struct{ mu *sync.Mutex }

func (l mutexLocker) Lock() error   { l.mu.Lock(); return nil }
func (l mutexLocker) Unlock() error { l.mu.Unlock(); return nil }

type noScheduler struct{}

func (noScheduler) Schedule(time.Duration, time.Time) (int, error) { return 0, nil }
