// Package dispatch schedules the deferred auto-stop of a session. The running
// binary re-executes itself as a detached "autostop" process that sleeps until
// the session deadline and then finalizes it. Nothing is persisted here: the
// child carries the session identity on its command line.
package dispatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	ps "github.com/mitchellh/go-ps"
)

// CallbackCommand is the hidden subcommand the detached process runs.
const CallbackCommand = "autostop"

// MinRearm bounds how soon the callback re-checks after firing early.
const MinRearm = time.Second

// Dispatcher schedules a finalize callback delay from now for the session
// identified by identity, returning the PID of the process that will run it.
type Dispatcher interface {
	Schedule(delay time.Duration, identity time.Time) (int, error)
}

// Process dispatches by spawning a detached copy of Executable.
type Process struct {
	Executable string
	// Args precede the callback arguments, e.g. persistent flags that select
	// the data directory.
	Args []string
}

// NewProcess returns a Process for the current executable.
func NewProcess(args ...string) (*Process, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return &Process{Executable: exe, Args: args}, nil
}

// Schedule spawns the detached callback process.
func (p *Process) Schedule(delay time.Duration, identity time.Time) (int, error) {
	args := append(append([]string{}, p.Args...), CallbackArgs(delay, identity)...)
	return spawnDetached(p.Executable, args)
}

// CallbackArgs builds the argument list of the autostop callback.
func CallbackArgs(delay time.Duration, identity time.Time) []string {
	secs := int64((delay + time.Second - 1) / time.Second)
	if secs < 0 {
		secs = 0
	}
	return []string{CallbackCommand, "--delay", strconv.FormatInt(secs, 10), FormatIdentity(identity)}
}

// FormatIdentity renders a session identity losslessly.
func FormatIdentity(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

// ParseIdentity is the inverse of FormatIdentity.
func ParseIdentity(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid session identity %q: %w", s, err)
	}
	return t, nil
}

// Noop schedules nothing. Sessions are then finalized by status or stop.
type Noop struct{}

func (Noop) Schedule(time.Duration, time.Time) (int, error) { return 0, nil }

// FireFunc runs one callback attempt. It reports done when no further attempt
// is needed, or else the time still remaining before the deadline.
type FireFunc func(ctx context.Context) (remaining time.Duration, done bool, err error)

// Wait sleeps delay, then calls fire until it reports done. Early firings,
// for example after the wall clock moved, sleep for the remaining time
// reported by fire, never less than MinRearm.
func Wait(ctx context.Context, delay time.Duration, fire FireFunc) error {
	for {
		if err := sleep(ctx, delay); err != nil {
			return err
		}
		remaining, done, err := fire(ctx)
		if err != nil || done {
			return err
		}
		delay = max(remaining, MinRearm)
	}
}

var sleep = func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var findProcess = ps.FindProcess

// Alive reports whether pid is a running process. A zero PID is never alive.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := findProcess(pid)
	return err == nil && p != nil
}
