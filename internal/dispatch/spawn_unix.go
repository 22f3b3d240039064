//go:build unix

package dispatch

import (
	"fmt"
	"os/exec"
	"syscall"
)

// spawnDetached starts the callback in a new session so it outlives the
// terminal that ran start.
func spawnDetached(executable string, args []string) (int, error) {
	cmd := exec.Command(executable, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start auto-stop timer: %w", err)
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return pid, fmt.Errorf("failed to release auto-stop timer: %w", err)
	}
	return pid, nil
}
