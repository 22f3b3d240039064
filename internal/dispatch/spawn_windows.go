//go:build windows

package dispatch

import (
	"fmt"
	"os/exec"
	"syscall"
)

// detachedProcess is the DETACHED_PROCESS creation flag: no console.
const detachedProcess = 0x00000008

func spawnDetached(executable string, args []string) (int, error) {
	cmd := exec.Command(executable, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP | detachedProcess,
	}
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
