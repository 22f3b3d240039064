// Package notify delivers the "session complete" side effect. Delivery is
// fire-and-forget: nothing here can fail a session transition.
package notify

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"

	"github.com/charmbracelet/x/term"

	"github.com/fakeyudi/pomo/internal/logging"
)

// DefaultSoundPath is played on macOS when sound is enabled and no path is set.
const DefaultSoundPath = "/System/Library/Sounds/Glass.aiff"

// Notifier announces a finished session.
type Notifier interface {
	Notify(title, message string)
}

// Noop discards notifications.
type Noop struct{}

func (Noop) Notify(string, string) {}

// Config controls desktop delivery.
type Config struct {
	Enabled   bool
	Sound     bool
	SoundPath string
}

// Desktop rings the terminal bell and raises a platform notification.
type Desktop struct {
	cfg Config
	// out receives the bell when it is a terminal.
	out *os.File
	// start launches a background command; replaced in tests.
	start func(name string, args ...string) error
}

// New returns the Notifier for cfg.
func New(cfg Config) Notifier {
	if !cfg.Enabled {
		return Noop{}
	}
	return &Desktop{cfg: cfg, out: os.Stdout, start: startDetached}
}

// Notify never blocks on the launched commands and never returns an error;
// delivery failures are logged.
func (d *Desktop) Notify(title, message string) {
	if d.out != nil && term.IsTerminal(d.out.Fd()) {
		_, _ = io.WriteString(d.out, "\a")
	}

	for _, c := range d.commands(title, message) {
		if err := d.start(c[0], c[1:]...); err != nil {
			logging.Warn("notification command failed", "cmd", c[0], "err", err)
		}
	}
}

// commands returns the platform commands for one notification.
func (d *Desktop) commands(title, message string) [][]string {
	var cmds [][]string
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf("display notification %q with title %q", message, title)
		cmds = append(cmds, []string{"osascript", "-e", script})
		if d.cfg.Sound {
			path := d.cfg.SoundPath
			if path == "" {
				path = DefaultSoundPath
			}
			cmds = append(cmds, []string{"afplay", path})
		}
	case "linux", "freebsd", "openbsd", "netbsd":
		cmds = append(cmds, []string{"notify-send", "--app-name=pomo", title, message})
		if d.cfg.Sound && d.cfg.SoundPath != "" {
			cmds = append(cmds, []string{"paplay", d.cfg.SoundPath})
		}
	}
	return cmds
}

// startDetached starts name in the background without waiting for it.
func startDetached(name string, args ...string) error {
	path, err := exec.LookPath(name)
	if err != nil {
		return err
	}
	cmd := exec.Command(path, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}
