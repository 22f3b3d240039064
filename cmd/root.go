package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/pomo/internal/clock"
	"github.com/fakeyudi/pomo/internal/config"
	"github.com/fakeyudi/pomo/internal/dispatch"
	"github.com/fakeyudi/pomo/internal/filelock"
	"github.com/fakeyudi/pomo/internal/logging"
	"github.com/fakeyudi/pomo/internal/notify"
	"github.com/fakeyudi/pomo/internal/pomodoro"
	"github.com/fakeyudi/pomo/internal/profile"
	"github.com/fakeyudi/pomo/internal/session"
)

// cfg holds the layered configuration, populated in PersistentPreRunE.
var cfg config.Config

// activeProfile holds the loaded user profile, if any.
var activeProfile *profile.Profile

// Per-invocation state, populated in PersistentPreRunE.
var (
	dataDir string
	store   session.Store
	machine *pomodoro.Machine
)

// Persistent flags.
var (
	configFile  string
	dataDirFlag string
	debug       bool
)

// Replaced in tests so no detached process or desktop notification escapes.
var (
	newClock      = func() clock.Clock { return clock.System{} }
	newDispatcher = func(args []string) (dispatch.Dispatcher, error) {
		return dispatch.NewProcess(args...)
	}
	newNotifier = notify.New
)

var rootCmd = &cobra.Command{
	Use:          "pomo",
	Short:        "Pomodoro focus sessions from the terminal",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "setup" {
			return nil
		}
		detached := cmd.Name() == dispatch.CallbackCommand

		// First run: offer the setup wizard when a human is at the terminal.
		// The detached timer never prompts.
		if !profile.Exists() && !detached && term.IsTerminal(os.Stdin.Fd()) {
			fmt.Fprintln(cmd.OutOrStdout())
			fmt.Fprintln(cmd.OutOrStdout(), "  Welcome to pomo! Looks like this is your first time.")
			if err := runSetup(cmd, true); err != nil {
				return err
			}
		}

		activeProfile = nil
		if profile.Exists() {
			p, err := profile.Load()
			if err != nil {
				return fmt.Errorf("loading profile: %w", err)
			}
			activeProfile = p
		}

		loaded, err := config.Load(config.LoadOptions{File: configFile, Profile: activeProfile.ConfigValues()})
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = *loaded

		dataDir = dataDirFlag
		if dataDir == "" {
			if dataDir, err = cfg.DataDir(); err != nil {
				return fmt.Errorf("resolving data directory: %w", err)
			}
		}

		prefix := "pomo"
		if detached {
			prefix = "pomo-timer"
		}
		if err := logging.Init(logging.Config{
			Dir:    filepath.Join(dataDir, "logs"),
			Level:  cfg.Log.Level,
			Debug:  debug && !detached,
			Prefix: prefix,
		}); err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}

		return openMachine()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeStore()
	},
}

// openMachine opens the configured store in dataDir and wires the state
// machine around it.
func openMachine() error {
	if err := closeStore(); err != nil {
		logging.Warn("closing previous store", "err", err)
	}
	s, err := session.Open(dataDir, cfg.Store.Backend)
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}
	store = s

	var scheduler pomodoro.Scheduler = dispatch.Noop{}
	if cfg.Timer.Enabled {
		d, err := timerDispatcher()
		if err != nil {
			scheduler = failedDispatcher{err}
		} else {
			scheduler = d
		}
	}

	dir := dataDir
	machine = pomodoro.New(pomodoro.Options{
		Store:     store,
		Clock:     newClock(),
		NewLock:   func() pomodoro.Locker { return filelock.New(dir) },
		Scheduler: scheduler,
		Notifier: newNotifier(notify.Config{
			Enabled:   cfg.Notify.Enabled,
			Sound:     cfg.Notify.Sound,
			SoundPath: cfg.Notify.SoundPath,
		}),
		DefaultLabel: cfg.Defaults.Label,
	})
	return nil
}

// timerDispatcher returns the dispatcher for the detached timer. The timer
// gets the same config file and data directory as this invocation, so it
// opens the same store.
func timerDispatcher() (dispatch.Dispatcher, error) {
	var args []string
	if configFile != "" {
		path, err := filepath.Abs(configFile)
		if err != nil {
			return nil, fmt.Errorf("resolving config file: %w", err)
		}
		args = append(args, "--config", path)
	}
	return newDispatcher(append(args, "--data-dir", dataDir))
}

func closeStore() error {
	if store == nil {
		return nil
	}
	err := store.Close()
	store = nil
	return err
}

// failedDispatcher reports why the timer could not be set up on every
// Schedule, so start surfaces it as a warning.
type failedDispatcher struct{ err error }

func (f failedDispatcher) Schedule(_ time.Duration, _ time.Time) (int, error) { return 0, f.err }

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default $XDG_CONFIG_HOME/pomo/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "directory holding sessions (default $XDG_DATA_HOME/pomo)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log debug output to stderr")
}

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
