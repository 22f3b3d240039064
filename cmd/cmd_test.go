package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/fakeyudi/pomo/internal/clock"
	"github.com/fakeyudi/pomo/internal/dispatch"
	"github.com/fakeyudi/pomo/internal/notify"
	"github.com/fakeyudi/pomo/internal/pomodoro"
	"github.com/fakeyudi/pomo/internal/session"
)

// executeCommand runs a cobra command with the given args and captures combined output.
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	_, err = root.ExecuteC()
	return buf.String(), err
}

// resetFlags restores every flag to its default between runs; cobra keeps
// parsed values on the package-level commands.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(title, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, title+": "+message)
}

type recordingDispatcher struct {
	calls    int
	delay    time.Duration
	identity time.Time
	err      error
}

func (d *recordingDispatcher) Schedule(delay time.Duration, identity time.Time) (int, error) {
	d.calls++
	d.delay, d.identity = delay, identity
	return 0, d.err
}

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.Local)

type env struct {
	dataDir    string
	configDir  string
	clock      *clock.Manual
	notifier   *recordingNotifier
	dispatcher *recordingDispatcher
}

// setupEnv points every pomo location at temp directories and replaces the
// clock, the timer dispatcher and the notifier.
func setupEnv(t *testing.T) *env {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", filepath.Join(tmp, "data"))
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmp, "config"))
	t.Setenv("HOME", tmp)
	for _, key := range []string{"POMO_DEFAULTS_MINUTES", "POMO_DEFAULTS_LABEL", "POMO_STORE_BACKEND", "POMO_TIMER_ENABLED", "POMO_STATS_DAYS"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	// Keep a stray .pomo.yaml in the package directory out of the config.
	t.Chdir(tmp)

	e := &env{
		dataDir:    filepath.Join(tmp, "data", "pomo"),
		configDir:  filepath.Join(tmp, "config", "pomo"),
		clock:      clock.NewManual(t0),
		notifier:   &recordingNotifier{},
		dispatcher: &recordingDispatcher{},
	}

	prevClock, prevDispatcher, prevNotifier := newClock, newDispatcher, newNotifier
	newClock = func() clock.Clock { return e.clock }
	newDispatcher = func([]string) (dispatch.Dispatcher, error) { return e.dispatcher, nil }
	newNotifier = func(cfg notify.Config) notify.Notifier {
		if !cfg.Enabled {
			return notify.Noop{}
		}
		return e.notifier
	}
	t.Cleanup(func() {
		newClock, newDispatcher, newNotifier = prevClock, prevDispatcher, prevNotifier
		_ = closeStore()
	})

	resetFlags(rootCmd)
	return e
}

func (e *env) run(t *testing.T, args ...string) string {
	t.Helper()
	resetFlags(rootCmd)
	out, err := executeCommand(rootCmd, args...)
	if err != nil {
		t.Fatalf("pomo %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func (e *env) log(t *testing.T) []session.Session {
	t.Helper()
	log, err := session.NewJSONStore(e.dataDir).LoadLog(context.Background())
	if err != nil {
		t.Fatalf("LoadLog: %v", err)
	}
	return log
}

func (e *env) writeConfig(t *testing.T, content string) {
	t.Helper()
	if err := os.MkdirAll(e.configDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(e.configDir, "config.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func assertContains(t *testing.T, out string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestStartStatusStop(t *testing.T) {
	e := setupEnv(t)

	out := e.run(t, "start", "25", "Draft", "chapter")
	assertContains(t, out, `Started "Draft chapter" for 25 min`, "until 09:25")

	e.clock.Advance(10 * time.Minute)
	assertContains(t, e.run(t, "status"), "15:00 remaining", "Draft chapter (25 min)")

	e.clock.Advance(10 * time.Minute)
	assertContains(t, e.run(t, "stop"), `Stopped "Draft chapter" after 20m0s (stopped_early)`)
	assertContains(t, e.run(t, "status"), "No active session.")

	log := e.log(t)
	if len(log) != 1 {
		t.Fatalf("log has %d entries, want 1", len(log))
	}
	if log[0].ElapsedSeconds != 1200 || log[0].Reason() != session.ReasonStoppedEarly || log[0].PlannedMinutes != 25 {
		t.Errorf("entry = %+v", log[0])
	}
	if len(e.notifier.messages) != 0 {
		t.Errorf("stopping early must not notify: %v", e.notifier.messages)
	}
}

// TestDoubleStartError verifies that a second start is refused while a
// session is running and points the user at status and stop.
func TestDoubleStartError(t *testing.T) {
	e := setupEnv(t)
	e.run(t, "start", "25")

	resetFlags(rootCmd)
	out, err := executeCommand(rootCmd, "start", "10")
	if err == nil {
		t.Fatal("expected an error from double-start, got nil")
	}
	assertContains(t, out+err.Error(), "already in progress", "pomo status", "pomo stop")
	if len(e.log(t)) != 0 {
		t.Error("a refused start must not touch the log")
	}
}

func TestStartRejectsInvalidMinutes(t *testing.T) {
	e := setupEnv(t)
	for _, arg := range []string{"0", "00", "2.5"} {
		resetFlags(rootCmd)
		_, err := executeCommand(rootCmd, "start", arg)
		if !errors.Is(err, pomodoro.ErrInvalidDuration) {
			t.Errorf("start %s: err = %v, want ErrInvalidDuration", arg, err)
		}
	}
	assertContains(t, e.run(t, "status"), "No active session.")
}

func TestStartUsesConfiguredDefaults(t *testing.T) {
	e := setupEnv(t)
	e.writeConfig(t, "defaults:\n  minutes: 50\n  label: Deep work\n")

	assertContains(t, e.run(t, "start"), `Started "Deep work" for 50 min`)
	e.run(t, "cancel")
	assertContains(t, e.run(t, "start", "Reading"), `Started "Reading" for 50 min`)
}

func TestStatusCompletesExpiredSession(t *testing.T) {
	e := setupEnv(t)
	e.run(t, "start", "1", "Quick")

	e.clock.Advance(90 * time.Second)
	assertContains(t, e.run(t, "status"), `Session "Quick" completed`)
	assertContains(t, e.run(t, "status"), "No active session.")

	log := e.log(t)
	if len(log) != 1 || log[0].Reason() != session.ReasonCompleted || log[0].ElapsedSeconds != 90 {
		t.Fatalf("log = %+v", log)
	}
	if len(e.notifier.messages) != 1 || !strings.Contains(e.notifier.messages[0], "Quick") {
		t.Errorf("notifications = %v", e.notifier.messages)
	}
}

func TestStatusReportsTimerProcess(t *testing.T) {
	e := setupEnv(t)
	prev := processAlive
	processAlive = func(pid int) bool { return pid == 4242 }
	t.Cleanup(func() { processAlive = prev })

	e.run(t, "start", "25")
	assertContains(t, e.run(t, "status"), "timer: none")

	res := pomodoro.Result{
		Outcome:   pomodoro.Running,
		Slot:      session.ActiveSlot{StartTime: t0, PlannedMinutes: 25, Label: "Write", TimerPID: 4242},
		Remaining: 5 * time.Minute,
	}
	var buf bytes.Buffer
	printStatus(&buf, res)
	assertContains(t, buf.String(), "05:00 remaining", "timer: running (pid 4242)")

	res.Slot.TimerPID = 7
	buf.Reset()
	printStatus(&buf, res)
	assertContains(t, buf.String(), "timer: gone (pid 7)")
}

func TestCancelAndNothingToDo(t *testing.T) {
	e := setupEnv(t)

	assertContains(t, e.run(t, "stop"), "Nothing to stop.")
	assertContains(t, e.run(t, "cancel"), "Nothing to cancel.")

	e.run(t, "start", "25", "Oops")
	assertContains(t, e.run(t, "cancel"), `Cancelled "Oops"`)
	assertContains(t, e.run(t, "cancel"), "Nothing to cancel.")
	if len(e.log(t)) != 0 {
		t.Error("cancel must not log")
	}
}

func TestStartSchedulesTimer(t *testing.T) {
	e := setupEnv(t)
	e.run(t, "start", "25")

	if e.dispatcher.calls != 1 {
		t.Fatalf("Schedule calls = %d", e.dispatcher.calls)
	}
	if e.dispatcher.delay != 25*time.Minute || !e.dispatcher.identity.Equal(t0) {
		t.Errorf("scheduled %v for %v", e.dispatcher.delay, e.dispatcher.identity)
	}
}

func TestStartWithTimerDisabled(t *testing.T) {
	e := setupEnv(t)
	e.writeConfig(t, "timer:\n  enabled: false\n")
	e.run(t, "start", "25")
	if e.dispatcher.calls != 0 {
		t.Errorf("timer disabled but Schedule called %d times", e.dispatcher.calls)
	}
}

func TestStartSchedulingFailureIsAWarning(t *testing.T) {
	e := setupEnv(t)
	e.dispatcher.err = errors.New("fork failed")

	out := e.run(t, "start", "25")
	assertContains(t, out, "Started", "Auto-stop timer unavailable", "fork failed")
	assertContains(t, e.run(t, "status"), "25:00 remaining")
}

func TestAutostopFinalizesMatchingSession(t *testing.T) {
	e := setupEnv(t)
	e.run(t, "start", "1", "Timed")
	e.clock.Advance(time.Minute)

	out := e.run(t, dispatch.CallbackArgs(0, t0)...)
	if out != "" {
		t.Errorf("autostop must be silent, got %q", out)
	}
	log := e.log(t)
	if len(log) != 1 || log[0].Reason() != session.ReasonCompleted || log[0].ElapsedSeconds != 60 {
		t.Fatalf("log = %+v", log)
	}
	if len(e.notifier.messages) != 1 {
		t.Errorf("notifications = %v", e.notifier.messages)
	}

	// A second firing for the same session finds nothing.
	e.run(t, dispatch.CallbackArgs(0, t0)...)
	if len(e.log(t)) != 1 {
		t.Error("repeated autostop appended twice")
	}
}

func TestTimerUsesParentConfigFile(t *testing.T) {
	e := setupEnv(t)
	alt := filepath.Join(t.TempDir(), "alt.yaml")
	if err := os.WriteFile(alt, []byte("store:\n  backend: sqlite\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var timerArgs []string
	newDispatcher = func(args []string) (dispatch.Dispatcher, error) {
		p, err := dispatch.NewProcess(args...)
		if err != nil {
			return nil, err
		}
		timerArgs = p.Args
		return e.dispatcher, nil
	}

	e.run(t, "--config", alt, "start", "1", "Timed")
	if e.dispatcher.calls != 1 {
		t.Fatalf("Schedule calls = %d", e.dispatcher.calls)
	}
	e.clock.Advance(2 * time.Minute)

	// Run the detached timer with the arguments start gave it.
	e.run(t, append(timerArgs, dispatch.CallbackArgs(0, e.dispatcher.identity)...)...)

	if len(e.notifier.messages) != 1 || !strings.Contains(e.notifier.messages[0], "Timed") {
		t.Fatalf("the timer did not complete the session: notifications = %v", e.notifier.messages)
	}
	assertContains(t, e.run(t, "--config", alt, "status"), "No active session.")
	assertContains(t, e.run(t, "--config", alt, "today"), "Timed", "completed")
}

func TestStartRefusesExpiredSession(t *testing.T) {
	e := setupEnv(t)
	e.run(t, "start", "1", "Quick")
	e.clock.Advance(2 * time.Minute)

	resetFlags(rootCmd)
	out, err := executeCommand(rootCmd, "start", "10")
	if err == nil {
		t.Fatal("expected start to refuse while an expired slot remains")
	}
	assertContains(t, out+err.Error(), "time is up", "pomo status")
	if len(e.log(t)) != 0 {
		t.Error("a refused start must not finalize the expired slot")
	}

	assertContains(t, e.run(t, "status"), `Session "Quick" completed`)
	assertContains(t, e.run(t, "start", "10"), "Started")
}

func TestAutostopIgnoresStaleIdentity(t *testing.T) {
	e := setupEnv(t)
	e.run(t, "start", "1")
	e.run(t, "cancel")
	e.clock.Advance(time.Minute)
	e.run(t, "start", "1", "Second")
	e.clock.Advance(2 * time.Minute)

	e.run(t, dispatch.CallbackArgs(0, t0)...)
	if len(e.log(t)) != 0 {
		t.Fatal("stale timer finalized a newer session")
	}
	assertContains(t, e.run(t, "status"), `Session "Second" completed`)
}

func TestAutostopRejectsBadIdentity(t *testing.T) {
	setupEnv(t)
	resetFlags(rootCmd)
	if _, err := executeCommand(rootCmd, dispatch.CallbackCommand, "--delay", "0", "yesterday"); err == nil {
		t.Fatal("expected an error for a malformed identity")
	}
}

func seed(t *testing.T, e *env, sessions ...session.Session) {
	t.Helper()
	s, err := session.Open(e.dataDir, session.BackendJSON)
	if err != nil {
		t.Fatal(err)
	}
	for _, sess := range sessions {
		if err := s.AppendLog(context.Background(), sess); err != nil {
			t.Fatal(err)
		}
	}
}

func logged(id string, start time.Time, secs int64, label string) session.Session {
	return session.Session{
		ID:             id,
		StartTime:      start,
		EndTime:        start.Add(time.Duration(secs) * time.Second),
		PlannedMinutes: 25,
		ElapsedSeconds: secs,
		Label:          label,
		EndReason:      session.ReasonCompleted,
	}
}

func TestTodayAndStats(t *testing.T) {
	e := setupEnv(t)
	seed(t, e,
		logged("a", t0.AddDate(0, 0, -1), 1500, "Yesterday"),
		logged("b", t0.Add(-2*time.Hour), 600, "Email"),
		logged("c", t0.Add(-time.Hour), 1500, "Write"),
	)

	out := e.run(t, "today")
	assertContains(t, out, "35.0 min focused", "Email", "Write", "07:00")
	if strings.Contains(out, "Yesterday") {
		t.Errorf("today shows yesterday's session:\n%s", out)
	}
	if strings.Index(out, "Email") > strings.Index(out, "Write") {
		t.Errorf("today must keep log order:\n%s", out)
	}

	out = e.run(t, "stats", "--days", "3")
	assertContains(t, out, "Last 3 days", "Total: 60.0 min", "(2)", "(1)", "(0)")
	if strings.Index(out, "2026-02-28") > strings.Index(out, "2026-03-02") {
		t.Errorf("stats must list oldest first:\n%s", out)
	}

	e.writeConfig(t, "stats:\n  days: 2\n")
	assertContains(t, e.run(t, "stats"), "Last 2 days")
}

func TestTodayEmpty(t *testing.T) {
	e := setupEnv(t)
	assertContains(t, e.run(t, "today"), "0.0 min focused", "No sessions yet today.")
}

func TestExportImport(t *testing.T) {
	e := setupEnv(t)
	seed(t, e, logged("a", t0.Add(-2*time.Hour), 600, "Email"), logged("b", t0.Add(-time.Hour), 1500, "Write"))

	file := filepath.Join(t.TempDir(), "history.json")
	assertContains(t, e.run(t, "export", "--format", "json", "-o", file), "Exported 2 sessions")

	other := filepath.Join(t.TempDir(), "other")
	assertContains(t, e.run(t, "--data-dir", other, "import", file), "Imported 2 of 2 sessions.")
	assertContains(t, e.run(t, "--data-dir", other, "import", file), "Imported 0 of 2 sessions.")

	imported, err := session.NewJSONStore(other).LoadLog(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(imported) != 2 || imported[0].ID != "a" || imported[1].ID != "b" {
		t.Fatalf("imported = %+v", imported)
	}
}

func TestExportFormats(t *testing.T) {
	e := setupEnv(t)
	seed(t, e, logged("a", t0.Add(-time.Hour), 1500, "Write"))

	assertContains(t, e.run(t, "export"), "1 sessions", "Write")
	assertContains(t, e.run(t, "export", "--format", "yaml"), "version: 1", "label: Write")
	assertContains(t, e.run(t, "export", "-f", "markdown"), "<!-- pomo-export-version: 1 -->")

	resetFlags(rootCmd)
	if _, err := executeCommand(rootCmd, "export", "--format", "csv"); err == nil {
		t.Error("expected an error for an unknown format")
	}
}

func TestImportMissingFile(t *testing.T) {
	setupEnv(t)
	resetFlags(rootCmd)
	_, err := executeCommand(rootCmd, "import", filepath.Join(t.TempDir(), "nope.json"))
	if err == nil || !strings.Contains(err.Error(), "file not found") {
		t.Fatalf("err = %v", err)
	}
}

func TestWatchPlain(t *testing.T) {
	e := setupEnv(t)
	assertContains(t, e.run(t, "watch", "--plain"), "No active session.")

	e.run(t, "start", "25", "Write")
	assertContains(t, e.run(t, "watch", "--plain"), "25:00 remaining")
}

func TestSQLiteBackend(t *testing.T) {
	e := setupEnv(t)
	e.writeConfig(t, "store:\n  backend: sqlite\n")

	e.run(t, "start", "25", "Write")
	e.clock.Advance(5 * time.Minute)
	e.run(t, "stop")

	if _, err := os.Stat(filepath.Join(e.dataDir, "pomo.db")); err != nil {
		t.Fatalf("sqlite database not created: %v", err)
	}
	assertContains(t, e.run(t, "today"), "5.0 min focused", "Write")
}

func TestInvalidConfigFails(t *testing.T) {
	e := setupEnv(t)
	e.writeConfig(t, "store:\n  backend: mongo\n")
	resetFlags(rootCmd)
	if _, err := executeCommand(rootCmd, "status"); err == nil {
		t.Fatal("expected a config error")
	}
}
