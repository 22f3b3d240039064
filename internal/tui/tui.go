// Package tui provides the Bubble Tea countdown shown by `pomo watch`.
package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"

	"github.com/fakeyudi/pomo/internal/filelock"
	"github.com/fakeyudi/pomo/internal/logging"
	"github.com/fakeyudi/pomo/internal/pomodoro"
)

// ── Styles ────────────

var (
	// Title bar at the very top
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	clockStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Padding(1, 2, 0, 2)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("178"))

	doneStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	sectionHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("245")).
			Padding(0, 1)
)

// Controller is the subset of the state machine the view drives.
type Controller interface {
	Status(ctx context.Context) (pomodoro.Result, error)
	Stop(ctx context.Context) (pomodoro.Result, error)
	Cancel(ctx context.Context) (pomodoro.Result, error)
}

// ── Messages ────────────

type tickMsg time.Time

// changedMsg reports a write to the data directory by another process.
type changedMsg struct{}

type statusMsg struct {
	res pomodoro.Result
	err error
}

type actionMsg struct {
	verb string
	res  pomodoro.Result
	err  error
}

type event struct {
	at   time.Time
	text string
}

// ── Model ────────────────────

// Model is the root Bubble Tea model for the countdown.
type Model struct {
	ctx     context.Context
	ctrl    Controller
	changes <-chan struct{}
	now     func() time.Time

	status   pomodoro.Result
	err      error
	events   []event
	bar      progress.Model
	history  viewport.Model
	width    int
	height   int
	ready    bool
	quitting bool
}

// New creates the model. changes may be nil when the data directory is not
// watched; the view then relies on the one-second tick alone.
func New(ctx context.Context, ctrl Controller, changes <-chan struct{}) Model {
	return Model{
		ctx:     ctx,
		ctrl:    ctrl,
		changes: changes,
		now:     time.Now,
		bar:     progress.New(progress.WithDefaultGradient()),
	}
}

// ── Bubble Tea interface ───────────────

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refresh(), tick(), m.waitForChange())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "s":
			if m.status.Outcome == pomodoro.Running {
				return m, m.act("stop", m.ctrl.Stop)
			}
		case "c":
			if m.status.Outcome == pomodoro.Running {
				return m, m.act("cancel", m.ctrl.Cancel)
			}
		}
		var cmd tea.Cmd
		m.history, cmd = m.history.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.bar.Width = max(msg.Width-4, 10)
		m.initHistory()
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.refresh(), tick())

	case changedMsg:
		return m, tea.Batch(m.refresh(), m.waitForChange())

	case statusMsg:
		m.err = msg.err
		if msg.err == nil {
			if msg.res.Outcome == pomodoro.JustCompleted && msg.res.Session != nil {
				m.addEvent(doneStyle.Render("completed") + " " + msg.res.Session.Label)
			}
			m.status = msg.res
		}
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		switch msg.res.Outcome {
		case pomodoro.Finalized:
			m.addEvent(fmt.Sprintf("stopped %s after %s", msg.res.Session.Label,
				time.Duration(msg.res.Session.ElapsedSeconds)*time.Second))
		case pomodoro.Cancelled:
			m.addEvent("cancelled " + msg.res.Slot.Label)
		default:
			m.addEvent("nothing to " + msg.verb)
		}
		return m, m.refresh()
	}
	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading…"
	}

	title := titleStyle.Width(m.width).Render("  pomo  watch")
	body := m.renderTimer()

	hint := "  s stop  c cancel  ↑/↓ scroll  q quit"
	statusBar := statusBarStyle.Width(m.width).Render(hint)

	return lipgloss.JoinVertical(lipgloss.Left, title, body, sectionHeader.Render("  History"), m.history.View(), statusBar)
}

// ── Rendering ────────────

// timerHeight is the number of rows renderTimer produces.
const timerHeight = 6

func (m Model) renderTimer() string {
	var sb strings.Builder
	switch m.status.Outcome {
	case pomodoro.Running:
		slot := m.status.Slot
		planned := slot.Planned()
		pct := 0.0
		if planned > 0 {
			pct = 1 - float64(m.status.Remaining)/float64(planned)
		}
		sb.WriteString(clockStyle.Render(pomodoro.FormatRemaining(m.status.Remaining)) + "\n")
		fmt.Fprintf(&sb, "  %s %s\n", labelStyle.Render(slot.Label),
			dimStyle.Render(fmt.Sprintf("· %d min · started %s", slot.PlannedMinutes, slot.StartTime.Format("15:04"))))
		sb.WriteString("  " + m.bar.ViewAs(min(max(pct, 0), 1)) + "\n")
	default:
		sb.WriteString(clockStyle.Render("--:--") + "\n")
		sb.WriteString("  " + dimStyle.Render("No active session. Start one with `pomo start <minutes>`.") + "\n")
		sb.WriteString("\n")
	}
	if m.err != nil {
		sb.WriteString("  " + errorStyle.Render(m.err.Error()) + "\n")
	} else {
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m *Model) initHistory() {
	// title(1) + timer + header(1) + statusBar(1)
	h := max(m.height-timerHeight-3, 1)
	m.history = viewport.New(m.width, h)
	m.history.SetContent(m.renderHistory())
}

func (m *Model) addEvent(text string) {
	m.events = append(m.events, event{at: m.now(), text: text})
	if m.ready {
		m.history.SetContent(m.renderHistory())
		m.history.GotoBottom()
	}
}

func (m *Model) renderHistory() string {
	if len(m.events) == 0 {
		return dimStyle.Render("  Nothing yet.")
	}
	var sb strings.Builder
	for _, e := range m.events {
		fmt.Fprintf(&sb, "  %s %s\n", timeStyle.Render(e.at.Format("15:04:05")), e.text)
	}
	return sb.String()
}

// ── Commands ────────────

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) refresh() tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		res, err := ctrl.Status(ctx)
		return statusMsg{res: res, err: err}
	}
}

func (m Model) act(verb string, fn func(context.Context) (pomodoro.Result, error)) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		res, err := fn(ctx)
		return actionMsg{verb: verb, res: res, err: err}
	}
}

func (m Model) waitForChange() tea.Cmd {
	if m.changes == nil {
		return nil
	}
	changes := m.changes
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return nil
		}
		return changedMsg{}
	}
}

// ── Entry point ────────────

// Run shows the countdown until the user quits. Writes to dataDir by other
// pomo processes refresh the view immediately.
func Run(ctx context.Context, ctrl Controller, dataDir string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	changes, err := WatchDir(ctx, dataDir)
	if err != nil {
		logging.Warn("not watching data directory; refreshing on the timer only", "dir", dataDir, "err", err)
		changes = nil
	}

	_, err = tea.NewProgram(New(ctx, ctrl, changes), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// WatchDir reports writes to the session files in dir until ctx is done.
// Lock file churn is ignored. Bursts collapse into one pending notification.
func WatchDir(ctx context.Context, dir string) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	out := make(chan struct{}, 1)
	go func() {
		defer watcher.Close()
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) == filelock.FileName || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) {
					continue
				}
				select {
				case out <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Warn("data directory watch error", "err", err)
			}
		}
	}()
	return out, nil
}
