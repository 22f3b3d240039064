// Package profile manages the user's persistent pomo profile.
// The profile is stored next to the global config as profile.json. It is
// created once via the interactive setup flow and fills in settings the
// config files leave unset.
package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/fakeyudi/pomo/internal/config"
	"github.com/fakeyudi/pomo/internal/session"
)

// Profile holds user-level preferences set during first-run setup.
type Profile struct {
	Name           string `json:"name"`
	DefaultMinutes int    `json:"default_minutes"`
	DefaultLabel   string `json:"default_label"`
	Backend        string `json:"backend"` // "json" | "sqlite"
	Notifications  bool   `json:"notifications"`
	Sound          bool   `json:"sound"`
}

// Default returns the profile offered to a new user.
func Default() *Profile {
	d := config.Defaults()
	return &Profile{
		DefaultMinutes: d.Defaults.Minutes,
		DefaultLabel:   d.Defaults.Label,
		Backend:        d.Store.Backend,
		Notifications:  d.Notify.Enabled,
		Sound:          d.Notify.Sound,
	}
}

// Path returns the path to the profile file.
func Path() string {
	return filepath.Join(config.ConfigDir(), "profile.json")
}

// Exists reports whether a profile file is present on disk.
func Exists() bool {
	_, err := os.Stat(Path())
	return err == nil
}

// Load reads the profile from disk. Returns an error if the file is missing or malformed.
func Load() (*Profile, error) {
	p := Path()
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("profile not found, run 'pomo setup' to configure: %w", err)
	}
	var prof Profile
	if err := json.Unmarshal(data, &prof); err != nil {
		return nil, fmt.Errorf("malformed profile at %s: %w", p, err)
	}
	return &prof, nil
}

// Save writes the profile to disk, creating the config directory if needed.
func Save(prof *Profile) error {
	p := Path()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(prof, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}

// ConfigValues maps the profile onto config keys. Unset fields are omitted so
// the built-in defaults stay in effect.
func (p *Profile) ConfigValues() map[string]any {
	if p == nil {
		return nil
	}
	values := map[string]any{
		"notify.enabled": p.Notifications,
		"notify.sound":   p.Sound,
	}
	if p.DefaultMinutes > 0 {
		values["defaults.minutes"] = p.DefaultMinutes
	}
	if label := strings.TrimSpace(p.DefaultLabel); label != "" {
		values["defaults.label"] = label
	}
	if p.Backend != "" {
		values["store.backend"] = p.Backend
	}
	return values
}

// form holds the string-typed field values huh edits.
type form struct {
	name          string
	minutes       string
	label         string
	backend       string
	notifications bool
	sound         bool
}

func newForm(f *form) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("pomo setup").
				Description("These become your defaults. Config files still override them."),
			huh.NewInput().
				Title("Your name").
				Value(&f.name),
			huh.NewInput().
				Title("Default session length (min)").
				Value(&f.minutes).
				Validate(validateMinutes),
			huh.NewInput().
				Title("Default label").
				Value(&f.label),
			huh.NewSelect[string]().
				Title("Storage").
				Options(
					huh.NewOption("JSON files", session.BackendJSON),
					huh.NewOption("SQLite database", session.BackendSQLite),
				).
				Value(&f.backend),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Notify when a session completes?").
				Value(&f.notifications),
			huh.NewConfirm().
				Title("Play a sound with the notification?").
				Value(&f.sound),
		),
	)
}

func validateMinutes(s string) error {
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("enter a whole number of minutes")
	}
	if i <= 0 {
		return fmt.Errorf("duration must be a positive number of minutes")
	}
	return nil
}

// runForm is replaced in tests.
var runForm = func(f *huh.Form) error { return f.Run() }

// RunSetup runs the interactive setup wizard and returns the resulting profile.
// If existing is non-nil, it is used as the default for each field (edit mode).
func RunSetup(existing *Profile) (*Profile, error) {
	prof := Default()
	if existing != nil {
		*prof = *existing
	}

	f := &form{
		name:          prof.Name,
		minutes:       strconv.Itoa(prof.DefaultMinutes),
		label:         prof.DefaultLabel,
		backend:       prof.Backend,
		notifications: prof.Notifications,
		sound:         prof.Sound,
	}
	if err := runForm(newForm(f)); err != nil {
		return nil, err
	}
	return f.profile()
}

func (f *form) profile() (*Profile, error) {
	if err := validateMinutes(f.minutes); err != nil {
		return nil, err
	}
	minutes, _ := strconv.Atoi(strings.TrimSpace(f.minutes))
	backend := f.backend
	if backend != session.BackendSQLite {
		backend = session.BackendJSON
	}
	return &Profile{
		Name:           strings.TrimSpace(f.name),
		DefaultMinutes: minutes,
		DefaultLabel:   session.NormalizeLabel(f.label, ""),
		Backend:        backend,
		Notifications:  f.notifications,
		Sound:          f.sound && f.notifications,
	}, nil
}
