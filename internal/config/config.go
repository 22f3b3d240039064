// Package config loads pomo settings. Values are layered, lowest first:
// built-in defaults, the user profile, the global config file, the project
// file (.pomo.yaml in the working directory), then POMO_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/fakeyudi/pomo/internal/session"
)

// ProjectFile is looked up in the working directory.
const ProjectFile = ".pomo.yaml"

// Config holds all configurable pomo settings.
type Config struct {
	Defaults DefaultsConfig `mapstructure:"defaults"`
	Store    StoreConfig    `mapstructure:"store"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Timer    TimerConfig    `mapstructure:"timer"`
	Stats    StatsConfig    `mapstructure:"stats"`
	Log      LogConfig      `mapstructure:"log"`
}

// DefaultsConfig applies to `pomo start` when arguments are omitted.
type DefaultsConfig struct {
	Minutes int    `mapstructure:"minutes"`
	Label   string `mapstructure:"label"`
}

// StoreConfig selects where sessions are kept.
type StoreConfig struct {
	Backend string `mapstructure:"backend"` // "json" | "sqlite"
	DataDir string `mapstructure:"data_dir"`
}

// NotifyConfig controls the completion notification.
type NotifyConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Sound     bool   `mapstructure:"sound"`
	SoundPath string `mapstructure:"sound_path"`
}

// TimerConfig controls the detached auto-stop process.
type TimerConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// StatsConfig controls `pomo stats`.
type StatsConfig struct {
	Days int `mapstructure:"days"`
}

// LogConfig controls the log file.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Defaults: DefaultsConfig{Minutes: 25, Label: session.DefaultLabel},
		Store:    StoreConfig{Backend: session.BackendJSON},
		Notify:   NotifyConfig{Enabled: true, Sound: true},
		Timer:    TimerConfig{Enabled: true},
		Stats:    StatsConfig{Days: 7},
		Log:      LogConfig{Level: "warn"},
	}
}

// SetDefaults registers every key with v, so environment overrides apply to
// keys that no file mentions.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("defaults.minutes", d.Defaults.Minutes)
	v.SetDefault("defaults.label", d.Defaults.Label)
	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.data_dir", d.Store.DataDir)
	v.SetDefault("notify.enabled", d.Notify.Enabled)
	v.SetDefault("notify.sound", d.Notify.Sound)
	v.SetDefault("notify.sound_path", d.Notify.SoundPath)
	v.SetDefault("timer.enabled", d.Timer.Enabled)
	v.SetDefault("stats.days", d.Stats.Days)
	v.SetDefault("log.level", d.Log.Level)
}

// LoadOptions tunes Load. The zero value loads the usual locations.
type LoadOptions struct {
	// File replaces the global config file path.
	File string
	// ProjectDir is searched for ProjectFile. Empty means the working directory.
	ProjectDir string
	// Profile values sit between the built-in defaults and the files.
	Profile map[string]any
}

// Load resolves the layered configuration and validates it.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	for key, value := range opts.Profile {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix("POMO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	global := opts.File
	if global == "" {
		global = ConfigFile()
	}
	if err := readFile(v, global, false); err != nil {
		return nil, err
	}

	projectDir := opts.ProjectDir
	if projectDir == "" {
		projectDir = "."
	}
	if err := readFile(v, filepath.Join(projectDir, ProjectFile), true); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// readFile loads path into v, merging over earlier files when merge is set.
// A missing file is not an error.
func readFile(v *viper.Viper, path string, merge bool) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("yaml")
	}

	var err error
	if merge {
		err = v.MergeInConfig()
	} else {
		err = v.ReadInConfig()
	}
	if err != nil {
		return &ParseError{Path: path, Err: err}
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Defaults.Minutes <= 0 {
		errs = append(errs, fmt.Errorf("defaults.minutes must be positive, got %d", c.Defaults.Minutes))
	}
	switch c.Store.Backend {
	case session.BackendJSON, session.BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("store.backend must be %q or %q, got %q",
			session.BackendJSON, session.BackendSQLite, c.Store.Backend))
	}
	if c.Stats.Days <= 0 {
		errs = append(errs, fmt.Errorf("stats.days must be positive, got %d", c.Stats.Days))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// DataDir returns the configured data directory or the XDG default.
func (c *Config) DataDir() (string, error) {
	if c.Store.DataDir != "" {
		return expandHome(c.Store.DataDir)
	}
	return session.DataDir()
}

// ConfigDir returns the pomo config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "pomo")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pomo"
	}
	return filepath.Join(home, ".config", "pomo")
}

// ConfigFile returns the global config file path.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
