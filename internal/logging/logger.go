// Package logging provides the process-wide structured logger. Output goes to
// a size-rotated file in the data directory so detached timer processes, which
// have no terminal, still leave a trace.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the global logger instance. It is nil until Init is called, and
// every helper below is a no-op while it is nil.
var Logger *log.Logger

// Config holds logger configuration.
type Config struct {
	// Dir is the directory that receives pomo.log.
	Dir string
	// Level is one of debug, info, warn, error. Unknown values mean warn.
	Level string
	// Debug mirrors output to stderr and reports callers.
	Debug bool
	// Prefix distinguishes interactive commands from the detached timer.
	Prefix string
}

// Init initializes the global logger with the given configuration.
func Init(cfg Config) error {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return err
	}

	fileWriter := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Dir, "pomo.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}

	level := ParseLevel(cfg.Level)
	var writer io.Writer = fileWriter
	if cfg.Debug {
		level = log.DebugLevel
		writer = io.MultiWriter(os.Stderr, fileWriter)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "pomo"
	}

	Logger = log.NewWithOptions(writer, log.Options{
		ReportCaller:    cfg.Debug,
		ReportTimestamp: true,
		Level:           level,
		Prefix:          prefix,
	})
	return nil
}

// Discard installs a logger that drops everything. Tests use it to exercise
// logging call sites without touching the filesystem.
func Discard() {
	Logger = log.NewWithOptions(io.Discard, log.Options{Level: log.DebugLevel})
}

// ParseLevel maps a config string to a log level, defaulting to warn.
func ParseLevel(s string) log.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DebugLevel
	case "info":
		return log.InfoLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.WarnLevel
	}
}

// Debug logs a debug message.
func Debug(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Debug(msg, keyvals...)
	}
}

// Info logs an info message.
func Info(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Info(msg, keyvals...)
	}
}

// Warn logs a warning message.
func Warn(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Warn(msg, keyvals...)
	}
}

// Error logs an error message.
func Error(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Error(msg, keyvals...)
	}
}
