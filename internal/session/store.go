package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fakeyudi/pomo/internal/logging"
)

// ErrNoActive is returned by LoadActive when no session is running.
var ErrNoActive = errors.New("no active session")

// Backend names accepted by Open.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Store persists the session log and the active slot.
//
// Loads never fail on corrupt data: an unreadable log loads as empty and an
// unreadable slot loads as ErrNoActive, with a warning logged. Callers are
// responsible for mutual exclusion across processes.
type Store interface {
	LoadLog(ctx context.Context) ([]Session, error)
	AppendLog(ctx context.Context, s Session) error
	LoadActive(ctx context.Context) (ActiveSlot, error)
	SaveActive(ctx context.Context, a ActiveSlot) error
	DeleteActive(ctx context.Context) error
	Close() error
}

// DataDir returns the pomo data directory.
// Path: $XDG_DATA_HOME/pomo or ~/.local/share/pomo
func DataDir() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "pomo"), nil
}

// Open creates the data directory if needed and returns the Store for backend.
func Open(dir, backend string) (Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	switch backend {
	case "", BackendJSON:
		return NewJSONStore(dir), nil
	case BackendSQLite:
		return OpenSQLite(filepath.Join(dir, "pomo.db"))
	default:
		return nil, fmt.Errorf("unknown store backend %q (supported: json, sqlite)", backend)
	}
}

// JSONStore keeps the log and the slot as two indented JSON documents.
type JSONStore struct {
	logPath    string // sessions.json
	activePath string // active.json
}

// NewJSONStore returns a JSONStore rooted at dir. The directory must exist.
func NewJSONStore(dir string) *JSONStore {
	return &JSONStore{
		logPath:    filepath.Join(dir, "sessions.json"),
		activePath: filepath.Join(dir, "active.json"),
	}
}

// LoadLog returns the valid log entries in log order.
func (j *JSONStore) LoadLog(_ context.Context) ([]Session, error) {
	raw, err := j.readRawLog()
	if err != nil {
		logging.Warn("session log unreadable, treating as empty", "path", j.logPath, "err", err)
		return []Session{}, nil
	}

	sessions := make([]Session, 0, len(raw))
	for i, r := range raw {
		var s Session
		if err := json.Unmarshal(r, &s); err != nil {
			logging.Warn("skipping malformed log entry", "index", i, "err", err)
			continue
		}
		if err := s.Validate(); err != nil {
			logging.Warn("skipping invalid log entry", "index", i, "err", err)
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// AppendLog adds s to the end of the log. Existing entries are carried over
// byte-for-byte. A log that cannot be parsed is moved aside first so the
// append never overwrites it.
func (j *JSONStore) AppendLog(_ context.Context, s Session) error {
	raw, err := j.readRawLog()
	if err != nil {
		backup := j.logPath + ".corrupt-" + strconv.FormatInt(time.Now().Unix(), 10)
		if rerr := os.Rename(j.logPath, backup); rerr != nil {
			return fmt.Errorf("failed to preserve corrupt session log: %w", rerr)
		}
		logging.Warn("corrupt session log preserved", "backup", backup, "err", err)
		raw = nil
	}

	entry, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	raw = append(raw, entry)

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session log: %w", err)
	}
	if err := writeAtomic(j.logPath, data); err != nil {
		return fmt.Errorf("failed to persist session log: %w", err)
	}
	return nil
}

// readRawLog returns the log entries undecoded. A missing or empty file is an
// empty log.
func (j *JSONStore) readRawLog() ([]json.RawMessage, error) {
	data, err := os.ReadFile(j.logPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// LoadActive reads the active slot. Returns ErrNoActive if the file does not
// exist or does not hold a valid slot.
func (j *JSONStore) LoadActive(_ context.Context) (ActiveSlot, error) {
	data, err := os.ReadFile(j.activePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ActiveSlot{}, ErrNoActive
		}
		logging.Warn("active slot unreadable, treating as idle", "path", j.activePath, "err", err)
		return ActiveSlot{}, ErrNoActive
	}

	var a ActiveSlot
	if err := json.Unmarshal(data, &a); err != nil {
		logging.Warn("active slot malformed, treating as idle", "path", j.activePath, "err", err)
		return ActiveSlot{}, ErrNoActive
	}
	if err := a.Validate(); err != nil {
		logging.Warn("active slot invalid, treating as idle", "path", j.activePath, "err", err)
		return ActiveSlot{}, ErrNoActive
	}
	return a, nil
}

// SaveActive writes the active slot atomically.
func (j *JSONStore) SaveActive(_ context.Context, a ActiveSlot) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to persist active session: %w", err)
	}
	if err := writeAtomic(j.activePath, data); err != nil {
		return fmt.Errorf("failed to persist active session: %w", err)
	}
	return nil
}

// DeleteActive removes the active slot file.
func (j *JSONStore) DeleteActive(_ context.Context) error {
	if err := os.Remove(j.activePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete active session: %w", err)
	}
	return nil
}

// Close is a no-op for the JSON backend.
func (j *JSONStore) Close() error { return nil }

// writeAtomic writes data via a temp file in the same directory + os.Rename.
func writeAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Clean up the temp file on any error path.
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
