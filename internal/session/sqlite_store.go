package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fakeyudi/pomo/internal/logging"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	seq             INTEGER PRIMARY KEY AUTOINCREMENT,
	id              TEXT    NOT NULL DEFAULT '',
	start_time      TEXT    NOT NULL,
	end_time        TEXT    NOT NULL,
	planned_minutes INTEGER NOT NULL,
	elapsed_seconds INTEGER NOT NULL,
	label           TEXT    NOT NULL,
	end_reason      TEXT    NOT NULL DEFAULT 'completed'
);
CREATE TRIGGER IF NOT EXISTS sessions_no_update BEFORE UPDATE ON sessions
BEGIN
	SELECT RAISE(ABORT, 'session log is append-only');
END;
CREATE TRIGGER IF NOT EXISTS sessions_no_delete BEFORE DELETE ON sessions
BEGIN
	SELECT RAISE(ABORT, 'session log is append-only');
END;
CREATE TABLE IF NOT EXISTS active_slot (
	id              INTEGER PRIMARY KEY CHECK (id = 1),
	start_time      TEXT    NOT NULL,
	planned_minutes INTEGER NOT NULL,
	label           TEXT    NOT NULL,
	timer_pid       INTEGER NOT NULL DEFAULT 0
);
`

// SQLiteStore keeps the log and the slot in a single SQLite database. The
// active_slot table can hold at most one row.
type SQLiteStore struct {
	path string
	db   *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies the
// schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLiteStore{path: path, db: db}, nil
}

// LoadLog returns the valid log entries in insertion order.
func (s *SQLiteStore) LoadLog(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, start_time, end_time, planned_minutes, elapsed_seconds, label, end_reason
		FROM sessions ORDER BY seq`)
	if err != nil {
		logging.Warn("session log unreadable, treating as empty", "path", s.path, "err", err)
		return []Session{}, nil
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var (
			sess       Session
			start, end string
			reason     string
		)
		if err := rows.Scan(&sess.ID, &start, &end, &sess.PlannedMinutes, &sess.ElapsedSeconds, &sess.Label, &reason); err != nil {
			logging.Warn("skipping malformed log row", "err", err)
			continue
		}
		sess.EndReason = EndReason(reason)
		if sess.StartTime, err = time.Parse(time.RFC3339Nano, start); err != nil {
			logging.Warn("skipping log row with bad start_time", "id", sess.ID, "err", err)
			continue
		}
		if sess.EndTime, err = time.Parse(time.RFC3339Nano, end); err != nil {
			logging.Warn("skipping log row with bad end_time", "id", sess.ID, "err", err)
			continue
		}
		if err := sess.Validate(); err != nil {
			logging.Warn("skipping invalid log row", "err", err)
			continue
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		logging.Warn("session log read interrupted", "path", s.path, "err", err)
	}
	return sessions, nil
}

// AppendLog inserts s at the end of the log.
func (s *SQLiteStore) AppendLog(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, start_time, end_time, planned_minutes, elapsed_seconds, label, end_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID,
		sess.StartTime.Format(time.RFC3339Nano),
		sess.EndTime.Format(time.RFC3339Nano),
		sess.PlannedMinutes,
		sess.ElapsedSeconds,
		sess.Label,
		string(sess.Reason()),
	)
	if err != nil {
		return fmt.Errorf("failed to persist session log: %w", err)
	}
	return nil
}

// LoadActive reads the active slot row.
func (s *SQLiteStore) LoadActive(ctx context.Context) (ActiveSlot, error) {
	var (
		a     ActiveSlot
		start string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT start_time, planned_minutes, label, timer_pid FROM active_slot WHERE id = 1`,
	).Scan(&start, &a.PlannedMinutes, &a.Label, &a.TimerPID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logging.Warn("active slot unreadable, treating as idle", "path", s.path, "err", err)
		}
		return ActiveSlot{}, ErrNoActive
	}
	if a.StartTime, err = time.Parse(time.RFC3339Nano, start); err != nil {
		logging.Warn("active slot has bad start_time, treating as idle", "err", err)
		return ActiveSlot{}, ErrNoActive
	}
	if err := a.Validate(); err != nil {
		logging.Warn("active slot invalid, treating as idle", "err", err)
		return ActiveSlot{}, ErrNoActive
	}
	return a, nil
}

// SaveActive upserts the single active slot row.
func (s *SQLiteStore) SaveActive(ctx context.Context, a ActiveSlot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO active_slot (id, start_time, planned_minutes, label, timer_pid)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			start_time = excluded.start_time,
			planned_minutes = excluded.planned_minutes,
			label = excluded.label,
			timer_pid = excluded.timer_pid`,
		a.StartTime.Format(time.RFC3339Nano), a.PlannedMinutes, a.Label, a.TimerPID,
	)
	if err != nil {
		return fmt.Errorf("failed to persist active session: %w", err)
	}
	return nil
}

// DeleteActive removes the active slot row, if any.
func (s *SQLiteStore) DeleteActive(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM active_slot WHERE id = 1`); err != nil {
		return fmt.Errorf("failed to delete active session: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
