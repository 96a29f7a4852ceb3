package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SessionKind distinguishes the two session families in the log.
const (
	KindPTY   = "pty"
	KindWatch = "watch"
)

// SessionLogEntry is one row of the session history: a PTY session or watch
// that ran (or is still running, when EndedAt is zero). Target is the shell
// command line for PTY sessions and the watched directory for watches.
type SessionLogEntry struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	SessionID uint32    `json:"session_id"`
	Target    string    `json:"target"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
}

type SessionLogRepo struct {
	db *sql.DB
}

func NewSessionLogRepo(db *sql.DB) *SessionLogRepo {
	return &SessionLogRepo{db: db}
}

// Start records a newly created session and returns the log row ID used to
// mark its end later.
func (r *SessionLogRepo) Start(ctx context.Context, kind string, sessionID uint32, target string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
INSERT INTO session_log (kind, session_id, target, started_at)
VALUES (?, ?, ?, ?)
`, kind, sessionID, target, formatTimestamp(time.Now()))
	if err != nil {
		return 0, fmt.Errorf("failed to record session start: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read session log id: %w", err)
	}
	return id, nil
}

// End stamps the session's end time. Ending an already-ended or unknown row
// is harmless.
func (r *SessionLogRepo) End(ctx context.Context, logID int64) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE session_log SET ended_at = ? WHERE id = ? AND ended_at IS NULL
`, formatTimestamp(time.Now()), logID)
	if err != nil {
		return fmt.Errorf("failed to record session end: %w", err)
	}
	return nil
}

// List returns up to limit entries, most recent first.
func (r *SessionLogRepo) List(ctx context.Context, limit int) ([]*SessionLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, kind, session_id, target, started_at, ended_at
FROM session_log
ORDER BY id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list session log: %w", err)
	}
	defer rows.Close()

	var entries []*SessionLogEntry
	for rows.Next() {
		var e SessionLogEntry
		var startedRaw string
		var endedRaw sql.NullString
		if err := rows.Scan(&e.ID, &e.Kind, &e.SessionID, &e.Target, &startedRaw, &endedRaw); err != nil {
			return nil, fmt.Errorf("failed to scan session log row: %w", err)
		}
		if e.StartedAt, err = parseTimestamp(startedRaw); err != nil {
			return nil, err
		}
		if endedRaw.Valid {
			if e.EndedAt, err = parseTimestamp(endedRaw.String); err != nil {
				return nil, err
			}
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func formatTimestamp(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339)
}

func parseTimestamp(v string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", v, err)
	}
	return ts, nil
}
