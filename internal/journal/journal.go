// Package journal keeps an append-only SQLite log of workflow state
// mutations. It implements engine.Recorder and backs workflow_history.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/karimatan1106/workflow-plugin/internal/engine"

	_ "modernc.org/sqlite"
)

// DefaultLimit is the number of entries History returns when asked for
// zero or fewer.
const DefaultLimit = 20

var openDB = sql.Open

var timeNow = time.Now

// Entry is one recorded event.
type Entry struct {
	ID        int64  `json:"id" yaml:"id"`
	TaskID    string `json:"taskId" yaml:"taskId"`
	Kind      string `json:"kind" yaml:"kind"`
	From      string `json:"from,omitempty" yaml:"from,omitempty"`
	To        string `json:"to,omitempty" yaml:"to,omitempty"`
	Detail    string `json:"detail,omitempty" yaml:"detail,omitempty"`
	CreatedAt string `json:"createdAt" yaml:"createdAt"`
}

// Journal is the event store.
type Journal struct {
	db   *sql.DB
	path string
}

var _ engine.Recorder = (*Journal)(nil)

// Open opens (creating if needed) the journal database at path.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("journal: create dir: %w", err)
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("journal: pragma %q: %w", p, err)
		}
	}

	j := &Journal{db: db, path: path}
	if err := j.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: migration: %w", err)
	}
	return j, nil
}

// Path returns the database file.
func (j *Journal) Path() string { return j.path }

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS events (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			task_id    TEXT NOT NULL,
			kind       TEXT NOT NULL,
			from_phase TEXT NOT NULL DEFAULT '',
			to_phase   TEXT NOT NULL DEFAULT '',
			detail     TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_events_task ON events(task_id, id);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Record appends one event.
func (j *Journal) Record(ctx context.Context, e engine.Event) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO events (task_id, kind, from_phase, to_phase, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.TaskID, string(e.Kind), string(e.From), string(e.To), e.Detail,
		timeNow().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("journal: insert event: %w", err)
	}
	return nil
}

// History returns up to limit events, newest first. An empty taskID
// returns events of every task.
func (j *Journal) History(ctx context.Context, taskID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	query := `
		SELECT id, task_id, kind, from_phase, to_phase, detail, created_at
		FROM events
		WHERE 1=1
	`
	args := []any{}

	if taskID != "" {
		query += " AND task_id = ?"
		args = append(args, taskID)
	}

	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.TaskID, &e.Kind, &e.From, &e.To, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, e)
	}
	return results, rows.Err()
}
