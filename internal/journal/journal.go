// Package journal records task status transitions to an append-only audit
// log. The journal lives in its own database file so audit history
// survives plan deletion.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/sotaru/tasuke/pkg/models"
)

// Entry is one recorded status transition.
type Entry struct {
	ID        string
	SessionID string
	TaskID    string
	From      models.TaskStatus
	To        models.TaskStatus
	Note      string
	CreatedAt time.Time
}

// Journal is an append-only transition log.
type Journal struct {
	db *sql.DB
}

// DefaultPath returns the journal database path next to the plan store.
func DefaultPath(dataDir string) string {
	return filepath.Join(dataDir, "journal.db")
}

// Open opens (or creates) the journal at the given path.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS transitions (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			task_id TEXT NOT NULL,
			from_status TEXT NOT NULL,
			to_status TEXT NOT NULL,
			note TEXT,
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_transitions_session ON transitions(session_id);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create transitions table: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends one transition. Entries are never updated or deleted.
func (j *Journal) Record(sessionID, taskID string, from, to models.TaskStatus, note string) error {
	_, err := j.db.Exec(`
		INSERT INTO transitions (id, session_id, task_id, from_status, to_status, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, uuid.New().String(), sessionID, taskID, string(from), string(to), note, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record transition: %w", err)
	}
	return nil
}

// List returns all transitions for a session in record order.
func (j *Journal) List(sessionID string) ([]Entry, error) {
	rows, err := j.db.Query(`
		SELECT id, session_id, task_id, from_status, to_status, note, created_at
		FROM transitions WHERE session_id = ? ORDER BY rowid
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var note sql.NullString
		if err := rows.Scan(&e.ID, &e.SessionID, &e.TaskID, &e.From, &e.To, &note, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		if note.Valid {
			e.Note = note.String
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}
	return entries, nil
}
