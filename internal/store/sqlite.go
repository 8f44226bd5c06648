package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sotaru/tasuke/internal/graph"
	"github.com/sotaru/tasuke/pkg/models"
)

// DB is a SQLite-backed PlanStore. WAL mode is enabled for concurrent
// reads; writes are serialized through a mutex on top of SQLite's own
// locking so that read-modify-write sequences stay atomic per plan.
type DB struct {
	conn *sql.DB
	path string
	mu   sync.Mutex
}

// DefaultDBPath returns the path to the tasuke database under XDG_DATA_HOME.
func DefaultDBPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "tasuke", "tasuke.db")
}

// Open opens a SQLite database at the given path, creating parent
// directories if needed.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &DB{conn: conn, path: path}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the path to the database file.
func (db *DB) Path() string {
	return db.path
}

// Migrate applies all pending schema migrations.
func (db *DB) Migrate() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Sessions},
		{2, migrationV2Plans},
		{3, migrationV3Tasks},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

const migrationV1Sessions = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	context TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

const migrationV2Plans = `
CREATE TABLE IF NOT EXISTS plans (
	session_id TEXT PRIMARY KEY,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

const migrationV3Tasks = `
CREATE TABLE IF NOT EXISTS tasks (
	session_id TEXT NOT NULL,
	id TEXT NOT NULL,
	agent_type TEXT NOT NULL,
	description TEXT NOT NULL,
	depends_on TEXT,
	category TEXT NOT NULL,
	reference_type TEXT,
	status TEXT NOT NULL DEFAULT 'pending',
	result TEXT,
	error TEXT,
	tags TEXT,
	attempts INTEGER NOT NULL DEFAULT 0,
	obsolete INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (session_id, id)
);

CREATE INDEX IF NOT EXISTS idx_tasks_session ON tasks(session_id);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(session_id, status);
`

// CreatePlan stores a new plan for the session.
func (db *DB) CreatePlan(sessionID string, tasks []*models.Task) (*models.Plan, error) {
	if err := graph.Validate(tasks); err != nil {
		return nil, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	var exists int
	row := db.conn.QueryRow("SELECT COUNT(*) FROM plans WHERE session_id = ?", sessionID)
	if err := row.Scan(&exists); err != nil {
		return nil, fmt.Errorf("check existing plan: %w", err)
	}
	if exists > 0 {
		return nil, fmt.Errorf("%w: session %s", models.ErrDuplicatePlan, sessionID)
	}

	now := time.Now()
	err := db.transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			INSERT INTO plans (session_id, created_at, updated_at) VALUES (?, ?, ?)
		`, sessionID, formatTime(now), formatTime(now)); err != nil {
			return fmt.Errorf("insert plan: %w", err)
		}

		for _, t := range tasks {
			if t.CreatedAt.IsZero() {
				t.CreatedAt = now
			}
			t.Touch(now)
			if err := insertTask(tx, sessionID, t); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return db.getPlanLocked(sessionID)
}

// GetPlan returns the session's plan.
func (db *DB) GetPlan(sessionID string) (*models.Plan, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.getPlanLocked(sessionID)
}

func (db *DB) getPlanLocked(sessionID string) (*models.Plan, error) {
	row := db.conn.QueryRow(`
		SELECT created_at, updated_at FROM plans WHERE session_id = ?
	`, sessionID)

	var createdAt, updatedAt string
	err := row.Scan(&createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: plan for session %s", models.ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}

	plan := &models.Plan{SessionID: sessionID}
	if plan.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse plan created_at: %w", err)
	}
	if plan.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse plan updated_at: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT id, agent_type, description, depends_on, category, reference_type,
			status, result, error, tags, attempts, obsolete, created_at, updated_at
		FROM tasks WHERE session_id = ? ORDER BY rowid
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		plan.Tasks = append(plan.Tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}

	return plan, nil
}

// AppendTasks adds tasks to an existing plan after re-validating the union.
func (db *DB) AppendTasks(sessionID string, tasks []*models.Task) (*models.Plan, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	plan, err := db.getPlanLocked(sessionID)
	if err != nil {
		return nil, err
	}

	union := make([]*models.Task, 0, len(plan.Tasks)+len(tasks))
	union = append(union, plan.Tasks...)
	union = append(union, tasks...)
	if err := graph.Validate(union); err != nil {
		return nil, err
	}

	now := time.Now()
	err = db.transaction(func(tx *sql.Tx) error {
		for _, t := range tasks {
			if t.CreatedAt.IsZero() {
				t.CreatedAt = now
			}
			t.Touch(now)
			if err := insertTask(tx, sessionID, t); err != nil {
				return err
			}
		}
		return touchPlan(tx, sessionID, now)
	})
	if err != nil {
		return nil, err
	}

	return db.getPlanLocked(sessionID)
}

// UpdateTask applies a patch to a task.
func (db *DB) UpdateTask(sessionID, taskID string, patch TaskPatch) (*models.Task, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	task, err := db.getTaskLocked(sessionID, taskID)
	if err != nil {
		return nil, err
	}

	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", models.ErrInvalidTransition, *patch.Status)
		}
		if !task.Status.CanTransition(*patch.Status) {
			return nil, fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, task.Status, *patch.Status)
		}
		task.Status = *patch.Status
	}
	if patch.Result != nil {
		task.Result = *patch.Result
	}
	if patch.Error != nil {
		task.Error = *patch.Error
	}
	if patch.Obsolete != nil {
		task.Obsolete = *patch.Obsolete
	}
	if patch.Tags != nil {
		task.Tags = append([]string(nil), patch.Tags...)
	}

	now := time.Now()
	task.Touch(now)

	err = db.transaction(func(tx *sql.Tx) error {
		if err := writeTask(tx, sessionID, task); err != nil {
			return err
		}
		return touchPlan(tx, sessionID, now)
	})
	if err != nil {
		return nil, err
	}

	return task, nil
}

// ClaimTask atomically moves a task from ready to running via a
// compare-and-swap on the status column.
func (db *DB) ClaimTask(sessionID, taskID string) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, err := db.getTaskLocked(sessionID, taskID); err != nil {
		return false, err
	}

	now := time.Now()
	res, err := db.conn.Exec(`
		UPDATE tasks SET status = ?, attempts = attempts + 1, updated_at = ?
		WHERE session_id = ? AND id = ? AND status = ?
	`, string(models.TaskStatusRunning), formatTime(now), sessionID, taskID,
		string(models.TaskStatusReady))
	if err != nil {
		return false, fmt.Errorf("claim task: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	_, err = db.conn.Exec(`UPDATE plans SET updated_at = ? WHERE session_id = ?`,
		formatTime(now), sessionID)
	if err != nil {
		return false, fmt.Errorf("touch plan: %w", err)
	}
	return true, nil
}

// RetryTask resets a failed task and its blocked dependents to pending.
func (db *DB) RetryTask(sessionID, taskID string) (*models.Task, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	plan, err := db.getPlanLocked(sessionID)
	if err != nil {
		return nil, err
	}
	task := plan.Task(taskID)
	if task == nil {
		return nil, fmt.Errorf("%w: task %s", models.ErrNotFound, taskID)
	}
	if task.Status != models.TaskStatusFailed {
		return nil, fmt.Errorf("%w: retry requires failed, task %s is %s",
			models.ErrInvalidTransition, taskID, task.Status)
	}

	now := time.Now()
	task.Status = models.TaskStatusPending
	task.Error = ""
	task.Attempts = 0
	task.Touch(now)

	resetBlockedDependents(plan, taskID, now)

	err = db.transaction(func(tx *sql.Tx) error {
		for _, t := range plan.Tasks {
			if err := writeTask(tx, sessionID, t); err != nil {
				return err
			}
		}
		return touchPlan(tx, sessionID, now)
	})
	if err != nil {
		return nil, err
	}

	return task.Clone(), nil
}

// DeletePlan removes the plan and all its tasks. Idempotent.
func (db *DB) DeletePlan(sessionID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM tasks WHERE session_id = ?", sessionID); err != nil {
			return fmt.Errorf("delete tasks: %w", err)
		}
		if _, err := tx.Exec("DELETE FROM plans WHERE session_id = ?", sessionID); err != nil {
			return fmt.Errorf("delete plan: %w", err)
		}
		return nil
	})
}

// SaveSession upserts a session record.
func (db *DB) SaveSession(s *models.Session) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	now := time.Now()
	created := s.CreatedAt
	if created.IsZero() {
		created = now
	}

	_, err := db.conn.Exec(`
		INSERT INTO sessions (id, context, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET context = excluded.context, updated_at = excluded.updated_at
	`, s.ID, s.Context, formatTime(created), formatTime(now))
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// GetSession returns the session record.
func (db *DB) GetSession(id string) (*models.Session, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	row := db.conn.QueryRow(`
		SELECT id, context, created_at, updated_at FROM sessions WHERE id = ?
	`, id)

	var s models.Session
	var createdAt, updatedAt string
	err := row.Scan(&s.ID, &s.Context, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: session %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse session created_at: %w", err)
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse session updated_at: %w", err)
	}
	return &s, nil
}

// getTaskLocked loads a single task row.
func (db *DB) getTaskLocked(sessionID, taskID string) (*models.Task, error) {
	var exists int
	row := db.conn.QueryRow("SELECT COUNT(*) FROM plans WHERE session_id = ?", sessionID)
	if err := row.Scan(&exists); err != nil {
		return nil, fmt.Errorf("check plan: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: plan for session %s", models.ErrNotFound, sessionID)
	}

	rows, err := db.conn.Query(`
		SELECT id, agent_type, description, depends_on, category, reference_type,
			status, result, error, tags, attempts, obsolete, created_at, updated_at
		FROM tasks WHERE session_id = ? AND id = ?
	`, sessionID, taskID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, fmt.Errorf("%w: task %s", models.ErrNotFound, taskID)
	}
	return scanTask(rows)
}

// transaction runs fn within a transaction.
func (db *DB) transaction(fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// insertTask writes a new task row.
func insertTask(tx *sql.Tx, sessionID string, t *models.Task) error {
	dependsOn, err := marshalStrings(t.DependsOn)
	if err != nil {
		return fmt.Errorf("marshal depends_on: %w", err)
	}
	tags, err := marshalStrings(t.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO tasks (session_id, id, agent_type, description, depends_on,
			category, reference_type, status, result, error, tags, attempts,
			obsolete, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sessionID, t.ID, string(t.AgentType), t.Description, dependsOn,
		string(t.Category), string(t.ReferenceType), string(t.Status),
		t.Result, t.Error, tags, t.Attempts, boolToInt(t.Obsolete),
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert task %s: %w", t.ID, err)
	}
	return nil
}

// writeTask updates an existing task row.
func writeTask(tx *sql.Tx, sessionID string, t *models.Task) error {
	dependsOn, err := marshalStrings(t.DependsOn)
	if err != nil {
		return fmt.Errorf("marshal depends_on: %w", err)
	}
	tags, err := marshalStrings(t.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	_, err = tx.Exec(`
		UPDATE tasks SET agent_type = ?, description = ?, depends_on = ?,
			category = ?, reference_type = ?, status = ?, result = ?, error = ?,
			tags = ?, attempts = ?, obsolete = ?, updated_at = ?
		WHERE session_id = ? AND id = ?
	`, string(t.AgentType), t.Description, dependsOn, string(t.Category),
		string(t.ReferenceType), string(t.Status), t.Result, t.Error, tags,
		t.Attempts, boolToInt(t.Obsolete), formatTime(t.UpdatedAt), sessionID, t.ID)
	if err != nil {
		return fmt.Errorf("update task %s: %w", t.ID, err)
	}
	return nil
}

// touchPlan bumps a plan's updated_at.
func touchPlan(tx *sql.Tx, sessionID string, now time.Time) error {
	if _, err := tx.Exec(`UPDATE plans SET updated_at = ? WHERE session_id = ?`,
		formatTime(now), sessionID); err != nil {
		return fmt.Errorf("touch plan: %w", err)
	}
	return nil
}

// scanTask reads one task from the current row.
func scanTask(rows *sql.Rows) (*models.Task, error) {
	var t models.Task
	var dependsOn, tags, result, errText, refType sql.NullString
	var obsolete int
	var createdAt, updatedAt string

	err := rows.Scan(&t.ID, &t.AgentType, &t.Description, &dependsOn,
		&t.Category, &refType, &t.Status, &result, &errText, &tags,
		&t.Attempts, &obsolete, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}

	if refType.Valid {
		t.ReferenceType = models.ReferenceType(refType.String)
	}
	if result.Valid {
		t.Result = result.String
	}
	if errText.Valid {
		t.Error = errText.String
	}
	t.Obsolete = obsolete != 0

	if t.DependsOn, err = unmarshalStrings(dependsOn); err != nil {
		return nil, fmt.Errorf("unmarshal depends_on for %s: %w", t.ID, err)
	}
	if t.Tags, err = unmarshalStrings(tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags for %s: %w", t.ID, err)
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at for %s: %w", t.ID, err)
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at for %s: %w", t.ID, err)
	}

	return &t, nil
}

// marshalStrings JSON-encodes a string slice for a TEXT column.
func marshalStrings(ss []string) (string, error) {
	if len(ss) == 0 {
		return "", nil
	}
	b, err := json.Marshal(ss)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// unmarshalStrings decodes a TEXT column into a string slice.
func unmarshalStrings(s sql.NullString) ([]string, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s.String), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// formatTime formats a time.Time for SQLite storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime parses a time string from SQLite.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
