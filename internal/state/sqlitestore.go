package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on an embedded SQLite database. It is the
// default backend and additionally keeps a history of finished runs.
type SQLiteStore struct {
	db *sql.DB
}

// RunRecord is one row of run history.
type RunRecord struct {
	RunID       string
	StartedAt   time.Time
	CompletedAt *time.Time
	Status      string // running, success, failed
	Summary     string
}

// NewSQLiteStore opens (creating if needed) the state database in dataDir.
func NewSQLiteStore(dataDir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "editor-stats.db")
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening state database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating state schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS workflow (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		schema_version INTEGER NOT NULL,
		run_id TEXT,
		run_started_at TEXT,
		last_updated_at TEXT
	);

	CREATE TABLE IF NOT EXISTS steps (
		step INTEGER PRIMARY KEY,
		completed INTEGER NOT NULL DEFAULT 0,
		output TEXT
	);

	CREATE TABLE IF NOT EXISTS partial_progress (
		step INTEGER PRIMARY KEY,
		payload TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS error_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		step INTEGER NOT NULL,
		message TEXT NOT NULL,
		ts TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		completed_at TEXT,
		status TEXT NOT NULL DEFAULT 'running',
		summary TEXT
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Load reconstructs the WorkflowState from the step, progress, and error
// tables. A missing workflow row means no run has started yet.
func (s *SQLiteStore) Load() (*WorkflowState, error) {
	st := New()

	var startedAt, updatedAt sql.NullString
	var runID sql.NullString
	err := s.db.QueryRow(`
		SELECT schema_version, run_id, run_started_at, last_updated_at
		FROM workflow WHERE id = 1
	`).Scan(&st.SchemaVersion, &runID, &startedAt, &updatedAt)
	if err == sql.ErrNoRows {
		return st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("state store: loading workflow row: %w", err)
	}
	if err := checkVersion(st.SchemaVersion); err != nil {
		return nil, err
	}
	st.RunID = runID.String
	if t, ok := parseTime(startedAt); ok {
		st.RunStartedAt = &t
	}
	if t, ok := parseTime(updatedAt); ok {
		st.LastUpdatedAt = &t
	}

	rows, err := s.db.Query(`SELECT step, completed, output FROM steps ORDER BY step`)
	if err != nil {
		return nil, fmt.Errorf("state store: loading steps: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var step, completed int
		var output sql.NullString
		if err := rows.Scan(&step, &completed, &output); err != nil {
			return nil, err
		}
		if completed == 1 {
			st.CompletedSteps = append(st.CompletedSteps, step)
			var out any
			if output.Valid && output.String != "" {
				if err := json.Unmarshal([]byte(output.String), &out); err != nil {
					return nil, fmt.Errorf("state store: step %d output corrupt: %w", step, err)
				}
			}
			st.StepOutputs[step] = out
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	prows, err := s.db.Query(`SELECT step, payload FROM partial_progress ORDER BY step`)
	if err != nil {
		return nil, fmt.Errorf("state store: loading partial progress: %w", err)
	}
	defer prows.Close()
	for prows.Next() {
		var step int
		var payload string
		if err := prows.Scan(&step, &payload); err != nil {
			return nil, err
		}
		var p any
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, fmt.Errorf("state store: step %d partial progress corrupt: %w", step, err)
		}
		st.PartialProgress[step] = p
	}
	if err := prows.Err(); err != nil {
		return nil, err
	}

	erows, err := s.db.Query(`SELECT step, message, ts FROM error_log ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("state store: loading error log: %w", err)
	}
	defer erows.Close()
	for erows.Next() {
		var e ErrorEntry
		var ts string
		if err := erows.Scan(&e.Step, &e.Message, &ts); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			e.Timestamp = t
		}
		st.ErrorLog = append(st.ErrorLog, e)
	}
	if err := erows.Err(); err != nil {
		return nil, err
	}

	st.normalize()
	return st, nil
}

// Save replaces the stored state in one transaction, so a crash mid-save
// leaves the previous committed state intact.
func (s *SQLiteStore) Save(st *WorkflowState) error {
	now := time.Now()
	st.LastUpdatedAt = &now
	st.SchemaVersion = SchemaVersion

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("state store: beginning save: %w", err)
	}
	defer tx.Rollback()

	var startedAt any
	if st.RunStartedAt != nil {
		startedAt = st.RunStartedAt.Format(time.RFC3339Nano)
	}
	if _, err := tx.Exec(`
		INSERT INTO workflow (id, schema_version, run_id, run_started_at, last_updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			schema_version = excluded.schema_version,
			run_id = excluded.run_id,
			run_started_at = excluded.run_started_at,
			last_updated_at = excluded.last_updated_at
	`, st.SchemaVersion, st.RunID, startedAt, now.Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("state store: saving workflow row: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM steps`); err != nil {
		return err
	}
	for _, step := range st.CompletedSteps {
		output, err := json.Marshal(st.StepOutputs[step])
		if err != nil {
			return fmt.Errorf("state store: encoding step %d output: %w", step, err)
		}
		if _, err := tx.Exec(`INSERT INTO steps (step, completed, output) VALUES (?, 1, ?)`,
			step, string(output)); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`DELETE FROM partial_progress`); err != nil {
		return err
	}
	for step, payload := range st.PartialProgress {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("state store: encoding step %d partial progress: %w", step, err)
		}
		if _, err := tx.Exec(`INSERT INTO partial_progress (step, payload) VALUES (?, ?)`,
			step, string(data)); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`DELETE FROM error_log`); err != nil {
		return err
	}
	for _, e := range st.ErrorLog {
		if _, err := tx.Exec(`INSERT INTO error_log (step, message, ts) VALUES (?, ?, ?)`,
			e.Step, e.Message, e.Timestamp.Format(time.RFC3339Nano)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Reset prunes progress from fromStep onward and persists the result.
func (s *SQLiteStore) Reset(fromStep int) (*WorkflowState, error) {
	st, err := s.Load()
	if err != nil {
		return nil, err
	}
	pruned := st.pruneFrom(fromStep)
	if err := s.Save(pruned); err != nil {
		return nil, err
	}
	return pruned, nil
}

// RecordRunStart adds a run to the history table.
func (s *SQLiteStore) RecordRunStart(runID string) error {
	_, err := s.db.Exec(`
		INSERT INTO runs (run_id, started_at, status)
		VALUES (?, ?, 'running')
		ON CONFLICT(run_id) DO NOTHING
	`, runID, time.Now().Format(time.RFC3339Nano))
	return err
}

// RecordRunEnd marks a history run finished.
func (s *SQLiteStore) RecordRunEnd(runID, status, summary string) error {
	_, err := s.db.Exec(`
		UPDATE runs SET status = ?, summary = ?, completed_at = ?
		WHERE run_id = ?
	`, status, summary, time.Now().Format(time.RFC3339Nano), runID)
	return err
}

// ListRuns returns recent runs, newest first.
func (s *SQLiteStore) ListRuns(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT run_id, started_at, completed_at, status, COALESCE(summary, '')
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var startedAt string
		var completedAt sql.NullString
		if err := rows.Scan(&r.RunID, &startedAt, &completedAt, &r.Status, &r.Summary); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
			r.StartedAt = t
		}
		if t, ok := parseTime(completedAt); ok {
			r.CompletedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func parseTime(v sql.NullString) (time.Time, bool) {
	if !v.Valid || v.String == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)
