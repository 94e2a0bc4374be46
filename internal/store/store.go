// Package store provides the SQLite run journal.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fentz26/easyclaim/internal/models"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a run lookup matches nothing.
var ErrNotFound = errors.New("not found")

// ErrAmbiguous is returned when a run id prefix matches more than one run.
var ErrAmbiguous = errors.New("ambiguous run id prefix")

// Store is the journal of claiming runs. It records what happened and is
// never read back to resume a run.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the journal at dbPath and runs migrations.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "create db directory")
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, errors.Wrap(err, "open db")
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate")
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		username TEXT,
		task_type TEXT NOT NULL,
		claim_limit INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'running',
		claimed INTEGER NOT NULL DEFAULT 0,
		attempts INTEGER NOT NULL DEFAULT 0,
		error_kind TEXT,
		error TEXT,
		started_at DATETIME NOT NULL,
		ended_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS claim_events (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		iteration INTEGER NOT NULL,
		listed INTEGER NOT NULL,
		requested INTEGER NOT NULL,
		claimed INTEGER NOT NULL,
		cumulative INTEGER NOT NULL,
		task_ids TEXT,
		rejection TEXT,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_claim_events_run_id ON claim_events(run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// --- Run Operations ---

// CreateRun inserts a run in the running state. The caller supplies the id.
func (s *Store) CreateRun(run *models.RunRecord) error {
	if run.ID == "" {
		return errors.New("run id is required")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = models.RunStatusRunning
	}

	_, err := s.db.Exec(
		`INSERT INTO runs (id, username, task_type, claim_limit, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Username, string(run.TaskType), run.ClaimLimit, string(run.Status), run.StartedAt.UTC(),
	)
	if err != nil {
		return errors.Wrap(err, "insert run")
	}
	return nil
}

// SetRunUser records the username a run authenticated as.
func (s *Store) SetRunUser(id, username string) error {
	return s.updateRun(`UPDATE runs SET username = ? WHERE id = ?`, username, id)
}

// FinishRun stores the terminal state of run.
func (s *Store) FinishRun(run *models.RunRecord) error {
	endedAt := time.Now().UTC()
	if run.EndedAt != nil {
		endedAt = run.EndedAt.UTC()
	}
	return s.updateRun(
		`UPDATE runs SET status = ?, claimed = ?, attempts = ?, error_kind = ?, error = ?, ended_at = ? WHERE id = ?`,
		string(run.Status), run.Claimed, run.Attempts, run.ErrorKind, run.Error, endedAt, run.ID,
	)
}

func (s *Store) updateRun(query string, args ...interface{}) error {
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return errors.Wrap(err, "update run")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "update run")
	}
	if n == 0 {
		return errors.Wrapf(ErrNotFound, "run %s", args[len(args)-1])
	}
	return nil
}

const runColumns = `id, username, task_type, claim_limit, status, claimed, attempts, error_kind, error, started_at, ended_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*models.RunRecord, error) {
	var run models.RunRecord
	var taskType, status string
	var username, errorKind, errMsg sql.NullString
	var endedAt sql.NullTime

	if err := row.Scan(&run.ID, &username, &taskType, &run.ClaimLimit, &status, &run.Claimed,
		&run.Attempts, &errorKind, &errMsg, &run.StartedAt, &endedAt); err != nil {
		return nil, err
	}
	run.TaskType = models.TaskType(taskType)
	run.Status = models.RunStatus(status)
	run.Username = username.String
	run.ErrorKind = errorKind.String
	run.Error = errMsg.String
	if endedAt.Valid {
		t := endedAt.Time
		run.EndedAt = &t
	}
	return &run, nil
}

// GetRun returns the run whose id is id or starts with it.
func (s *Store) GetRun(id string) (*models.RunRecord, error) {
	rows, err := s.db.Query(
		`SELECT `+runColumns+` FROM runs WHERE substr(id, 1, length(?)) = ? ORDER BY id = ? DESC LIMIT 2`,
		id, id, id,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query run")
	}
	defer rows.Close()

	var found []*models.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan run")
		}
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "query run")
	}

	switch {
	case len(found) == 0:
		return nil, errors.Wrapf(ErrNotFound, "run %s", id)
	case found[0].ID == id || len(found) == 1:
		return found[0], nil
	default:
		return nil, errors.Wrapf(ErrAmbiguous, "%q", id)
	}
}

// ListRuns returns the most recent runs, newest first. limit <= 0 means all.
func (s *Store) ListRuns(limit int) ([]models.RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query runs")
	}
	defer rows.Close()

	var runs []models.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan run")
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// --- Claim Event Operations ---

// RecordClaimEvent appends an iteration to a run's journal.
func (s *Store) RecordClaimEvent(ev *models.ClaimEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	ids := ev.TaskIDs
	if ids == nil {
		ids = []int64{}
	}
	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return errors.Wrap(err, "encode task ids")
	}

	_, err = s.db.Exec(
		`INSERT INTO claim_events (id, run_id, iteration, listed, requested, claimed, cumulative, task_ids, rejection, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.RunID, ev.Iteration, ev.Listed, ev.Requested, ev.Claimed, ev.Cumulative,
		string(idsJSON), ev.Rejection, ev.CreatedAt.UTC(),
	)
	if err != nil {
		return errors.Wrap(err, "insert claim event")
	}
	return nil
}

// ListClaimEvents returns a run's iterations in order.
func (s *Store) ListClaimEvents(runID string) ([]models.ClaimEvent, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, iteration, listed, requested, claimed, cumulative, task_ids, rejection, created_at
		 FROM claim_events WHERE run_id = ? ORDER BY iteration ASC`,
		runID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query claim events")
	}
	defer rows.Close()

	var events []models.ClaimEvent
	for rows.Next() {
		var ev models.ClaimEvent
		var idsJSON, rejection sql.NullString
		if err := rows.Scan(&ev.ID, &ev.RunID, &ev.Iteration, &ev.Listed, &ev.Requested, &ev.Claimed,
			&ev.Cumulative, &idsJSON, &rejection, &ev.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan claim event")
		}
		if idsJSON.Valid && idsJSON.String != "" {
			if err := json.Unmarshal([]byte(idsJSON.String), &ev.TaskIDs); err != nil {
				return nil, errors.Wrapf(err, "decode task ids of event %s", ev.ID)
			}
		}
		ev.Rejection = rejection.String
		events = append(events, ev)
	}
	return events, rows.Err()
}
