package bootstate

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Journal is an append-only audit record of bootstrap runs. The marker
// files stay authoritative for the phase machine; the journal exists so
// `meshboot status` can show what happened and when.
type Journal struct {
	db *sql.DB
}

func OpenJournal(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		phase TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		outcome TEXT,
		detail TEXT
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create runs table: %w", err)
	}

	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Begin records the start of a phase run and returns the row id.
func (j *Journal) Begin(phase string) (int64, error) {
	res, err := j.db.Exec(
		`INSERT INTO runs (phase, started_at) VALUES (?, ?)`,
		phase, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("journal begin: %w", err)
	}
	return res.LastInsertId()
}

// Finish closes a run record with its outcome.
func (j *Journal) Finish(id int64, outcome, detail string) error {
	if _, err := j.db.Exec(
		`UPDATE runs SET finished_at = ?, outcome = ?, detail = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), outcome, detail, id,
	); err != nil {
		return fmt.Errorf("journal finish: %w", err)
	}
	return nil
}

// Run is one journal row.
type Run struct {
	ID         int64
	Phase      string
	StartedAt  string
	FinishedAt string
	Outcome    string
	Detail     string
}

// Recent returns the newest n runs, newest first.
func (j *Journal) Recent(n int) ([]Run, error) {
	rows, err := j.db.Query(
		`SELECT id, phase, started_at,
		        COALESCE(finished_at, ''), COALESCE(outcome, ''), COALESCE(detail, '')
		 FROM runs ORDER BY id DESC LIMIT ?`, n,
	)
	if err != nil {
		return nil, fmt.Errorf("journal query: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Phase, &r.StartedAt, &r.FinishedAt, &r.Outcome, &r.Detail); err != nil {
			return nil, fmt.Errorf("journal scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
