// Package store provides the SQLite-backed run history journal.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/renderpilot/renderpilot/pkg/pipeline"
)

// SQLiteRunStore implements pipeline.RunStore on a local SQLite file.
type SQLiteRunStore struct {
	db *sql.DB
}

// NewSQLiteRunStore opens (creating if needed) the history database.
func NewSQLiteRunStore(dbPath string) (*SQLiteRunStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	s := &SQLiteRunStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteRunStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		session_timestamp TEXT NOT NULL,
		story_id TEXT NOT NULL,
		episode_number INTEGER NOT NULL,
		total_beats INTEGER NOT NULL,
		final_phase TEXT NOT NULL,
		error TEXT,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_story ON runs(story_id);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	_, err := s.db.Exec(query)
	return err
}

// Close closes the underlying database.
func (s *SQLiteRunStore) Close() error {
	return s.db.Close()
}

// Append inserts a finished run record.
func (s *SQLiteRunStore) Append(ctx context.Context, record pipeline.RunRecord) error {
	query := `
	INSERT INTO runs (id, session_timestamp, story_id, episode_number, total_beats,
		final_phase, error, started_at, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		record.ID,
		record.SessionTimestamp,
		record.StoryID,
		record.EpisodeNumber,
		record.TotalBeats,
		string(record.FinalPhase),
		record.Error,
		record.StartedAt.Unix(),
		record.FinishedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert run record: %w", err)
	}
	return nil
}

// Get returns one run record by ID.
func (s *SQLiteRunStore) Get(ctx context.Context, id string) (pipeline.RunRecord, error) {
	query := `
	SELECT id, session_timestamp, story_id, episode_number, total_beats,
		final_phase, error, started_at, finished_at
	FROM runs WHERE id = ?
	`
	record, err := scanRecord(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return pipeline.RunRecord{}, pipeline.ErrRecordNotFound
	}
	if err != nil {
		return pipeline.RunRecord{}, fmt.Errorf("query run record: %w", err)
	}
	return record, nil
}

// List returns records newest first, at most limit (0 means all).
func (s *SQLiteRunStore) List(ctx context.Context, limit int) ([]pipeline.RunRecord, error) {
	query := `
	SELECT id, session_timestamp, story_id, episode_number, total_beats,
		final_phase, error, started_at, finished_at
	FROM runs ORDER BY started_at DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query run records: %w", err)
	}
	defer rows.Close()

	var records []pipeline.RunRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run records: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (pipeline.RunRecord, error) {
	var record pipeline.RunRecord
	var phase, errText string
	var startedAt, finishedAt int64

	err := row.Scan(
		&record.ID,
		&record.SessionTimestamp,
		&record.StoryID,
		&record.EpisodeNumber,
		&record.TotalBeats,
		&phase,
		&errText,
		&startedAt,
		&finishedAt,
	)
	if err != nil {
		return pipeline.RunRecord{}, err
	}

	record.FinalPhase = pipeline.Phase(phase)
	record.Error = errText
	record.StartedAt = time.Unix(startedAt, 0)
	record.FinishedAt = time.Unix(finishedAt, 0)
	return record, nil
}

var _ pipeline.RunStore = (*SQLiteRunStore)(nil)
