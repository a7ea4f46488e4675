// Package history persists a write-once audit log of terminal upload
// outcomes. This is explicitly NOT session-URI resumption (that remains a
// non-goal of the upload core, internal/upload) — it is a historical ledger
// for the "resumeup history" command, built on database/sql +
// modernc.org/sqlite + pressly/goose/v3 migrations, scaled down to the one
// table this domain needs.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure-Go driver, registers as "sqlite"

	"github.com/haukigw/resumeup/internal/upload"
)

// Record is one terminal upload outcome.
type Record struct {
	ID         string
	Source     string // description of the local source stream (e.g. file path)
	TargetPath string
	TotalBytes int64
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string // upload.Status.String()
	ErrorText  string // empty unless Status == "failed"
}

// Store is a SQLite-backed ledger of Records.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	insertStmt *sql.Stmt
	listStmt   *sql.Stmt
}

// Open opens (creating if necessary) the SQLite database at dbPath and
// applies pending migrations. Use ":memory:" for tests.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Debug("opening history database", slog.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("history: opening database: %w", err)
	}

	if err := runMigrations(context.Background(), db, logger); err != nil {
		db.Close()
		return nil, err
	}

	insertStmt, err := db.Prepare(
		`INSERT INTO records (id, source, target_path, total_bytes, started_at, finished_at, status, error_text)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("history: preparing insert statement: %w", err)
	}

	listStmt, err := db.Prepare(
		`SELECT id, source, target_path, total_bytes, started_at, finished_at, status, error_text
		 FROM records ORDER BY finished_at DESC LIMIT ?`)
	if err != nil {
		insertStmt.Close()
		db.Close()
		return nil, fmt.Errorf("history: preparing list statement: %w", err)
	}

	return &Store{db: db, logger: logger, insertStmt: insertStmt, listStmt: listStmt}, nil
}

// Close releases the prepared statements and the underlying connection.
func (s *Store) Close() error {
	s.insertStmt.Close()
	s.listStmt.Close()

	return s.db.Close()
}

// RecordOutcome persists one terminal Progress snapshot as a Record. id is
// generated fresh (uuid.NewString) per the data model — there is no
// correlation with a prior attempt, since session URIs are not persisted.
func (s *Store) RecordOutcome(ctx context.Context, source, targetPath string, startedAt time.Time, p upload.Progress) (string, error) {
	id := uuid.NewString()

	errText := ""
	if p.Err != nil {
		errText = p.Err.Error()
	}

	_, err := s.insertStmt.ExecContext(ctx,
		id, source, targetPath, p.BytesSent, startedAt, time.Now().UTC(), p.Status.String(), errText)
	if err != nil {
		return "", fmt.Errorf("history: recording outcome: %w", err)
	}

	s.logger.Debug("recorded upload outcome",
		slog.String("id", id), slog.String("status", p.Status.String()), slog.Int64("bytes", p.BytesSent))

	return id, nil
}

// List returns up to limit most-recent Records, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.listStmt.QueryContext(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("history: listing records: %w", err)
	}
	defer rows.Close()

	var records []Record

	for rows.Next() {
		var r Record

		if err := rows.Scan(&r.ID, &r.Source, &r.TargetPath, &r.TotalBytes, &r.StartedAt, &r.FinishedAt, &r.Status, &r.ErrorText); err != nil {
			return nil, fmt.Errorf("history: scanning record: %w", err)
		}

		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterating records: %w", err)
	}

	return records, nil
}
