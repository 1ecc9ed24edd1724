// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package history persists the outcome of processing sessions in SQLite.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ManuGH/posereview/internal/persistence/sqlite"
)

// FileName is the database file created inside the data directory.
const FileName = "history.sqlite"

// ErrNotFound is returned by Get for unknown session ids.
var ErrNotFound = errors.New("history: session not found")

// Session is one recorded processing request.
type Session struct {
	ID           string
	FileName     string
	FileSize     int64
	Status       string
	Progress     int
	SignedURL    string
	TotalPoses   int
	ErrorCode    string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

var migrations = []string{
	`CREATE TABLE sessions (
		id            TEXT PRIMARY KEY,
		file_name     TEXT NOT NULL,
		file_size     INTEGER NOT NULL,
		status        TEXT NOT NULL,
		progress      INTEGER NOT NULL DEFAULT 0,
		signed_url    TEXT NOT NULL DEFAULT '',
		total_poses   INTEGER NOT NULL DEFAULT 0,
		error_code    TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		created_at    INTEGER NOT NULL,
		updated_at    INTEGER NOT NULL
	)`,
	`CREATE INDEX idx_sessions_created_at ON sessions(created_at DESC)`,
}

// Store is a SQLite-backed session log.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens the history database in dir.
func Open(ctx context.Context, dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("history: create data dir: %w", err)
	}
	db, err := sqlite.Open(ctx, filepath.Join(dir, FileName), sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if err := sqlite.Migrate(ctx, db, migrations); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts or updates a session. CreatedAt is kept from the first write.
func (s *Store) Record(ctx context.Context, sess Session) error {
	if sess.ID == "" {
		return errors.New("history: session id is required")
	}
	now := s.now().UTC()
	created := sess.CreatedAt
	if created.IsZero() {
		created = now
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, file_name, file_size, status, progress, signed_url, total_poses, error_code, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			progress = excluded.progress,
			signed_url = excluded.signed_url,
			total_poses = excluded.total_poses,
			error_code = excluded.error_code,
			error_message = excluded.error_message,
			updated_at = excluded.updated_at`,
		sess.ID, sess.FileName, sess.FileSize, sess.Status, sess.Progress, sess.SignedURL,
		sess.TotalPoses, sess.ErrorCode, sess.ErrorMessage, created.UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("history: record %s: %w", sess.ID, err)
	}
	return nil
}

const selectColumns = `id, file_name, file_size, status, progress, signed_url, total_poses, error_code, error_message, created_at, updated_at`

// Get returns one session.
func (s *Store) Get(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	return sess, err
}

// List returns the most recent sessions first. limit <= 0 means 20.
func (s *Store) List(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM sessions ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// Prune deletes sessions created before cutoff and returns how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE created_at < ?`, cutoff.UTC().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("history: prune: %w", err)
	}
	return res.RowsAffected()
}

// Verify runs a quick integrity check.
func (s *Store) Verify(ctx context.Context) ([]string, error) {
	return sqlite.VerifyIntegrity(ctx, s.db, "quick")
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(r scanner) (Session, error) {
	var (
		sess             Session
		created, updated int64
	)
	err := r.Scan(&sess.ID, &sess.FileName, &sess.FileSize, &sess.Status, &sess.Progress, &sess.SignedURL,
		&sess.TotalPoses, &sess.ErrorCode, &sess.ErrorMessage, &created, &updated)
	if err != nil {
		return Session{}, err
	}
	sess.CreatedAt = time.UnixMilli(created).UTC()
	sess.UpdatedAt = time.UnixMilli(updated).UTC()
	return sess, nil
}
