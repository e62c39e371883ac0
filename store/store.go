// Package store keeps the conversion history in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no conversion has the requested ID.
var ErrNotFound = errors.New("store: conversion not found")

type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Conversion is one row of the history.
type Conversion struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Status      Status     `json:"status"`
	InputDigest string     `json:"input_digest"`
	InputBytes  int64      `json:"input_bytes"`
	OutputBytes int64      `json:"output_bytes"`
	Pages       int        `json:"pages"`
	Languages   string     `json:"languages,omitempty"`
	OutputPath  string     `json:"-"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// NewConversion describes a conversion about to start.
type NewConversion struct {
	Kind      string
	Input     []byte
	Languages []string
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

type Option func(*Store)

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string, opts ...Option) (*Store, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS conversions (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		input_digest TEXT NOT NULL,
		input_bytes INTEGER NOT NULL DEFAULT 0,
		output_bytes INTEGER NOT NULL DEFAULT 0,
		pages INTEGER NOT NULL DEFAULT 0,
		languages TEXT NOT NULL DEFAULT '',
		output_path TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		finished_at INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_conversions_created ON conversions(created_at);
	`)
	return err
}

// Digest is the hex BLAKE2b-256 of data.
func Digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Create inserts a pending conversion with a fresh random ID.
func (s *Store) Create(ctx context.Context, in NewConversion) (Conversion, error) {
	c := Conversion{
		ID:          uuid.NewString(),
		Kind:        in.Kind,
		Status:      StatusPending,
		InputDigest: Digest(in.Input),
		InputBytes:  int64(len(in.Input)),
		Languages:   strings.Join(in.Languages, "+"),
		CreatedAt:   s.now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversions (id, kind, status, input_digest, input_bytes, languages, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.Kind, string(c.Status), c.InputDigest, c.InputBytes, c.Languages, c.CreatedAt.UnixMilli())
	if err != nil {
		return Conversion{}, fmt.Errorf("insert conversion: %w", err)
	}
	c.CreatedAt = time.UnixMilli(c.CreatedAt.UnixMilli()).UTC()
	return c, nil
}

// Complete marks a conversion done and records its output.
func (s *Store) Complete(ctx context.Context, id, outputPath string, outputBytes int64, pages int) error {
	return s.finish(ctx, id, `
		UPDATE conversions
		SET status = ?, output_path = ?, output_bytes = ?, pages = ?, finished_at = ?
		WHERE id = ?
	`, string(StatusDone), outputPath, outputBytes, pages, s.now().UTC().UnixMilli(), id)
}

// Fail marks a conversion failed with the message of cause.
func (s *Store) Fail(ctx context.Context, id string, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return s.finish(ctx, id, `
		UPDATE conversions SET status = ?, error = ?, finished_at = ? WHERE id = ?
	`, string(StatusFailed), msg, s.now().UTC().UnixMilli(), id)
}

func (s *Store) finish(ctx context.Context, id, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update conversion %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update conversion %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const selectColumns = `SELECT id, kind, status, input_digest, input_bytes, output_bytes, pages,
	languages, output_path, error, created_at, finished_at FROM conversions`

func (s *Store) Get(ctx context.Context, id string) (Conversion, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	c, err := scanConversion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Conversion{}, ErrNotFound
	}
	if err != nil {
		return Conversion{}, fmt.Errorf("get conversion %s: %w", id, err)
	}
	return c, nil
}

// List returns the newest conversions first. A non-positive limit means 50.
func (s *Store) List(ctx context.Context, limit int) ([]Conversion, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.query(ctx, selectColumns+` ORDER BY created_at DESC, id LIMIT ?`, limit)
}

// ListExpired returns conversions created strictly before the cutoff, oldest
// first.
func (s *Store) ListExpired(ctx context.Context, before time.Time) ([]Conversion, error) {
	return s.query(ctx, selectColumns+` WHERE created_at < ? ORDER BY created_at`, before.UTC().UnixMilli())
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete conversion %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Conversion, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query conversions: %w", err)
	}
	defer rows.Close()

	var out []Conversion
	for rows.Next() {
		c, err := scanConversion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversion: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversions: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConversion(sc scanner) (Conversion, error) {
	var (
		c        Conversion
		status   string
		created  int64
		finished sql.NullInt64
	)
	err := sc.Scan(&c.ID, &c.Kind, &status, &c.InputDigest, &c.InputBytes, &c.OutputBytes, &c.Pages,
		&c.Languages, &c.OutputPath, &c.Error, &created, &finished)
	if err != nil {
		return Conversion{}, err
	}
	c.Status = Status(status)
	c.CreatedAt = time.UnixMilli(created).UTC()
	if finished.Valid {
		t := time.UnixMilli(finished.Int64).UTC()
		c.FinishedAt = &t
	}
	return c, nil
}
