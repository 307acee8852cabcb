// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package stream manages standing research streams: named queries bound
// to a library collection, re-run on a cadence to pull newly published
// work into the library. Stream state persists in a SQLite registry.
// Implements: prd015-streams (R1-R5).
package stream

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.yaml.in/yaml/v3"
)

const (
	dbFile     = "streams.db"
	exportFile = "streams.yaml"
)

// Stream is one standing query and its run history.
type Stream struct {
	// ID is the registry identifier: a name slug plus a short random
	// suffix, stable for the stream's lifetime.
	ID string `json:"id" yaml:"id"`

	// Name is the human-facing stream name, also the bound collection's name.
	Name string `json:"name" yaml:"name"`

	// Query is the search text sent to the external sources on each run.
	Query string `json:"query" yaml:"query"`

	// CollectionKey is the library collection updates feed into.
	CollectionKey string `json:"collection_key" yaml:"collection_key"`

	// MaxResults caps per-source results for each run.
	MaxResults int `json:"max_results" yaml:"max_results"`

	// Interval is the intended update cadence.
	Interval time.Duration `json:"interval" yaml:"interval"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	// LastRunAt is zero for streams that have never been updated.
	LastRunAt time.Time `json:"last_run_at,omitempty" yaml:"last_run_at,omitempty"`

	// LastCreated, LastPresent, and LastLinked summarize the most recent run.
	LastCreated int `json:"last_created" yaml:"last_created"`
	LastPresent int `json:"last_present" yaml:"last_present"`
	LastLinked  int `json:"last_linked" yaml:"last_linked"`
}

// Due reports whether the stream's cadence has elapsed since its last run.
func (s Stream) Due(now time.Time) bool {
	if s.LastRunAt.IsZero() {
		return true
	}
	return now.Sub(s.LastRunAt) >= s.Interval
}

// Store manages the stream registry SQLite database.
type Store struct {
	db      *sql.DB
	dataDir string
}

// NewStore opens or creates the registry at dataDir/streams.db, creating
// the schema if it does not exist.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		dataDir = "streams"
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating stream data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening stream registry: %w", err)
	}

	s := &Store{db: db, dataDir: dataDir}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	stmt := `CREATE TABLE IF NOT EXISTS streams (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		query TEXT NOT NULL,
		collection_key TEXT,
		max_results INTEGER,
		interval_seconds INTEGER,
		created_at TEXT NOT NULL,
		last_run_at TEXT,
		last_created INTEGER DEFAULT 0,
		last_present INTEGER DEFAULT 0,
		last_linked INTEGER DEFAULT 0
	)`
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("executing schema statement: %w", err)
	}
	return nil
}

// Put inserts or replaces a stream row.
func (s *Store) Put(ctx context.Context, st Stream) error {
	lastRun := ""
	if !st.LastRunAt.IsZero() {
		lastRun = st.LastRunAt.UTC().Format(time.RFC3339Nano)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO streams
			(id, name, query, collection_key, max_results, interval_seconds,
			 created_at, last_run_at, last_created, last_present, last_linked)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.Name, st.Query, st.CollectionKey, st.MaxResults,
		int(st.Interval.Seconds()), st.CreatedAt.UTC().Format(time.RFC3339Nano),
		lastRun, st.LastCreated, st.LastPresent, st.LastLinked)
	if err != nil {
		return fmt.Errorf("storing stream %s: %w", st.ID, err)
	}
	return nil
}

// Get returns a stream by ID.
func (s *Store) Get(ctx context.Context, id string) (*Stream, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, query, collection_key, max_results, interval_seconds,
			created_at, last_run_at, last_created, last_present, last_linked
		 FROM streams WHERE id = ?`, id)
	st, err := scanStream(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("stream %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading stream %s: %w", id, err)
	}
	return st, nil
}

// List returns all streams ordered by creation time.
func (s *Store) List(ctx context.Context) ([]Stream, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, query, collection_key, max_results, interval_seconds,
			created_at, last_run_at, last_created, last_present, last_linked
		 FROM streams ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("listing streams: %w", err)
	}
	defer rows.Close()

	var streams []Stream
	for rows.Next() {
		st, err := scanStream(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning stream row: %w", err)
		}
		streams = append(streams, *st)
	}
	return streams, rows.Err()
}

// Delete removes a stream from the registry. Missing IDs are not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM streams WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting stream %s: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStream(row rowScanner) (*Stream, error) {
	var st Stream
	var createdAt, lastRun string
	var intervalSeconds int
	err := row.Scan(&st.ID, &st.Name, &st.Query, &st.CollectionKey, &st.MaxResults,
		&intervalSeconds, &createdAt, &lastRun, &st.LastCreated, &st.LastPresent, &st.LastLinked)
	if err != nil {
		return nil, err
	}
	st.Interval = time.Duration(intervalSeconds) * time.Second
	if t, parseErr := time.Parse(time.RFC3339Nano, createdAt); parseErr == nil {
		st.CreatedAt = t
	}
	if lastRun != "" {
		if t, parseErr := time.Parse(time.RFC3339Nano, lastRun); parseErr == nil {
			st.LastRunAt = t
		}
	}
	return &st, nil
}

// ExportYAML writes the registry to dataDir/streams.yaml for inspection
// and versioning outside the database.
func (s *Store) ExportYAML(ctx context.Context) error {
	streams, err := s.List(ctx)
	if err != nil {
		return fmt.Errorf("querying for export: %w", err)
	}
	data, err := yaml.Marshal(streams)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return os.WriteFile(filepath.Join(s.dataDir, exportFile), data, 0o644)
}
