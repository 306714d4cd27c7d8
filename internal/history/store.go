// Package history keeps the most recent odometer readings of this process.
//
// Readings live in an in-memory SQLite database and vanish when the process
// exits.
package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ironsheep/odometer-mcp/internal/pipeline"

	_ "modernc.org/sqlite"
)

// DefaultRetain bounds how many readings are kept.
const DefaultRetain = 100

// Entry is one recorded reading.
type Entry struct {
	ID              string    `json:"id"`
	Source          string    `json:"source"`
	Value           string    `json:"value"`
	Type            *string   `json:"type"`
	Confidence      float64   `json:"confidence"`
	DetectionMethod string    `json:"detectionMethod"`
	CreatedAt       time.Time `json:"created_at"`
}

// Store records readings.
type Store struct {
	db     *sql.DB
	limit  int
	retain int
}

// New opens an empty history. limit is the default size of Recent.
func New(limit int) (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if limit <= 0 {
		limit = 5
	}
	s := &Store{
		db:     db,
		limit:  limit,
		retain: DefaultRetain,
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// Close discards the history.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) runMigrations() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS readings (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			source TEXT NOT NULL DEFAULT '',
			value TEXT NOT NULL,
			type TEXT,
			confidence REAL NOT NULL,
			detection_method TEXT NOT NULL CHECK(detection_method IN ('Original', 'Cropped')),
			created_at DATETIME NOT NULL
		)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}
	return nil
}

// Add records a reading taken from source and drops the oldest readings
// beyond the retention bound.
func (s *Store) Add(source string, r pipeline.Result) (*Entry, error) {
	e := &Entry{
		ID:              uuid.NewString(),
		Source:          source,
		Value:           r.Value,
		Type:            r.Type,
		Confidence:      r.Confidence,
		DetectionMethod: string(r.DetectionMethod),
		CreatedAt:       time.Now().UTC(),
	}

	var typ sql.NullString
	if e.Type != nil {
		typ = sql.NullString{String: *e.Type, Valid: true}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO readings (id, source, value, type, confidence, detection_method, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Source, e.Value, typ, e.Confidence, e.DetectionMethod, e.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record reading: %w", err)
	}

	_, err = tx.Exec(
		`DELETE FROM readings WHERE seq NOT IN (SELECT seq FROM readings ORDER BY seq DESC LIMIT ?)`,
		s.retain,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to prune history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return e, nil
}

// Recent returns up to n readings, newest first. n <= 0 uses the store's
// default limit.
func (s *Store) Recent(n int) ([]Entry, error) {
	if n <= 0 {
		n = s.limit
	}

	rows, err := s.db.Query(
		`SELECT id, source, value, type, confidence, detection_method, created_at
		 FROM readings
		 ORDER BY seq DESC
		 LIMIT ?`,
		n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]Entry, 0, n)
	for rows.Next() {
		var e Entry
		var typ sql.NullString
		if err := rows.Scan(&e.ID, &e.Source, &e.Value, &typ, &e.Confidence, &e.DetectionMethod, &e.CreatedAt); err != nil {
			return nil, err
		}
		if typ.Valid {
			t := typ.String
			e.Type = &t
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Count returns how many readings are held.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM readings`).Scan(&n)
	return n, err
}

// Clear forgets every reading.
func (s *Store) Clear() error {
	_, err := s.db.Exec(`DELETE FROM readings`)
	return err
}
