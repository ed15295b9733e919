// Package history keeps a ledger of completed generations in a local
// SQLite database. The driver is cgo-free, so the ledger works in every
// build without toolchain requirements.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/aparsoft/voicekit/internal/tts"
)

const schema = `
CREATE TABLE IF NOT EXISTS generations (
	id          TEXT PRIMARY KEY,
	engine      TEXT NOT NULL,
	voice       TEXT NOT NULL DEFAULT '',
	text_hash   TEXT NOT NULL,
	duration    REAL NOT NULL,
	output_path TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_generations_created_at ON generations(created_at);
CREATE INDEX IF NOT EXISTS idx_generations_engine ON generations(engine);
`

// Store is a SQLite-backed generation ledger implementing tts.Recorder.
type Store struct {
	db *sql.DB
}

// Open creates or opens the ledger at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply history schema: %w", err)
	}

	log.Debug().Str("path", path).Msg("history store opened")
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Record inserts one completed generation.
func (s *Store) Record(ctx context.Context, rec tts.Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO generations (id, engine, voice, text_hash, duration, output_path, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Engine, rec.Voice, rec.TextHash, rec.Duration, rec.OutputPath, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record generation: %w", err)
	}
	return nil
}

// Recent returns up to limit generations, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]tts.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, engine, voice, text_hash, duration, output_path, created_at
		 FROM generations ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ByEngine returns up to limit generations for one engine, newest first.
func (s *Store) ByEngine(ctx context.Context, engine string, limit int) ([]tts.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, engine, voice, text_hash, duration, output_path, created_at
		 FROM generations WHERE engine = ? ORDER BY created_at DESC LIMIT ?`, engine, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Stats summarizes the ledger.
type Stats struct {
	Total         int
	TotalDuration float64
	ByEngine      map[string]int
}

// Summary aggregates counts and total synthesized duration.
func (s *Store) Summary(ctx context.Context) (Stats, error) {
	stats := Stats{ByEngine: make(map[string]int)}

	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(duration), 0) FROM generations`)
	if err := row.Scan(&stats.Total, &stats.TotalDuration); err != nil {
		return Stats{}, fmt.Errorf("failed to summarize history: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT engine, COUNT(*) FROM generations GROUP BY engine`)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to summarize history: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var engine string
		var count int
		if err := rows.Scan(&engine, &count); err != nil {
			return Stats{}, err
		}
		stats.ByEngine[engine] = count
	}
	return stats, rows.Err()
}

// Prune deletes records older than the cutoff and returns the count.
func (s *Store) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM generations WHERE created_at < ?`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return res.RowsAffected()
}

func scanRecords(rows *sql.Rows) ([]tts.Record, error) {
	var records []tts.Record
	for rows.Next() {
		var rec tts.Record
		if err := rows.Scan(&rec.ID, &rec.Engine, &rec.Voice, &rec.TextHash,
			&rec.Duration, &rec.OutputPath, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
