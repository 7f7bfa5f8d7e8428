// Package catalog persists the ordered track catalog in SQLite.
package catalog

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/llehouerou/cassette/internal/db"
)

// Track is one catalog record. Records are immutable once created.
type Track struct {
	ID        int64
	Title     string
	Source    string // URI or path resolved by the audio engine
	Artwork   string // optional artwork locator
	CreatedAt time.Time
}

// Store is the catalog backed by a SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens the catalog at path, creating the schema if needed.
func Open(ctx context.Context, path string) (*Store, error) {
	conn, err := db.Open(ctx, path)
	if err != nil {
		return nil, &StoreError{Op: OpOpen, Err: err}
	}
	if err := initSchema(ctx, conn); err != nil {
		conn.Close()
		return nil, &StoreError{Op: OpOpen, Err: err}
	}
	return &Store{db: conn, now: time.Now}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ResetAndSeed replaces the whole catalog with seeds, in order.
// IDs restart at 1 and follow the seed order.
func (s *Store) ResetAndSeed(ctx context.Context, seeds []Seed) error {
	normalized, err := NormalizeSeeds(seeds)
	if err != nil {
		return &StoreError{Op: OpSeed, Err: err}
	}

	createdAt := s.now().Unix()
	err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tracks`); err != nil {
			return errors.Wrap(err, "clear tracks")
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM sqlite_sequence WHERE name = 'tracks'`); err != nil {
			return errors.Wrap(err, "reset track ids")
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO tracks (title, source, artwork, created_at)
			VALUES (?, ?, ?, ?)
		`)
		if err != nil {
			return errors.Wrap(err, "prepare insert")
		}
		defer stmt.Close()

		for i, seed := range normalized {
			if _, err := stmt.ExecContext(ctx, seed.Title, seed.Source, db.NullString(seed.Artwork), createdAt); err != nil {
				return errors.Wrapf(err, "insert track %d", i)
			}
		}
		return nil
	})
	if err != nil {
		return &StoreError{Op: OpSeed, Err: err}
	}

	zlog.Info().Int("tracks", len(normalized)).Msg("catalog seeded")
	return nil
}

// ListAll returns every track in creation order.
func (s *Store) ListAll(ctx context.Context) ([]Track, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, source, artwork, created_at
		FROM tracks
		ORDER BY id
	`)
	if err != nil {
		return nil, &StoreError{Op: OpList, Err: err}
	}
	defer rows.Close()

	var tracks []Track
	for rows.Next() {
		var (
			t         Track
			artwork   sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&t.ID, &t.Title, &t.Source, &artwork, &createdAt); err != nil {
			return nil, &StoreError{Op: OpList, Err: err}
		}
		t.Artwork = db.NullStringValue(artwork)
		t.CreatedAt = time.Unix(createdAt, 0)
		tracks = append(tracks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: OpList, Err: err}
	}
	return tracks, nil
}

// Count returns the number of tracks.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tracks`).Scan(&n); err != nil {
		return 0, &StoreError{Op: OpCount, Err: err}
	}
	return n, nil
}

func initSchema(ctx context.Context, conn *sql.DB) error {
	_, err := conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tracks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			source TEXT NOT NULL,
			artwork TEXT,
			created_at INTEGER NOT NULL
		);
	`)
	return errors.Wrap(err, "create schema")
}
