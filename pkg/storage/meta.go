// Package storage persists sketch snapshots in SQLite. Sketches are pure
// in-memory values; this layer only stores the opaque bytes produced by
// their Serialize methods, keyed by sketch name.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

const snapshotCacheSize = 64

// Snapshot is one stored sketch state.
type Snapshot struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Data       []byte `json:"-"`
	Parameters string `json:"parameters,omitempty"`
}

// EnsureMetaTables creates the snapshot table if it does not exist.
func EnsureMetaTables(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sketch_snapshots (
            name TEXT PRIMARY KEY,
            sketch_type TEXT NOT NULL,
            sketch_data BLOB NOT NULL,
            parameters TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        );`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// Store reads and writes snapshots, keeping recently loaded ones in an
// LRU cache.
type Store struct {
	db    *sql.DB
	cache *lru.Cache[string, Snapshot]
}

// NewStore creates a Store over db.
func NewStore(db *sql.DB) (*Store, error) {
	cache, err := lru.New[string, Snapshot](snapshotCacheSize)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, cache: cache}, nil
}

// Save stores or replaces the snapshot under snap.Name.
func (s *Store) Save(ctx context.Context, snap Snapshot) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO sketch_snapshots(name, sketch_type, sketch_data, parameters, created_at)
        VALUES(?, ?, ?, ?, CURRENT_TIMESTAMP)
        ON CONFLICT(name)
        DO UPDATE SET sketch_type=excluded.sketch_type, sketch_data=excluded.sketch_data,
            parameters=excluded.parameters, created_at=CURRENT_TIMESTAMP`,
		snap.Name, snap.Type, snap.Data, snap.Parameters)
	if err != nil {
		return fmt.Errorf("save snapshot %q: %w", snap.Name, err)
	}
	s.cache.Add(snap.Name, snap)
	return nil
}

// Load retrieves the snapshot stored under name.
func (s *Store) Load(ctx context.Context, name string) (Snapshot, error) {
	if snap, ok := s.cache.Get(name); ok {
		return snap, nil
	}
	var snap Snapshot
	err := s.db.QueryRowContext(ctx,
		`SELECT name, sketch_type, sketch_data, parameters FROM sketch_snapshots WHERE name = ?`,
		name).Scan(&snap.Name, &snap.Type, &snap.Data, &snap.Parameters)
	if err == sql.ErrNoRows {
		return Snapshot{}, fmt.Errorf("no snapshot named %q", name)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("load snapshot %q: %w", name, err)
	}
	s.cache.Add(name, snap)
	return snap, nil
}

// List returns metadata for all stored snapshots, newest first. Data
// blobs are not loaded.
func (s *Store) List(ctx context.Context) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, sketch_type, parameters FROM sketch_snapshots ORDER BY created_at DESC, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.Name, &snap.Type, &snap.Parameters); err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// Delete removes the snapshot under name.
func (s *Store) Delete(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sketch_snapshots WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete snapshot %q: %w", name, err)
	}
	s.cache.Remove(name)
	return nil
}
