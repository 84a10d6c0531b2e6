// Package sqlite is a cache.Store kept in a local SQLite file, so entity
// lookups survive between CLI runs.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/birdwatch/internal/cache"
	_ "modernc.org/sqlite"
)

// DB is a cache.Store backed by SQLite.
type DB struct {
	conn *sql.DB
}

var _ cache.Store = (*DB)(nil)

// New opens (creating if needed) the database at path. ":memory:" works for tests.
func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	// a single connection keeps ":memory:" databases shared
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}
	return db, nil
}

func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS entities (
			kind      TEXT    NOT NULL,
			id        TEXT    NOT NULL,
			data      BLOB    NOT NULL,
			stored_at INTEGER NOT NULL,
			PRIMARY KEY (kind, id)
		)
	`)
	return err
}

// Close releases the database.
func (db *DB) Close() error { return db.conn.Close() }

func (db *DB) Get(ctx context.Context, k cache.Key) (cache.Entry, error) {
	var (
		e  cache.Entry
		ns int64
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT data, stored_at FROM entities WHERE kind = ? AND id = ?`, k.Kind, k.ID,
	).Scan(&e.Data, &ns)
	if errors.Is(err, sql.ErrNoRows) {
		return cache.Entry{}, cache.ErrMiss
	}
	if err != nil {
		return cache.Entry{}, fmt.Errorf("sqlite: get %s: %w", k, err)
	}
	e.StoredAt = time.Unix(0, ns)
	return e, nil
}

func (db *DB) Put(ctx context.Context, k cache.Key, e cache.Entry) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO entities (kind, id, data, stored_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (kind, id) DO UPDATE SET data = excluded.data, stored_at = excluded.stored_at
	`, k.Kind, k.ID, e.Data, e.StoredAt.UnixNano())
	if err != nil {
		return fmt.Errorf("sqlite: put %s: %w", k, err)
	}
	return nil
}

func (db *DB) Delete(ctx context.Context, k cache.Key) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM entities WHERE kind = ? AND id = ?`, k.Kind, k.ID); err != nil {
		return fmt.Errorf("sqlite: delete %s: %w", k, err)
	}
	return nil
}
