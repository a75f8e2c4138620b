// Package store provides the SQLite-backed content collections (feed,
// research articles, treatments, media, status checks).
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS feed_items (
	id           TEXT PRIMARY KEY,
	type         TEXT NOT NULL,
	title        TEXT NOT NULL,
	summary      TEXT NOT NULL DEFAULT '',
	url          TEXT NOT NULL,
	tags         TEXT NOT NULL DEFAULT '[]',
	published_at DATETIME NOT NULL,
	source       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS articles (
	id             TEXT PRIMARY KEY,
	title          TEXT NOT NULL,
	authors        TEXT NOT NULL DEFAULT '[]',
	published_date DATETIME NOT NULL,
	doi            TEXT NOT NULL DEFAULT '',
	link           TEXT NOT NULL DEFAULT '',
	abstract       TEXT NOT NULL DEFAULT '',
	keywords       TEXT NOT NULL DEFAULT '[]',
	tags           TEXT NOT NULL DEFAULT '[]',
	citation_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS treatments (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	category   TEXT NOT NULL DEFAULT '',
	protocol   TEXT NOT NULL DEFAULT '',
	evidence   TEXT NOT NULL DEFAULT '',
	refs       TEXT NOT NULL DEFAULT '[]',
	tags       TEXT NOT NULL DEFAULT '[]',
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS media_items (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL,
	kind          TEXT NOT NULL,
	url           TEXT NOT NULL,
	thumbnail_url TEXT NOT NULL DEFAULT '',
	tags          TEXT NOT NULL DEFAULT '[]',
	published_at  DATETIME NOT NULL,
	source        TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS status_checks (
	id          TEXT PRIMARY KEY,
	client_name TEXT NOT NULL,
	timestamp   DATETIME NOT NULL
);
`

// DB wraps a sql.DB with content-collection operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Ping verifies the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
