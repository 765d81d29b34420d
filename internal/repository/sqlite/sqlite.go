// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database — it lives inside your Go binary as a single
// file. No separate database server to install, configure, or manage. The
// relay stores one row per user plus a small posted-commit ledger; a single
// file is plenty.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which means you need a C compiler installed and
// cross-compilation becomes painful. modernc.org/sqlite is a pure Go
// translation of the SQLite C code — no C compiler needed, works everywhere
// Go works.
package sqlite

import (
	"database/sql"
	"fmt"

	// Side-effect import: the driver registers itself with database/sql
	// under the name "sqlite".
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and provides the repository methods.
// One struct implements both repository.UserRepository and
// repository.PostLedger — the two tables live in the same file and the
// digest path wants them in one transaction anyway.
type DB struct {
	conn *sql.DB
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/commitcast.db" → file-based database (persistent)
//   - ":memory:"           → in-memory database (tests, lost on close)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Ping forces an immediate connection so a bad path or permissions issue
	// surfaces here rather than on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL mode allows concurrent reads while a write is happening — the
	// default locks the entire database during writes, which stalls a web
	// server where multiple requests hit the DB.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite (backwards compatibility).
	// We rely on them for posted_commits → users referential integrity.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool. Always defer it next to New.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate runs all database migrations. CREATE TABLE IF NOT EXISTS keeps
// them idempotent — safe to run on every start.
func (db *DB) migrate() error {
	// Users are keyed directly by their GitHub numeric id. The two LinkedIn
	// columns default to '' and are only ever written as a pair.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			github_id      INTEGER PRIMARY KEY,
			github_login   TEXT NOT NULL,
			github_token   TEXT NOT NULL,
			linkedin_id    TEXT NOT NULL DEFAULT '',
			linkedin_token TEXT NOT NULL DEFAULT '',
			created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// The posted ledger: one row per published commit. The composite primary
	// key doubles as the duplicate-post guard — INSERT OR IGNORE makes
	// marking idempotent.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS posted_commits (
			github_id INTEGER NOT NULL REFERENCES users(github_id) ON DELETE CASCADE,
			commit_id TEXT NOT NULL,
			posted_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (github_id, commit_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating posted_commits table: %w", err)
	}

	return nil
}
