// Package sqlite implements the repository interfaces on top of SQLite.
//
// The driver is modernc.org/sqlite (pure Go, no CGo) and queries go through
// sqlx so rows scan straight into the `db`-tagged model structs.
//
// CONNECTION PRAGMAS:
// SQLite pragmas are per connection, and database/sql keeps a pool. Setting
// foreign_keys with a one-off Exec would only reach whichever connection ran
// it, so the pragmas are put into the DSN and the driver applies them to
// every connection it opens. Cascading deletes depend on this.
package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/sakif/foodgram/internal/repository"

	// registers the "sqlite" driver with database/sql
	_ "modernc.org/sqlite"
)

func init() {
	// sqlx does not know the modernc driver name; without this NamedExec
	// and Rebind would not know which placeholder style to emit.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// DB wraps a sqlx connection pool and provides repository methods.
type DB struct {
	conn *sqlx.DB
}

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/foodgram.db"  → file-based database (persistent)
//   - ":memory:"          → in-memory database (tests)
func New(dbPath string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every connection to ":memory:" is a separate empty database, so the
	// pool must never grow past one connection.
	if isMemory(dbPath) {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if !isMemory(dbPath) {
		// WAL lets readers proceed while a write is in progress. The mode is
		// stored in the database file, so one Exec is enough.
		if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
		}
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable. Used by the health route.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.HasPrefix(path, "file::memory:")
}

func dsn(path string) string {
	if path == ":memory:" {
		path = "file::memory:"
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// migrate creates the schema. Every statement is idempotent, so it runs on
// each start-up.
//
// user_recipes holds both favorites and shopping cart entries; kind tells
// them apart and the unique key includes it, so a recipe can be in a user's
// favorites and cart at the same time but never twice in either.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			email         TEXT NOT NULL UNIQUE,
			username      TEXT NOT NULL UNIQUE,
			first_name    TEXT NOT NULL DEFAULT '',
			last_name     TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL DEFAULT '',
			avatar        TEXT,
			github_id     INTEGER UNIQUE,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS ingredients (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			name             TEXT NOT NULL UNIQUE,
			search_name      TEXT NOT NULL,
			measurement_unit TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_ingredients_search_name ON ingredients(search_name);
	`)
	if err != nil {
		return fmt.Errorf("creating ingredients table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS recipes (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			author_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name         TEXT NOT NULL,
			text         TEXT NOT NULL,
			image        TEXT NOT NULL DEFAULT '',
			cooking_time INTEGER NOT NULL CHECK (cooking_time >= 1),
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_recipes_author_id ON recipes(author_id);
	`)
	if err != nil {
		return fmt.Errorf("creating recipes table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS recipe_ingredients (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			recipe_id     INTEGER NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
			ingredient_id INTEGER NOT NULL REFERENCES ingredients(id) ON DELETE CASCADE,
			amount        INTEGER NOT NULL CHECK (amount >= 1),
			UNIQUE (recipe_id, ingredient_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating recipe_ingredients table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS user_recipes (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			recipe_id  INTEGER NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
			kind       TEXT NOT NULL CHECK (kind IN ('favorite', 'cart')),
			UNIQUE (user_id, recipe_id, kind)
		);
		CREATE INDEX IF NOT EXISTS idx_user_recipes_recipe ON user_recipes(recipe_id);
	`)
	if err != nil {
		return fmt.Errorf("creating user_recipes table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS subscriptions (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			subscriber_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			author_id     INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			UNIQUE (subscriber_id, author_id),
			CHECK (subscriber_id <> author_id)
		);
		CREATE INDEX IF NOT EXISTS idx_subscriptions_author ON subscriptions(author_id);
	`)
	if err != nil {
		return fmt.Errorf("creating subscriptions table: %w", err)
	}

	return nil
}

// clampList fills in paging defaults for direct callers. The upper bound on
// limit belongs to the handler's Paginator (MAX_PAGE_SIZE); capping it here
// as well would make the page the handler links to differ from the rows
// actually returned.
func clampList(opts repository.ListOptions) (int, int) {
	limit, offset := opts.Limit, opts.Offset
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
