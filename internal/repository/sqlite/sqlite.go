// Package sqlite implements the repository interfaces on top of SQLite.
//
// DRIVER:
// modernc.org/sqlite is a pure Go translation of SQLite, so the binary builds
// without a C toolchain. It registers itself with database/sql as "sqlite".
//
// CONCURRENCY:
// Every transaction is opened with BEGIN IMMEDIATE (the _txlock DSN option), so
// a writer takes the reserved lock up front instead of upgrading mid-flight.
// Two concurrent toggles on the same follow edge therefore run one after the
// other, and the loser waits out busy_timeout rather than failing with
// SQLITE_BUSY.
//
// QUERY SCOPING:
// All SQL lives on *queries, which runs against a dbtx. DB embeds a *queries
// bound to the pool; WithinTx hands out a fresh *queries bound to a *sql.Tx.
// The same method set therefore serves both paths.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/socialgraph/internal/repository"
)

// MemoryPath opens a private in-memory database. Used by tests.
const MemoryPath = ":memory:"

// busyTimeoutMillis is how long a writer waits for the lock before giving up.
const busyTimeoutMillis = 5000

var _ repository.Store = (*DB)(nil)

// dbtx is the subset of *sql.DB and *sql.Tx the queries need.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db dbtx
}

// DB owns the connection pool. Its embedded queries run outside any
// transaction.
type DB struct {
	*queries
	conn *sql.DB
}

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/socialgraph.db" → file-based database
//   - ":memory:"            → in-memory database, lost on Close
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Each connection to ":memory:" is its own database. Pin the pool to one
	// connection so every query sees the same schema and rows.
	if dbPath == MemoryPath {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if dbPath != MemoryPath {
		if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
		}
	}

	db := &DB{queries: &queries{db: conn}, conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

func dsn(dbPath string) string {
	params := []string{
		"_txlock=immediate",
		fmt.Sprintf("_pragma=busy_timeout(%d)", busyTimeoutMillis),
		"_pragma=foreign_keys(1)",
		"_time_format=sqlite",
	}
	return dbPath + "?" + strings.Join(params, "&")
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable. Used by the health check.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// WithinTx runs fn inside one transaction. A non-nil error from fn, or a
// panic, rolls everything back; otherwise the transaction commits.
func (db *DB) WithinTx(ctx context.Context, fn func(q repository.Queries) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&queries{db: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("sqlite: rolling back: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps it idempotent.
func (db *DB) migrate() error {
	steps := []struct {
		name string
		sql  string
	}{
		{"users", `
			CREATE TABLE IF NOT EXISTS users (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				username    TEXT NOT NULL UNIQUE,
				password    TEXT NOT NULL,
				name        TEXT NOT NULL DEFAULT '',
				surname     TEXT NOT NULL DEFAULT '',
				is_private  INTEGER NOT NULL DEFAULT 0,
				picture_url TEXT NOT NULL DEFAULT '',
				created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
		`},
		{"follows", `
			CREATE TABLE IF NOT EXISTS follows (
				id           INTEGER PRIMARY KEY AUTOINCREMENT,
				follower_id  INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				following_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				status       TEXT NOT NULL DEFAULT 'unfollowed'
				             CHECK (status IN ('unfollowed', 'requested', 'followed')),
				UNIQUE (follower_id, following_id),
				CHECK (follower_id <> following_id)
			);
			CREATE INDEX IF NOT EXISTS idx_follows_following_status ON follows(following_id, status);
		`},
		{"posts", `
			CREATE TABLE IF NOT EXISTS posts (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id     INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				title       TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_posts_user_id ON posts(user_id);
		`},
		{"post_images", `
			CREATE TABLE IF NOT EXISTS post_images (
				id        INTEGER PRIMARY KEY AUTOINCREMENT,
				post_id   INTEGER NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
				image_url TEXT NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_post_images_post_id ON post_images(post_id);
		`},
		{"likes", `
			CREATE TABLE IF NOT EXISTS likes (
				id      INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				post_id INTEGER NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
				status  INTEGER NOT NULL DEFAULT 1,
				UNIQUE (user_id, post_id)
			);
			CREATE INDEX IF NOT EXISTS idx_likes_post_id ON likes(post_id);
		`},
		{"comments", `
			CREATE TABLE IF NOT EXISTS comments (
				id         INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				post_id    INTEGER NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
				text       TEXT NOT NULL,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_comments_post_id ON comments(post_id);
		`},
	}

	for _, step := range steps {
		if _, err := db.conn.Exec(step.sql); err != nil {
			return fmt.Errorf("creating %s table: %w", step.name, err)
		}
	}
	return nil
}

// isUniqueViolation reports whether err is SQLite rejecting a duplicate key.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	// Without extended result codes only the primary code is set.
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT &&
		strings.Contains(se.Error(), "UNIQUE constraint failed")
}

// inClause returns "?, ?, ?" and the matching args for an IN (...) list.
func inClause(ids []int64) (string, []any) {
	marks := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		marks[i] = "?"
		args[i] = id
	}
	return strings.Join(marks, ", "), args
}
