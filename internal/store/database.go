// Package store is the Metadata Store (C3): an embedded
// relational store of users, illusts, and download_history, backed by an
// on-disk SQLite file rather than the in-memory-plus-periodic-flush model
// used elsewhere in the stack. The backup daemon's durability invariant
// (invariant 6) requires every state-changing write to survive an
// immediate crash, which an in-memory database cannot guarantee between
// flushes — so pixback opens the database file directly and relies on
// SQLite's own WAL journal for crash safety.
package store

import (
	"database/sql"
	"fmt"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/corvidae/pixback/internal/common/paths"
	"github.com/corvidae/pixback/internal/store/migrations"
)

// DatabaseFileName is the well-known SQLite file under the output
// directory's data/ subdirectory (§6.1).
const DatabaseFileName = "pixiv.db"

// Path builds the database path under outputDir/data/.
func Path(outputDir string) string {
	return filepath.Join(outputDir, "data", DatabaseFileName)
}

// Store wraps the SQLite connection and the query surface the rest of the
// core uses: is_downloaded, mark_downloaded, mark_limited, count_total.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// brings its schema up to date via the migration runner.
func Open(path string) (*Store, error) {
	if err := paths.EnsureDir(path); err != nil {
		return nil, fmt.Errorf("ensure database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite tolerates only one writer at a time; a single connection
	// avoids SQLITE_BUSY errors under the scheduler's single-writer model.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	runner := migrations.NewRunner(db)
	if err := runner.Run(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB, for callers that need raw access
// (tests, the `repair` CLI subcommand's PRAGMA integrity_check).
func (s *Store) DB() *sql.DB {
	return s.db
}
