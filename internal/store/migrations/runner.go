// Package migrations provides schema versioning for the metadata store.
// Missing columns on a pre-existing store are added non-destructively
// (§3: "the current schema is canonical", "add columns, never drop").
package migrations

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/corvidae/pixback/internal/common/logs"
)

var log *logs.Logger

// SetLogger sets the logger used for migration progress messages.
func SetLogger(l *logs.Logger) {
	log = l
}

// Migration is a single forward-only schema step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// Runner applies pending migrations in version order, tracked in a
// schema_migrations table so repeat runs against an existing database are
// no-ops.
type Runner struct {
	db         *sql.DB
	migrations []Migration
}

// NewRunner creates a Runner with every known migration registered.
func NewRunner(db *sql.DB) *Runner {
	r := &Runner{db: db}
	r.registerAll()
	return r
}

func (r *Runner) registerAll() {
	r.migrations = []Migration{
		migration001InitialSchema(),
		migration002AddBookmarkOrder(),
		migration003AddFileSize(),
	}
	sort.Slice(r.migrations, func(i, j int) bool {
		return r.migrations[i].Version < r.migrations[j].Version
	})
}

func (r *Runner) ensureMigrationsTable() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func (r *Runner) getAppliedVersions() (map[int]bool, error) {
	rows, err := r.db.Query("SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

// Run executes all pending migrations, each inside its own transaction.
func (r *Runner) Run() error {
	if err := r.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := r.getAppliedVersions()
	if err != nil {
		return fmt.Errorf("load applied migrations: %w", err)
	}

	for _, m := range r.migrations {
		if applied[m.Version] {
			continue
		}
		if err := r.runMigration(m); err != nil {
			if log != nil {
				log.Error("migration failed", "version", m.Version, "description", m.Description, "err", err)
			}
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}
	}
	return nil
}

func (r *Runner) runMigration(m Migration) error {
	if log != nil {
		log.Debug("applying migration", "version", m.Version, "description", m.Description)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := m.Up(tx); err != nil {
		tx.Rollback()
		return err
	}

	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
		m.Version, m.Description, time.Now().UTC(),
	); err != nil {
		tx.Rollback()
		return fmt.Errorf("record migration: %w", err)
	}

	return tx.Commit()
}

// CurrentVersion returns the highest applied migration version.
func (r *Runner) CurrentVersion() (int, error) {
	if err := r.ensureMigrationsTable(); err != nil {
		return 0, err
	}
	var version int
	err := r.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	return version, err
}
