// Package store provides per-project persistence for governor: schema
// migrations plus low-level SQL helpers. Each project owns an isolated
// store, either a dedicated SQLite file or a logically isolated schema
// in a shared Postgres server, selected by configuration.
package store

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/randalmurphal/governor/internal/errs"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// DB wraps a project's database connection, either SQLite or Postgres.
type DB struct {
	db     *sql.DB
	dsn    string
	driver string
}

// Open opens (creating if necessary) a SQLite database at path and
// applies pending migrations.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Wrap(errs.CodeStorage, "create project store directory", err)
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errs.Wrap(errs.CodeStorage, "open sqlite store", err)
	}

	if _, err := sqlDB.Exec(`
		PRAGMA foreign_keys = ON;
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = NORMAL;
	`); err != nil {
		sqlDB.Close()
		return nil, errs.Wrap(errs.CodeStorage, "set sqlite pragmas", err)
	}

	d := &DB{db: sqlDB, dsn: path, driver: "sqlite"}
	if err := d.migrate("project"); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return d, nil
}

// OpenPostgres opens a Postgres-backed store using dsn, isolating the
// project under the given schema name, and applies pending migrations.
// Grounds database.type=postgres from SPEC_FULL.md §3 on jackc/pgx's
// sql.DB-compatible driver so the rest of this package is driver-agnostic.
// TODO: the DAO layer's `?` placeholders and the embedded schema's
// sqlite-specific AUTOINCREMENT column need per-driver translation
// before this path has real query-level parity with Open.
func OpenPostgres(dsn, schemaName string) (*DB, error) {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, errs.Wrap(errs.CodeStorage, "open postgres store", err)
	}
	if _, err := sqlDB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %q`, schemaName)); err != nil {
		sqlDB.Close()
		return nil, errs.Wrap(errs.CodeStorage, "create project schema", err)
	}
	if _, err := sqlDB.Exec(fmt.Sprintf(`SET search_path TO %q`, schemaName)); err != nil {
		sqlDB.Close()
		return nil, errs.Wrap(errs.CodeStorage, "set search_path", err)
	}

	d := &DB{db: sqlDB, dsn: dsn, driver: "postgres"}
	if err := d.migrate("project"); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return d, nil
}

// Close releases the underlying connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// SQL returns the underlying *sql.DB for callers that need raw access
// (the DAO layer).
func (d *DB) SQL() *sql.DB {
	return d.db
}

// migrate applies all pending embedded migrations for schemaType,
// tracked in the schema_version table (named per spec.md §6's
// persisted-state table list, rather than a generic "_migrations"
// name).
func (d *DB) migrate(schemaType string) error {
	if _, err := d.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`); err != nil {
		return errs.Wrap(errs.CodeStorage, "create schema_version table", err)
	}

	applied := make(map[int]bool)
	rows, err := d.db.Query(`SELECT version FROM schema_version`)
	if err != nil {
		return errs.Wrap(errs.CodeStorage, "query schema_version", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return errs.Wrap(errs.CodeStorage, "scan schema_version", err)
		}
		applied[v] = true
	}
	rows.Close()

	entries, err := schemaFS.ReadDir("schema")
	if err != nil {
		return errs.Wrap(errs.CodeInternal, "read embedded schema", err)
	}

	prefix := schemaType + "_"
	var migrations []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), prefix) && strings.HasSuffix(e.Name(), ".sql") {
			migrations = append(migrations, e.Name())
		}
	}
	sort.Strings(migrations)

	for _, name := range migrations {
		version := extractVersion(name, prefix)
		if applied[version] {
			continue
		}

		content, err := schemaFS.ReadFile("schema/" + name)
		if err != nil {
			return errs.Wrap(errs.CodeInternal, "read migration "+name, err)
		}

		tx, err := d.db.Begin()
		if err != nil {
			return errs.Wrap(errs.CodeStorage, "begin migration transaction", err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return errs.Wrap(errs.CodeStorage, "apply migration "+name, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_version (version, applied_at) VALUES (?, ?)`,
			version, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
			tx.Rollback()
			return errs.Wrap(errs.CodeStorage, "record migration "+name, err)
		}
		if err := tx.Commit(); err != nil {
			return errs.Wrap(errs.CodeStorage, "commit migration "+name, err)
		}
	}

	return nil
}

func extractVersion(name, prefix string) int {
	s := strings.TrimPrefix(name, prefix)
	s = strings.TrimSuffix(s, ".sql")
	if idx := strings.Index(s, "_"); idx >= 0 {
		s = s[:idx]
	}
	v, _ := strconv.Atoi(s)
	return v
}

// mapSQLErr translates a database/sql error into the governor error
// taxonomy. Unique-constraint violations map to Conflict, foreign-key
// violations to Validation, missing rows to NotFound; anything else is
// Storage.
func mapSQLErr(err error, notFoundMsg string) error {
	if err == nil {
		return nil
	}
	if err == sql.ErrNoRows {
		return errs.New(errs.CodeNotFound, notFoundMsg)
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint") || strings.Contains(msg, "duplicate key") {
		return errs.Wrap(errs.CodeConflict, "unique constraint violated", err)
	}
	if strings.Contains(msg, "FOREIGN KEY constraint") || strings.Contains(msg, "violates foreign key") {
		return errs.Wrap(errs.CodeValidation, "referential integrity violated", err)
	}
	return errs.Wrap(errs.CodeStorage, "store operation failed", err)
}
