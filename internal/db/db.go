// Package db opens the SQLite database backing the sqlite project store and
// applies the embedded schema migrations.
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA foreign_keys=ON",
}

const createMigrations = `CREATE TABLE IF NOT EXISTS _migrations (
	name TEXT PRIMARY KEY,
	applied_at TEXT NOT NULL DEFAULT (datetime('now'))
)`

// DB is an open, migrated database.
type DB struct {
	conn   *sql.DB
	path   string
	logger *slog.Logger
}

// New opens dbPath, creating the file and its directory if needed, and
// brings the schema up to date.
func New(dbPath string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	d := &DB{conn: conn, path: dbPath, logger: logger}
	if err := d.migrate(context.Background()); err != nil {
		conn.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) Close() error {
	if d == nil || d.conn == nil {
		return nil
	}
	return d.conn.Close()
}

func (d *DB) Conn() *sql.DB {
	return d.conn
}

func (d *DB) Path() string {
	return d.path
}

// Applied lists the applied migrations in order.
func (d *DB) Applied(ctx context.Context) ([]string, error) {
	rows, err := d.conn.QueryContext(ctx, "SELECT name FROM _migrations ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan migration: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (d *DB) migrate(ctx context.Context) error {
	if _, err := d.conn.ExecContext(ctx, createMigrations); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}
	applied, err := d.Applied(ctx)
	if err != nil {
		return err
	}
	done := make(map[string]bool, len(applied))
	for _, name := range applied {
		done[name] = true
	}

	files, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Strings(files)
	for _, file := range files {
		name := path.Base(file)
		if done[name] {
			continue
		}
		if err := d.apply(ctx, file, name); err != nil {
			return err
		}
		d.logger.Info("applied migration", "name", name)
	}
	return nil
}

func (d *DB) apply(ctx context.Context, file, name string) error {
	content, err := migrationsFS.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", name, err)
	}

	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", name, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("execute migration %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO _migrations (name) VALUES (?)", name); err != nil {
		return fmt.Errorf("record migration %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", name, err)
	}
	return nil
}

// Health summarizes the database for diagnostics.
type Health struct {
	Path        string   `json:"path"`
	Migrations  []string `json:"migrations"`
	Projects    int      `json:"projects"`
	IntegrityOK bool     `json:"integrityOk"`
	Error       string   `json:"error,omitempty"`
}

// Health reports schema state, row count and the integrity check result.
func (d *DB) Health(ctx context.Context) (Health, error) {
	h := Health{Path: d.path}

	migrations, err := d.Applied(ctx)
	if err != nil {
		h.Error = err.Error()
		return h, err
	}
	h.Migrations = migrations

	if err := d.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM projects").Scan(&h.Projects); err != nil {
		h.Error = err.Error()
		return h, fmt.Errorf("count projects: %w", err)
	}

	var result string
	if err := d.conn.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		h.Error = err.Error()
		return h, fmt.Errorf("integrity check: %w", err)
	}
	h.IntegrityOK = strings.EqualFold(result, "ok")
	return h, nil
}
