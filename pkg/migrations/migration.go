// Package migrations is a small forward-only SQL migration runner: each
// migration is a single .sql file embedded at build time, applied in
// filename order inside its own transaction, and recorded in a
// schema_migrations table keyed by filename with a content checksum so a
// changed-after-applying file is caught rather than silently skipped.
package migrations

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migration is one embedded SQL file, named so that lexical sort order is
// application order (e.g. "001_create_killmail_events.sql").
type Migration struct {
	Version  string
	Contents string
}

// Runner applies a fixed, embedded set of migrations against a Postgres
// pool, tracking what has already run in schema_migrations.
type Runner struct {
	pool       *pgxpool.Pool
	migrations []Migration
}

func NewRunner(pool *pgxpool.Pool) *Runner {
	return &Runner{pool: pool}
}

// LoadFS reads every *.sql file from an embedded filesystem (battlescope's
// cmd/migrate wires this to migrations.Files, the module's go:embed of its
// own directory) and registers them in lexical filename order.
func (r *Runner) LoadFS(files fs.FS) error {
	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		return fmt.Errorf("migrations: read dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		contents, err := fs.ReadFile(files, name)
		if err != nil {
			return fmt.Errorf("migrations: read %s: %w", name, err)
		}
		r.migrations = append(r.migrations, Migration{
			Version:  strings.TrimSuffix(name, ".sql"),
			Contents: string(contents),
		})
	}
	return nil
}

// Up applies every migration not yet recorded in schema_migrations, each in
// its own transaction. It stops at the first failure, leaving later
// migrations unapplied for a subsequent retry.
func (r *Runner) Up(ctx context.Context) error {
	if err := r.ensureSchemaMigrationsTable(ctx); err != nil {
		return err
	}

	applied, err := r.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for _, m := range r.migrations {
		if existing, ok := applied[m.Version]; ok {
			if existing != checksum(m.Contents) {
				return fmt.Errorf("migrations: %s was modified after being applied", m.Version)
			}
			continue
		}

		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("migrations: begin %s: %w", m.Version, err)
		}

		if _, err := tx.Exec(ctx, m.Contents); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("migrations: apply %s: %w", m.Version, err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO schema_migrations (version, checksum, applied_at)
			VALUES ($1, $2, now())
		`, m.Version, checksum(m.Contents)); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("migrations: record %s: %w", m.Version, err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("migrations: commit %s: %w", m.Version, err)
		}
	}
	return nil
}

// Status reports each registered migration's applied/pending state, in
// application order.
func (r *Runner) Status(ctx context.Context) ([]StatusEntry, error) {
	if err := r.ensureSchemaMigrationsTable(ctx); err != nil {
		return nil, err
	}
	applied, err := r.appliedVersions(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]StatusEntry, 0, len(r.migrations))
	for _, m := range r.migrations {
		_, ok := applied[m.Version]
		entries = append(entries, StatusEntry{Version: m.Version, Applied: ok})
	}
	return entries, nil
}

type StatusEntry struct {
	Version string
	Applied bool
}

func (r *Runner) ensureSchemaMigrationsTable(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     TEXT PRIMARY KEY,
			checksum    TEXT NOT NULL,
			applied_at  TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("migrations: ensure schema_migrations: %w", err)
	}
	return nil
}

func (r *Runner) appliedVersions(ctx context.Context) (map[string]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT version, checksum FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("migrations: list applied: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]string)
	for rows.Next() {
		var version, sum string
		if err := rows.Scan(&version, &sum); err != nil {
			return nil, fmt.Errorf("migrations: scan applied: %w", err)
		}
		applied[version] = sum
	}
	return applied, rows.Err()
}

func checksum(contents string) string {
	sum := sha256.Sum256([]byte(contents))
	return hex.EncodeToString(sum[:])
}
