package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate applies *.sql files from dir in lexical order. Each file runs at
// most once, tracked by filename in schema_migrations. A file's statements
// run inside a single transaction together with the tracking insert.
func Migrate(ctx context.Context, pool *pgxpool.Pool, dir string, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}

	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
		  filename   TEXT PRIMARY KEY,
		  applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	applied := 0
	for _, name := range files {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return applied, fmt.Errorf("read migration %s: %w", name, err)
		}

		ran, err := applyMigration(ctx, pool, name, string(data))
		if err != nil {
			return applied, fmt.Errorf("apply migration %s: %w", name, err)
		}
		if ran {
			applied++
			logger.Info("migration applied", "file", name)
		}
	}

	return applied, nil
}

func applyMigration(ctx context.Context, pool *pgxpool.Pool, name, sql string) (bool, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var exists int
	err = tx.QueryRow(ctx, "SELECT 1 FROM schema_migrations WHERE filename = $1", name).Scan(&exists)
	alreadyApplied, err := classifyAppliedCheck(err)
	if err != nil {
		return false, fmt.Errorf("check migration state: %w", err)
	}
	if alreadyApplied {
		return false, nil
	}

	for _, stmt := range SplitStatements(sql) {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return false, err
		}
	}

	if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (filename) VALUES ($1)", name); err != nil {
		return false, err
	}

	return true, tx.Commit(ctx)
}

// classifyAppliedCheck interprets the tracking-row lookup: a hit means
// the file already ran, ErrNoRows means it has not, and anything else
// is a real failure that must not cause a re-run.
func classifyAppliedCheck(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, pgx.ErrNoRows):
		return false, nil
	default:
		return false, err
	}
}

// SplitStatements splits a migration file into individual statements on
// top-level semicolons, respecting single/double quotes and SQL comments.
// Sufficient for typical DDL (no dollar-quoted function bodies).
func SplitStatements(sql string) []string {
	var parts []string
	var buf strings.Builder

	var inSQ, inDQ, inLineComment, inBlockComment bool

	flush := func() {
		s := strings.TrimSpace(buf.String())
		if s != "" {
			parts = append(parts, s)
		}
		buf.Reset()
	}

	for i := 0; i < len(sql); i++ {
		ch := sql[i]
		var next byte
		if i+1 < len(sql) {
			next = sql[i+1]
		}

		switch {
		case inLineComment:
			buf.WriteByte(ch)
			if ch == '\n' {
				inLineComment = false
			}

		case inBlockComment:
			buf.WriteByte(ch)
			if ch == '*' && next == '/' {
				buf.WriteByte(next)
				inBlockComment = false
				i++
			}

		case inSQ:
			buf.WriteByte(ch)
			if ch == '\'' && next == '\'' {
				buf.WriteByte(next)
				i++
			} else if ch == '\'' {
				inSQ = false
			}

		case inDQ:
			buf.WriteByte(ch)
			if ch == '"' && next == '"' {
				buf.WriteByte(next)
				i++
			} else if ch == '"' {
				inDQ = false
			}

		case ch == '-' && next == '-':
			buf.WriteByte(ch)
			buf.WriteByte(next)
			inLineComment = true
			i++

		case ch == '/' && next == '*':
			buf.WriteByte(ch)
			buf.WriteByte(next)
			inBlockComment = true
			i++

		case ch == '\'':
			buf.WriteByte(ch)
			inSQ = true

		case ch == '"':
			buf.WriteByte(ch)
			inDQ = true

		case ch == ';':
			flush()

		default:
			buf.WriteByte(ch)
		}
	}

	flush()
	return parts
}
