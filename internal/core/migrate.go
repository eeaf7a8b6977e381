// AngelaMos | 2026
// migrate.go

package core

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

func Migrate(ctx context.Context, db *sqlx.DB, logger *slog.Logger) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var applied []string
	if err := db.SelectContext(ctx, &applied, `SELECT version FROM schema_migrations`); err != nil {
		return fmt.Errorf("read applied migrations: %w", err)
	}

	done := make(map[string]struct{}, len(applied))
	for _, v := range applied {
		done[v] = struct{}{}
	}

	names, err := fs.Glob(migrationFiles, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		version := strings.TrimSuffix(strings.TrimPrefix(name, "migrations/"), ".sql")
		if _, ok := done[version]; ok {
			continue
		}

		body, err := migrationFiles.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", version, err)
		}

		err = InTx(ctx, db, func(tx *sqlx.Tx) error {
			if _, execErr := tx.ExecContext(ctx, string(body)); execErr != nil {
				return execErr
			}
			_, execErr := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version) VALUES ($1)`, version)
			return execErr
		})
		if err != nil {
			return fmt.Errorf("apply migration %s: %w", version, err)
		}

		logger.Info("migration applied", "version", version)
	}

	return nil
}
