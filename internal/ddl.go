package internal

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lychee-technology/tabula"
)

// Execer runs DDL statements; pgx.Tx, pgx.Conn and pgxpool.Pool all satisfy it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// TableDDL returns the CREATE statements for every table, in dependency order.
// The schema column is JSON rather than JSONB so property order is kept verbatim.
func TableDDL(tables tabula.TableNames) []string {
	datasets := sanitizeIdentifier(tables.Datasets)
	dataPoints := sanitizeIdentifier(tables.DataPoints)

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id          UUID PRIMARY KEY,
		name        TEXT NOT NULL UNIQUE,
		description TEXT,
		schema      JSON NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, datasets),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id         UUID PRIMARY KEY,
		dataset_id UUID NOT NULL REFERENCES %s (id) ON DELETE CASCADE,
		data       JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, dataPoints, datasets),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (dataset_id, created_at DESC)`,
			indexName(tables.DataPoints, "dataset_created"), dataPoints),
	}

	if tables.AdminUsers != "" {
		stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id            UUID PRIMARY KEY,
		username      TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, sanitizeIdentifier(tables.AdminUsers)))
	}

	if tables.Charts != "" {
		stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		name   TEXT PRIMARY KEY,
		data   JSONB NOT NULL,
		layout JSONB NOT NULL DEFAULT '{}'::jsonb
	)`, sanitizeIdentifier(tables.Charts)))
	}

	return stmts
}

// EnsureTables creates all tables and indexes that do not exist yet.
func EnsureTables(ctx context.Context, exec Execer, tables tabula.TableNames) error {
	for _, stmt := range TableDDL(tables) {
		if _, err := exec.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure tables: %w", err)
		}
	}
	return nil
}

func indexName(table, suffix string) string {
	base := strings.ReplaceAll(strings.Trim(table, "\""), ".", "_")
	return sanitizeIdentifier("idx_" + base + "_" + suffix)
}
