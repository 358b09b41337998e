package export

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/google/uuid"
	"github.com/lychee-technology/tabula"
	"go.uber.org/zap"
)

// DuckExporter copies data points out of Postgres into Parquet objects using DuckDB.
type DuckExporter struct {
	DB          *sql.DB
	copyTimeout time.Duration
}

// NewDuckExporter opens a DuckDB connection and configures pragmas, extensions and S3 settings.
func NewDuckExporter(ctx context.Context, cfg tabula.ExportConfig) (*DuckExporter, error) {
	db, err := sql.Open("duckdb", cfg.DuckDBPath)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	setupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	for _, stmt := range setupStatements(cfg) {
		if _, err := db.ExecContext(setupCtx, stmt); err != nil {
			zap.S().Warnw("duckdb setup statement failed", "statement", redact(stmt), "error", err)
		}
	}

	return &DuckExporter{DB: db, copyTimeout: 30 * time.Minute}, nil
}

func setupStatements(cfg tabula.ExportConfig) []string {
	var stmts []string
	if cfg.DuckDBMemoryMB > 0 {
		stmts = append(stmts, fmt.Sprintf("PRAGMA memory_limit='%dMB';", cfg.DuckDBMemoryMB))
	}
	if cfg.DuckDBThreads > 0 {
		stmts = append(stmts, fmt.Sprintf("PRAGMA threads=%d;", cfg.DuckDBThreads))
	}
	for _, ext := range []string{"httpfs", "parquet", "postgres_scanner"} {
		stmts = append(stmts, "INSTALL "+ext+";", "LOAD "+ext+";")
	}
	if cfg.S3AccessKey != "" {
		stmts = append(stmts, fmt.Sprintf("SET s3_access_key_id='%s';", quote(cfg.S3AccessKey)))
	}
	if cfg.S3SecretKey != "" {
		stmts = append(stmts, fmt.Sprintf("SET s3_secret_access_key='%s';", quote(cfg.S3SecretKey)))
	}
	if cfg.S3Region != "" {
		stmts = append(stmts, fmt.Sprintf("SET s3_region='%s';", quote(cfg.S3Region)))
	}
	if cfg.S3Endpoint != "" {
		ep := strings.TrimPrefix(strings.TrimPrefix(cfg.S3Endpoint, "http://"), "https://")
		stmts = append(stmts,
			fmt.Sprintf("SET s3_endpoint='%s';", quote(ep)),
			fmt.Sprintf("SET s3_use_ssl=%t;", strings.HasPrefix(cfg.S3Endpoint, "https://")),
			"SET s3_url_style='path';",
		)
	}
	return stmts
}

// CopyDataPoints writes every data point of one dataset to dest as a ZSTD Parquet file.
func (e *DuckExporter) CopyDataPoints(ctx context.Context, pgConnStr, table string, datasetID uuid.UUID, dest string) error {
	stmt := copyDataPointsSQL(pgConnStr, table, datasetID, dest)
	zap.S().Debugw("duckdb export", "dataset_id", datasetID, "dest", dest)

	copyCtx, cancel := context.WithTimeout(ctx, e.copyTimeout)
	defer cancel()
	if _, err := e.DB.ExecContext(copyCtx, stmt); err != nil {
		return fmt.Errorf("duckdb copy exec: %w", err)
	}
	return nil
}

// Close releases the DuckDB handle.
func (e *DuckExporter) Close() error {
	return e.DB.Close()
}

func copyDataPointsSQL(pgConnStr, table string, datasetID uuid.UUID, dest string) string {
	return fmt.Sprintf(`COPY (
SELECT
  CAST(p.id AS VARCHAR) AS id,
  CAST(p.dataset_id AS VARCHAR) AS dataset_id,
  CAST(p.data AS VARCHAR) AS data,
  p.created_at AS created_at,
  p.updated_at AS updated_at
FROM postgres_scan('%s', 'public', '%s') p
WHERE CAST(p.dataset_id AS VARCHAR) = '%s'
ORDER BY p.created_at, p.id
) TO '%s' (FORMAT PARQUET, COMPRESSION 'ZSTD');`,
		quote(pgConnStr), quote(table), datasetID, quote(dest))
}

// quote escapes single quotes for embedding in a DuckDB string literal.
func quote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func redact(stmt string) string {
	if strings.Contains(stmt, "s3_secret_access_key") || strings.Contains(stmt, "s3_access_key_id") {
		return stmt[:strings.Index(stmt, "=")+1] + "'***'"
	}
	return stmt
}
