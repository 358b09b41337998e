package factory

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lychee-technology/tabula"
	"github.com/lychee-technology/tabula/internal"
	"github.com/lychee-technology/tabula/internal/export"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type queryPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// tableCollector is swapped out in tests.
var tableCollector = collectTablesFromPool

func collectTablesFromPool(pool queryPool) ([]string, error) {
	rows, err := pool.Query(context.Background(), `SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'public' AND table_type = 'BASE TABLE'`)
	if err != nil {
		return nil, fmt.Errorf("failed to verify database connection: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return tables, nil
}

// PoolConnString builds the pgx connection URL for cfg using password.
func PoolConnString(cfg tabula.DatabaseConfig, password string) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.Username, password),
		Host:     cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Path:     "/" + cfg.Database,
		RawQuery: url.Values{"sslmode": []string{cfg.SSLMode}}.Encode(),
	}
	return u.String()
}

// NewDatabasePool creates and pings a PostgreSQL connection pool. With
// Database.UseIAMAuth the password is an IAM connect token.
func NewDatabasePool(ctx context.Context, config *tabula.Config) (*pgxpool.Pool, error) {
	if err := internal.ValidatePostgresConfig(config.Database); err != nil {
		return nil, err
	}
	db := config.Database

	poolConfig, err := pgxpool.ParseConfig(PoolConnString(db, internal.ResolveDatabasePassword(ctx, db)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	poolConfig.MaxConns = int32(db.MaxConnections)
	poolConfig.MinConns = int32(db.MinConnections)
	poolConfig.MaxConnLifetime = db.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = db.ConnMaxIdleTime
	poolConfig.ConnConfig.ConnectTimeout = db.Timeout

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := internal.PoolHealthCheck(ctx, pool, 5*time.Second); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// NewDatasetManagerWithConfig creates a DatasetManager backed by pool. The
// datasets and data points tables must already exist (see `tools init-db`).
//
// Usage:
//
//	config := tabula.DefaultConfig()
//	pool, err := factory.NewDatabasePool(ctx, config)
//	if err != nil {
//	    // handle error
//	}
//	manager, err := factory.NewDatasetManagerWithConfig(config, pool)
func NewDatasetManagerWithConfig(config *tabula.Config, pool *pgxpool.Pool) (tabula.DatasetManager, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	tables, err := tableCollector(pool)
	if err != nil {
		return nil, err
	}
	names := config.Database.TableNames
	for _, required := range []string{names.Datasets, names.DataPoints} {
		if !slices.Contains(tables, required) {
			return nil, fmt.Errorf("required table %q is missing in the database", required)
		}
	}
	zap.S().Infow("dataset tables verified", "datasets", names.Datasets, "dataPoints", names.DataPoints)

	return internal.NewDatasetManager(
		internal.NewPostgresDatasetRepository(pool, names),
		internal.NewPostgresDataPointRepository(pool, names),
		internal.NewSchemaValidator(config.Validation),
		config,
	), nil
}

// NewAuthenticator creates the admin session authenticator.
func NewAuthenticator(config *tabula.Config, pool *pgxpool.Pool) (tabula.Authenticator, error) {
	users := internal.NewPostgresAdminUserRepository(pool, config.Database.TableNames)
	return internal.NewSessionAuthenticator(users, config.Auth)
}

// NewRateLimiter creates the per-origin limiter. When Redis is enabled the
// returned close func releases the client.
func NewRateLimiter(ctx context.Context, config *tabula.Config) (tabula.RateLimiter, func() error) {
	if !config.Redis.Enabled {
		return internal.NewRateLimiter(nil, config.RateLimit), func() error { return nil }
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		zap.S().Warnw("redis unreachable; rate limiter will use in-memory window until it recovers", "addr", config.Redis.Addr, "error", err)
	}
	return internal.NewRateLimiter(client, config.RateLimit), client.Close
}

// NewChartReader creates the read-only chart repository.
func NewChartReader(config *tabula.Config, pool *pgxpool.Pool) tabula.ChartReader {
	return internal.NewPostgresChartRepository(pool, config.Database.TableNames)
}

// NewExporter creates the snapshot exporter, or returns nil when export is disabled.
func NewExporter(ctx context.Context, config *tabula.Config) (*export.Exporter, error) {
	if !config.Export.Enabled {
		return nil, nil
	}
	if err := internal.ValidateExportConfig(config.Export); err != nil {
		return nil, err
	}
	if err := internal.S3HealthCheck(ctx, config.Export, 5*time.Second); err != nil {
		zap.S().Warnw("object storage endpoint check failed", "endpoint", config.Export.S3Endpoint, "error", err)
	}
	return export.New(ctx, config)
}
