package main

import (
	"context"
	"time"

	"github.com/lychee-technology/tabula"
	"github.com/lychee-technology/tabula/factory"
	"github.com/lychee-technology/tabula/internal"
	"go.uber.org/zap"
)

// newLogger builds the production logger at the configured level and encoding.
func newLogger(cfg tabula.LoggingConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		zc.Level = level
	}
	if cfg.Format == "console" {
		zc.Encoding = "console"
	}
	return zc.Build()
}

// loadConfig fills a Config from environment variables.
func loadConfig() *tabula.Config {
	config := tabula.DefaultConfig()

	config.Database.Host = getEnv("DB_HOST", config.Database.Host)
	config.Database.Port = getEnvInt("DB_PORT", config.Database.Port)
	config.Database.Database = getEnv("DB_NAME", config.Database.Database)
	config.Database.Username = getEnv("DB_USER", "postgres")
	config.Database.Password = getEnv("DB_PASSWORD", "")
	config.Database.SSLMode = getEnv("DB_SSL_MODE", config.Database.SSLMode)
	config.Database.MaxConnections = getEnvInt("DB_MAX_CONNECTIONS", config.Database.MaxConnections)
	config.Database.MinConnections = getEnvInt("DB_MIN_CONNECTIONS", config.Database.MinConnections)
	config.Database.ConnMaxLifetime = getEnvSeconds("DB_CONN_MAX_LIFETIME_SECONDS", config.Database.ConnMaxLifetime)
	config.Database.ConnMaxIdleTime = getEnvSeconds("DB_CONN_MAX_IDLE_TIME_SECONDS", config.Database.ConnMaxIdleTime)
	config.Database.Timeout = getEnvSeconds("DB_TIMEOUT_SECONDS", config.Database.Timeout)
	config.Database.UseIAMAuth = getEnvBool("DB_USE_IAM", false)
	config.Database.Region = getEnv("AWS_REGION", config.Database.Region)

	config.Database.TableNames.Datasets = getEnv("DATASETS_TABLE", config.Database.TableNames.Datasets)
	config.Database.TableNames.DataPoints = getEnv("DATA_POINTS_TABLE", config.Database.TableNames.DataPoints)
	config.Database.TableNames.AdminUsers = getEnv("ADMIN_USERS_TABLE", config.Database.TableNames.AdminUsers)
	config.Database.TableNames.Charts = getEnv("CHARTS_TABLE", config.Database.TableNames.Charts)

	config.Server.Port = getEnvInt("PORT", config.Server.Port)
	config.Server.ShutdownTimeout = getEnvSeconds("SHUTDOWN_TIMEOUT_SECONDS", config.Server.ShutdownTimeout)

	config.Auth.JWTSecret = getEnv("JWT_SECRET", "")
	config.Auth.SecureCookie = getEnvBool("SECURE_COOKIE", config.Auth.SecureCookie)

	config.RateLimit.Enabled = getEnvBool("RATE_LIMIT_ENABLED", config.RateLimit.Enabled)
	config.RateLimit.MaxRequests = getEnvInt("RATE_LIMIT_MAX_REQUESTS", config.RateLimit.MaxRequests)
	config.RateLimit.Window = getEnvSeconds("RATE_LIMIT_WINDOW_SECONDS", config.RateLimit.Window)
	config.RateLimit.TrustForwardedFor = getEnvBool("TRUST_FORWARDED_FOR", config.RateLimit.TrustForwardedFor)

	config.Redis.Enabled = getEnvBool("REDIS_ENABLED", config.Redis.Enabled)
	config.Redis.Addr = getEnv("REDIS_ADDR", config.Redis.Addr)
	config.Redis.Password = getEnv("REDIS_PASSWORD", "")
	config.Redis.DB = getEnvInt("REDIS_DB", config.Redis.DB)

	config.Logging.Level = getEnv("LOG_LEVEL", config.Logging.Level)
	config.Logging.Format = getEnv("LOG_FORMAT", config.Logging.Format)

	config.Validation.EnforceFieldTypes = getEnvBool("ENFORCE_FIELD_TYPES", config.Validation.EnforceFieldTypes)

	config.Export.Enabled = getEnvBool("EXPORT_ENABLED", config.Export.Enabled)
	config.Export.S3Bucket = getEnv("EXPORT_S3_BUCKET", config.Export.S3Bucket)
	config.Export.S3Prefix = getEnv("EXPORT_S3_PREFIX", config.Export.S3Prefix)
	config.Export.S3Region = getEnv("EXPORT_S3_REGION", config.Export.S3Region)
	config.Export.S3Endpoint = getEnv("EXPORT_S3_ENDPOINT", config.Export.S3Endpoint)
	config.Export.S3AccessKey = getEnv("AWS_ACCESS_KEY_ID", "")
	config.Export.S3SecretKey = getEnv("AWS_SECRET_ACCESS_KEY", "")
	config.Export.DuckDBPath = getEnv("EXPORT_DUCKDB_PATH", config.Export.DuckDBPath)

	return config
}

// buildServer wires every collaborator from config. cleanup releases them in
// reverse order.
func buildServer(ctx context.Context, config *tabula.Config) (*Server, func(), error) {
	pool, err := factory.NewDatabasePool(ctx, config)
	if err != nil {
		return nil, nil, err
	}
	closers := []func(){pool.Close}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	manager, err := factory.NewDatasetManagerWithConfig(config, pool)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	auth, err := factory.NewAuthenticator(config, pool)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	server := NewServer(config, manager, auth)
	server.charts = factory.NewChartReader(config, pool)
	server.health = func(ctx context.Context) error {
		return internal.PoolHealthCheck(ctx, pool, 2*time.Second)
	}

	limiter, closeLimiter := factory.NewRateLimiter(ctx, config)
	server.limiter = limiter
	closers = append(closers, func() {
		if err := closeLimiter(); err != nil {
			zap.S().Warnw("close rate limiter store", "error", err)
		}
	})

	exporter, err := factory.NewExporter(ctx, config)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if exporter != nil {
		server.exporter = exporter
		closers = append(closers, func() { _ = exporter.Close() })
	}

	return server, cleanup, nil
}
