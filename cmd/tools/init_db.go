package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lychee-technology/tabula"
	"github.com/lychee-technology/tabula/factory"
	"github.com/lychee-technology/tabula/internal"
)

// dbFlags registers the connection and table flags shared by every command.
func dbFlags(flags *flag.FlagSet, config *tabula.Config) {
	db := &config.Database
	flags.StringVar(&db.Host, "db-host", getenvDefault("DB_HOST", "localhost"), "database host")
	flags.IntVar(&db.Port, "db-port", getenvDefaultInt("DB_PORT", 5432), "database port")
	flags.StringVar(&db.Database, "db-name", getenvDefault("DB_NAME", "tabula"), "database name")
	flags.StringVar(&db.Username, "db-user", getenvDefault("DB_USER", "postgres"), "database user")
	flags.StringVar(&db.Password, "db-password", getenvDefault("DB_PASSWORD", "postgres"), "database password")
	flags.StringVar(&db.SSLMode, "db-ssl-mode", getenvDefault("DB_SSL_MODE", "disable"), "database sslmode")
	flags.BoolVar(&db.UseIAMAuth, "db-use-iam", getenvDefault("DB_USE_IAM", "") == "true", "authenticate with an IAM connect token")
	flags.StringVar(&db.Region, "aws-region", getenvDefault("AWS_REGION", db.Region), "AWS region for IAM authentication")
	flags.StringVar(&db.TableNames.Datasets, "datasets-table", getenvDefault("DATASETS_TABLE", "datasets"), "datasets table name")
	flags.StringVar(&db.TableNames.DataPoints, "data-points-table", getenvDefault("DATA_POINTS_TABLE", "data_points"), "data points table name")
	flags.StringVar(&db.TableNames.AdminUsers, "admin-users-table", getenvDefault("ADMIN_USERS_TABLE", "admin_users"), "admin users table name")
	flags.StringVar(&db.TableNames.Charts, "charts-table", getenvDefault("CHARTS_TABLE", "charts"), "charts table name")
}

func parseFlags(flags *flag.FlagSet, args []string) (bool, error) {
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func newFlagSet(name, usage string) *flag.FlagSet {
	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	flags.SetOutput(os.Stdout)
	flags.Usage = func() {
		fmt.Printf("Usage: tabula-tools %s %s\n\n", name, usage)
		fmt.Println("Options:")
		flags.PrintDefaults()
	}
	return flags
}

func runInitDB(args []string) error {
	config := tabula.DefaultConfig()
	flags := newFlagSet("init-db", "[options]")
	dbFlags(flags, config)
	if ok, err := parseFlags(flags, args); !ok {
		return err
	}

	return initDatabase(context.Background(), config)
}

func initDatabase(ctx context.Context, config *tabula.Config) error {
	dsn := factory.PoolConnString(config.Database, internal.ResolveDatabasePassword(ctx, config.Database))
	if err := internal.PostgresHealthCheck(ctx, dsn, config.Database.Timeout); err != nil {
		return err
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("create connection pool: %w", err)
	}
	defer pool.Close()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if err := withTx(ctx, conn, func(tx pgx.Tx) error {
		return internal.EnsureTables(ctx, tx, config.Database.TableNames)
	}); err != nil {
		return err
	}

	fmt.Printf("Database initialized successfully (tables: %s, %s, %s, %s).\n",
		config.Database.TableNames.Datasets,
		config.Database.TableNames.DataPoints,
		config.Database.TableNames.AdminUsers,
		config.Database.TableNames.Charts,
	)
	return nil
}

func withTx(ctx context.Context, conn *pgxpool.Conn, fn func(pgx.Tx) error) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w; rollback failed: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

func getenvDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getenvDefaultInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}
