package e2e_harness

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/lychee-technology/tabula"
	"github.com/lychee-technology/tabula/internal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	pgUser     = "postgres"
	pgPassword = "password"
	pgDatabase = "postgres"

	// S3AccessKey and S3SecretKey are the credentials of the object storage container.
	S3AccessKey = "minio"
	S3SecretKey = "minio"
)

// TestHarness owns the containers backing the end-to-end scenarios.
type TestHarness struct {
	PGContainer testcontainers.Container
	PGHost      string
	PGPort      int
	PGDSN       string
	PGDB        *sql.DB
	Pool        *pgxpool.Pool

	S3Container testcontainers.Container
	S3Endpoint  string

	RedisContainer testcontainers.Container
	RedisAddr      string
}

type endpoint struct {
	host string
	port int
}

func startContainer(ctx context.Context, req testcontainers.ContainerRequest, port string) (testcontainers.Container, endpoint, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, endpoint{}, err
	}
	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, endpoint{}, err
	}
	mapped, err := container.MappedPort(ctx, nat.Port(port))
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, endpoint{}, err
	}
	return container, endpoint{host: host, port: mapped.Int()}, nil
}

func terminate(ctx context.Context, c *testcontainers.Container) error {
	if *c == nil {
		return nil
	}
	err := (*c).Terminate(ctx)
	*c = nil
	return err
}

// StartPostgres starts Postgres 16 and waits until database/sql can ping it.
func (h *TestHarness) StartPostgres(ctx context.Context) (string, error) {
	container, ep, err := startContainer(ctx, testcontainers.ContainerRequest{
		Image:        "postgres:16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_PASSWORD": pgPassword,
			"POSTGRES_USER":     pgUser,
			"POSTGRES_DB":       pgDatabase,
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(30 * time.Second),
	}, "5432")
	if err != nil {
		return "", err
	}
	h.PGContainer, h.PGHost, h.PGPort = container, ep.host, ep.port
	h.PGDSN = fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable", pgUser, pgPassword, ep.host, ep.port, pgDatabase)

	db, err := sql.Open("postgres", h.PGDSN)
	if err != nil {
		return "", err
	}
	deadline := time.Now().Add(20 * time.Second)
	for {
		err := db.PingContext(ctx)
		if err == nil {
			h.PGDB = db
			return h.PGDSN, nil
		}
		if time.Now().After(deadline) {
			db.Close()
			return "", fmt.Errorf("postgres did not become ready: %w", err)
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// DatabaseConfig points a tabula database config at the running container.
func (h *TestHarness) DatabaseConfig(base tabula.DatabaseConfig) tabula.DatabaseConfig {
	base.Host = h.PGHost
	base.Port = h.PGPort
	base.Database = pgDatabase
	base.Username = pgUser
	base.Password = pgPassword
	base.SSLMode = "disable"
	return base
}

// ConnectPool opens a pgx pool against the started container and creates every table.
func (h *TestHarness) ConnectPool(ctx context.Context, tables tabula.TableNames) (*pgxpool.Pool, error) {
	if h.PGDSN == "" {
		return nil, fmt.Errorf("postgres not started")
	}
	pool, err := pgxpool.New(ctx, h.PGDSN)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := internal.EnsureTables(ctx, pool, tables); err != nil {
		pool.Close()
		return nil, err
	}
	h.Pool = pool
	return pool, nil
}

// StopPostgres closes the pool and database handle, then removes the container.
func (h *TestHarness) StopPostgres(ctx context.Context) error {
	if h.Pool != nil {
		h.Pool.Close()
		h.Pool = nil
	}
	if h.PGDB != nil {
		h.PGDB.Close()
		h.PGDB = nil
	}
	return terminate(ctx, &h.PGContainer)
}

// StartS3 starts an S3-compatible object store and returns its endpoint URL.
func (h *TestHarness) StartS3(ctx context.Context) (string, error) {
	container, ep, err := startContainer(ctx, testcontainers.ContainerRequest{
		Image:        "rustfs/rustfs:latest",
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"RUSTFS_ACCESS_KEY": S3AccessKey,
			"RUSTFS_SECRET_KEY": S3SecretKey,
		},
		WaitingFor: wait.ForListeningPort("9000/tcp").WithStartupTimeout(30 * time.Second),
	}, "9000")
	if err != nil {
		return "", err
	}
	h.S3Container = container
	h.S3Endpoint = fmt.Sprintf("http://%s:%d", ep.host, ep.port)
	return h.S3Endpoint, nil
}

// StopS3 removes the object store container.
func (h *TestHarness) StopS3(ctx context.Context) error {
	return terminate(ctx, &h.S3Container)
}

// StartRedis starts Redis and returns its host:port address.
func (h *TestHarness) StartRedis(ctx context.Context) (string, error) {
	container, ep, err := startContainer(ctx, testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}, "6379")
	if err != nil {
		return "", err
	}
	h.RedisContainer = container
	h.RedisAddr = fmt.Sprintf("%s:%d", ep.host, ep.port)
	return h.RedisAddr, nil
}

// StopRedis removes the Redis container.
func (h *TestHarness) StopRedis(ctx context.Context) error {
	return terminate(ctx, &h.RedisContainer)
}
