package testing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresConfig controls the PostgreSQL test container.
type PostgresConfig struct {
	Image          string
	Username       string
	Password       string
	Database       string
	StartupTimeout time.Duration
}

// DefaultPostgresConfig matches what the Postgres adapter tests expect.
func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		Image:          "postgres:17",
		Username:       "postgres",
		Password:       "postgres",
		Database:       "postgres",
		StartupTimeout: 60 * time.Second,
	}
}

// SetupPostgres starts a PostgreSQL container and returns a DSN ready
// for adapter.NewPostgresStore. Readiness waits for the second
// "ready to accept connections" log line, since the first appears
// during initdb before the restart.
func SetupPostgres(ctx context.Context, t *testing.T, config *PostgresConfig) (string, ContainerCleanup, error) {
	t.Helper()
	if config == nil {
		defaultConfig := DefaultPostgresConfig()
		config = &defaultConfig
	}

	req := testcontainers.ContainerRequest{
		Image:        config.Image,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":        config.Username,
			"POSTGRES_PASSWORD":    config.Password,
			"POSTGRES_DB":          config.Database,
			"POSTGRES_INITDB_ARGS": "--auth-host=scram-sha-256",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(config.StartupTimeout),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", func() {}, fmt.Errorf("starting postgres container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return "", func() {}, fmt.Errorf("resolving postgres host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		_ = container.Terminate(ctx)
		return "", func() {}, fmt.Errorf("resolving postgres port: %w", err)
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		config.Username, config.Password, host, port.Port(), config.Database)
	return dsn, createCleanupFunc(ctx, container, "PostgreSQL"), nil
}
