package testing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// CouchDBConfig controls the CouchDB test container.
type CouchDBConfig struct {
	Image          string
	AdminUsername  string
	AdminPassword  string
	StartupTimeout time.Duration
}

// DefaultCouchDBConfig matches what the CouchDB adapter tests expect.
func DefaultCouchDBConfig() CouchDBConfig {
	return CouchDBConfig{
		Image:          "couchdb:3",
		AdminUsername:  "admin",
		AdminPassword:  "admin",
		StartupTimeout: 60 * time.Second,
	}
}

// SetupCouchDB starts a CouchDB container and returns a connection
// URL with embedded admin credentials, ready for adapter.NewCouchDBStore.
// The wait strategy polls /_up, which only answers once single-node
// setup has finished.
func SetupCouchDB(ctx context.Context, t *testing.T, config *CouchDBConfig) (string, ContainerCleanup, error) {
	t.Helper()
	if config == nil {
		defaultConfig := DefaultCouchDBConfig()
		config = &defaultConfig
	}

	req := testcontainers.ContainerRequest{
		Image:        config.Image,
		ExposedPorts: []string{"5984/tcp"},
		Env: map[string]string{
			"COUCHDB_USER":     config.AdminUsername,
			"COUCHDB_PASSWORD": config.AdminPassword,
		},
		WaitingFor: wait.ForHTTP("/_up").
			WithPort("5984/tcp").
			WithStartupTimeout(config.StartupTimeout),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", func() {}, fmt.Errorf("starting couchdb container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return "", func() {}, fmt.Errorf("resolving couchdb host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5984")
	if err != nil {
		_ = container.Terminate(ctx)
		return "", func() {}, fmt.Errorf("resolving couchdb port: %w", err)
	}

	url := fmt.Sprintf("http://%s:%s@%s:%s", config.AdminUsername, config.AdminPassword, host, port.Port())
	return url, createCleanupFunc(ctx, container, "CouchDB"), nil
}
