// Package testutil starts throwaway database containers for integration
// tests.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Container wraps a running database container and its connection string.
type Container struct {
	Container testcontainers.Container
	DSN       string
}

// StartPostgres starts a PostgreSQL container and returns a DSN for it.
func StartPostgres(ctx context.Context, t *testing.T) (*Container, error) {
	t.Helper()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "railyard",
				"POSTGRES_PASSWORD": "railyard",
				"POSTGRES_DB":       "railyard",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres: %w", err)
	}

	endpoint, err := c.PortEndpoint(ctx, "5432/tcp", "")
	if err != nil {
		c.Terminate(ctx)
		return nil, fmt.Errorf("failed to get endpoint: %w", err)
	}

	return &Container{
		Container: c,
		DSN:       fmt.Sprintf("postgres://railyard:railyard@%s/railyard?sslmode=disable", endpoint),
	}, nil
}

// StartMongo starts a single-node MongoDB replica set, which transactions
// require, and returns a connection URI.
func StartMongo(ctx context.Context, t *testing.T) (*Container, error) {
	t.Helper()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			Cmd:          []string{"--replSet", "rs0", "--bind_ip_all"},
			WaitingFor:   wait.ForLog("Waiting for connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start mongo: %w", err)
	}

	code, _, err := c.Exec(ctx, []string{"mongosh", "--quiet", "--eval",
		`rs.initiate({_id: "rs0", members: [{_id: 0, host: "localhost:27017"}]})`})
	if err != nil || code != 0 {
		c.Terminate(ctx)
		return nil, fmt.Errorf("failed to initiate replica set (exit %d): %v", code, err)
	}

	endpoint, err := c.PortEndpoint(ctx, "27017/tcp", "")
	if err != nil {
		c.Terminate(ctx)
		return nil, fmt.Errorf("failed to get endpoint: %w", err)
	}

	return &Container{
		Container: c,
		DSN:       fmt.Sprintf("mongodb://%s/?directConnection=true", endpoint),
	}, nil
}

// Terminate stops and removes the container
func (c *Container) Terminate(ctx context.Context) error {
	if c.Container != nil {
		return c.Container.Terminate(ctx)
	}
	return nil
}
