package bus

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// EmbeddedConfig holds configuration for the embedded NATS server
type EmbeddedConfig struct {
	// DataDir is the directory for JetStream data persistence
	DataDir string

	// Host is the bind address (default: 127.0.0.1)
	Host string

	// Port is the server port; -1 picks a free one
	Port int
}

// EmbeddedServer is an in-process NATS server with JetStream, used in dev
// mode and tests.
type EmbeddedServer struct {
	server *server.Server
}

// StartEmbedded starts an embedded server and waits until it accepts
// connections.
func StartEmbedded(cfg EmbeddedConfig) (*EmbeddedServer, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./data/nats"
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	ns, err := server.NewServer(&server.Options{
		Host:      cfg.Host,
		Port:      cfg.Port,
		JetStream: true,
		StoreDir:  cfg.DataDir,
		NoLog:     true,
		NoSigs:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS server failed to start within timeout")
	}

	slog.Info("Embedded NATS server started", "url", ns.ClientURL(), "dataDir", cfg.DataDir)
	return &EmbeddedServer{server: ns}, nil
}

// ClientURL returns the URL clients connect to.
func (e *EmbeddedServer) ClientURL() string {
	return e.server.ClientURL()
}

// Close shuts down the embedded server
func (e *EmbeddedServer) Close() error {
	e.server.Shutdown()
	e.server.WaitForShutdown()
	slog.Info("Embedded NATS server shut down")
	return nil
}
