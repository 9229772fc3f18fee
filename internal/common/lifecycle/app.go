package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"go.railyard.dev/internal/bus"
	"go.railyard.dev/internal/common/secrets"
	"go.railyard.dev/internal/config"
	"go.railyard.dev/internal/store/gormstore"
	"go.railyard.dev/internal/store/mongostore"
)

// App holds initialized infrastructure that is guaranteed to be connected.
// If you have an *App, the configured database (and the bus, when asked
// for) is reachable. Application logic does not belong here.
type App struct {
	Config  *config.Config
	Secrets secrets.Provider

	// Exactly one of SQL and Mongo is set when NeedsDatabase was requested.
	SQL   *gorm.DB
	Mongo *mongostore.Client

	Bus *bus.Client

	// SigningKey is the resolved HS256 key for bearer tokens.
	SigningKey []byte

	cleanupFuncs []func() error
}

// AppOptions configures which infrastructure to initialize.
type AppOptions struct {
	NeedsDatabase bool
	NeedsBus      bool

	// Models are auto-migrated when the driver is postgres.
	Models []any

	// LoadConfig overrides config.LoadWithFile.
	LoadConfig func() (*config.Config, error)
}

// Initialize creates an App with connected infrastructure.
// Returns an error if any required connection fails; whatever was already
// opened is closed before returning.
//
// Usage:
//
//	app, cleanup, err := lifecycle.Initialize(ctx, lifecycle.AppOptions{
//	    NeedsDatabase: true,
//	    NeedsBus:      true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cleanup()
func Initialize(ctx context.Context, opts AppOptions) (*App, func(), error) {
	app := &App{}

	load := opts.LoadConfig
	if load == nil {
		load = config.LoadWithFile
	}
	cfg, err := load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	app.Config = cfg

	provider, err := secrets.NewProvider(cfg.Secrets)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create secrets provider: %w", err)
	}
	app.Secrets = provider
	slog.Info("Secrets provider ready", "provider", provider.Name())

	if err := app.initAuth(ctx); err != nil {
		return nil, nil, err
	}

	if opts.NeedsDatabase {
		if err := app.initDatabase(ctx, opts.Models); err != nil {
			app.Cleanup()
			return nil, nil, err
		}
	}

	if opts.NeedsBus {
		if err := app.initBus(ctx); err != nil {
			app.Cleanup()
			return nil, nil, err
		}
	}

	return app, app.Cleanup, nil
}

// AddCleanup registers a cleanup function to be called on shutdown.
// Functions are called in reverse order of registration.
func (app *App) AddCleanup(fn func() error) {
	app.cleanupFuncs = append(app.cleanupFuncs, fn)
}

// Ping checks the configured database.
func (app *App) Ping(ctx context.Context) error {
	switch {
	case app.SQL != nil:
		return gormstore.Ping(ctx, app.SQL)
	case app.Mongo != nil:
		return app.Mongo.Ping(ctx)
	default:
		return errors.New("no database configured")
	}
}

func (app *App) initAuth(ctx context.Context) error {
	auth := app.Config.Auth
	if !auth.Enabled {
		return nil
	}
	key, err := secrets.Resolve(ctx, app.Secrets, auth.SigningKeySecret, auth.SigningKey)
	if err != nil {
		return fmt.Errorf("failed to resolve signing key: %w", err)
	}
	if key == "" {
		return errors.New("auth is enabled but no signing key is configured")
	}
	app.SigningKey = []byte(key)
	return nil
}

// initDatabase resolves the DSN and connects the configured driver.
func (app *App) initDatabase(ctx context.Context, models []any) error {
	db := app.Config.Database

	dsn, err := secrets.Resolve(ctx, app.Secrets, db.DSNSecret, db.DSN)
	if err != nil {
		return fmt.Errorf("failed to resolve database DSN: %w", err)
	}

	switch db.Driver {
	case config.DriverPostgres:
		conn, err := gormstore.Connect(ctx, dsn, int32(db.MaxConns))
		if err != nil {
			return err
		}
		app.SQL = conn
		app.AddCleanup(func() error {
			slog.Info("Closing PostgreSQL pool")
			return gormstore.Close(conn)
		})
		if len(models) > 0 {
			if err := gormstore.Migrate(ctx, conn, models...); err != nil {
				return err
			}
		}

	case config.DriverMongoDB:
		client, err := mongostore.Connect(ctx, dsn, db.Database, int32(db.MaxConns))
		if err != nil {
			return err
		}
		app.Mongo = client
		app.AddCleanup(func() error {
			slog.Info("Disconnecting from MongoDB")
			return client.Disconnect(context.Background())
		})

	default:
		return fmt.Errorf("unsupported database driver %q", db.Driver)
	}
	return nil
}

// initBus connects to NATS, starting an in-process server first when the
// bus is configured as embedded.
func (app *App) initBus(ctx context.Context) error {
	cfg := app.Config.Bus
	url := cfg.URL

	if cfg.Embedded {
		srv, err := bus.StartEmbedded(bus.EmbeddedConfig{DataDir: cfg.DataDir, Port: -1})
		if err != nil {
			return err
		}
		app.AddCleanup(srv.Close)
		url = srv.ClientURL()
	}

	client, err := bus.Connect(ctx, bus.Config{
		URL:        url,
		Stream:     cfg.Stream,
		RetryDelay: cfg.RetryDelay,
	})
	if err != nil {
		return err
	}
	app.Bus = client
	app.AddCleanup(func() error {
		slog.Info("Draining NATS connection")
		return client.Close()
	})
	return nil
}

// Cleanup runs all cleanup functions in reverse order.
func (app *App) Cleanup() {
	for i := len(app.cleanupFuncs) - 1; i >= 0; i-- {
		if err := app.cleanupFuncs[i](); err != nil {
			slog.Error("Cleanup error", "error", err)
		}
	}
	app.cleanupFuncs = nil
}
