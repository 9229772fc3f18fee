// Railyard catalog service
//
// Serves the product catalog over HTTP, persists to PostgreSQL or MongoDB
// and announces changes on NATS JetStream.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "go.railyard.dev/docs" // OpenAPI document

	"go.railyard.dev/internal/api"
	"go.railyard.dev/internal/catalog"
	"go.railyard.dev/internal/common/health"
	"go.railyard.dev/internal/common/lifecycle"
	"go.railyard.dev/internal/config"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	setupLogging()

	slog.Info("Starting Railyard",
		"version", version,
		"build_time", buildTime)

	if err := run(context.Background(), config.LoadWithFile); err != nil {
		slog.Error("Railyard failed", "error", err)
		os.Exit(1)
	}

	slog.Info("Railyard stopped")
}

// run owns every resource it acquires, so its deferred cleanup has finished
// by the time main decides the exit code.
func run(ctx context.Context, loadConfig func() (*config.Config, error)) error {
	// ========================================
	// 1. INFRASTRUCTURE INITIALIZATION
	// ========================================
	app, cleanup, err := lifecycle.Initialize(ctx, lifecycle.AppOptions{
		NeedsDatabase: true,
		NeedsBus:      true,
		Models:        []any{&catalog.Product{}},
		LoadConfig:    loadConfig,
	})
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer cleanup()

	// ========================================
	// 2. COMPONENT WIRING
	// ========================================
	stores, err := productStores(ctx, app)
	if err != nil {
		return err
	}
	catalogHandler := catalog.NewHandler(catalog.NewService(stores, app.Bus))

	healthChecker := health.NewChecker()
	healthChecker.AddReadinessCheck(health.DatabaseCheck(app.Config.Database.Driver, app.Ping))
	healthChecker.AddReadinessCheck(health.BusCheck(app.Bus.Connected))

	var protect func(http.Handler) http.Handler
	if app.Config.Auth.Enabled {
		protect = api.NewTokenService(app.SigningKey, app.Config.Auth.Issuer, 0).RequireBearer
	} else {
		slog.Warn("Authentication disabled; catalog writes are open")
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", app.Config.HTTP.Port),
		Handler:      setupHTTPRouter(app, healthChecker, catalogHandler, protect),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// ========================================
	// 3. SERVICES
	// ========================================
	auditService := lifecycle.NewServiceFunc("catalog-audit",
		func(ctx context.Context) error {
			return app.Bus.Consume(ctx, "catalog-audit", "catalog.>", catalog.AuditHandler(slog.Default()))
		},
		nil,
	).WithHealth(func() error {
		if !app.Bus.Connected() {
			return fmt.Errorf("bus disconnected")
		}
		return nil
	})
	httpService := lifecycle.NewHTTPService("catalog-api", httpServer)

	supervisor := lifecycle.NewSupervisor(auditService, httpService)
	healthChecker.AddReadinessCheck(supervisor.HealthCheck())

	slog.Info("Starting services", "port", app.Config.HTTP.Port, "driver", app.Config.Database.Driver)

	// ========================================
	// 4. RUN UNTIL SHUTDOWN
	// ========================================
	return lifecycle.Run(ctx, supervisor)
}

// setupLogging configures the slog default logger.
func setupLogging() {
	logLevel := slog.LevelInfo
	if os.Getenv("RAILYARD_DEV") == "true" {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

// productStores picks the product store for the connected database.
func productStores(ctx context.Context, app *lifecycle.App) (catalog.StoreFactory, error) {
	if app.SQL != nil {
		return catalog.SQLStores(app.SQL), nil
	}
	if err := catalog.EnsureIndexes(ctx, app.Mongo); err != nil {
		return nil, fmt.Errorf("failed to create product indexes: %w", err)
	}
	return catalog.DocumentStores(app.Mongo), nil
}

// setupHTTPRouter creates the HTTP router with all routes and middleware.
func setupHTTPRouter(
	app *lifecycle.App,
	healthChecker *health.Checker,
	catalogHandler *catalog.Handler,
	protect func(http.Handler) http.Handler,
) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(api.Metrics)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   app.Config.HTTP.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints
	r.Get("/q/health", healthChecker.HandleHealth)
	r.Get("/q/health/live", healthChecker.HandleLive)
	r.Get("/q/health/ready", healthChecker.HandleReady)

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/q/metrics", promhttp.Handler())

	catalogHandler.Routes(r, protect)

	return r
}
