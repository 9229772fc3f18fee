package lifecycle

import (
	"context"
	"errors"
	"testing"

	"go.railyard.dev/internal/common/secrets"
	"go.railyard.dev/internal/config"
)

func fixedConfig(cfg *config.Config) func() (*config.Config, error) {
	return func() (*config.Config, error) { return cfg, nil }
}

func TestInitialize_EmbeddedBus(t *testing.T) {
	cfg := &config.Config{
		Bus:     config.BusConfig{Embedded: true, DataDir: t.TempDir()},
		Secrets: secrets.DefaultConfig(),
	}

	app, cleanup, err := Initialize(context.Background(), AppOptions{
		NeedsBus:   true,
		LoadConfig: fixedConfig(cfg),
	})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer cleanup()

	if app.Bus == nil || !app.Bus.Connected() {
		t.Fatal("Expected a connected bus client")
	}
	if app.SQL != nil || app.Mongo != nil {
		t.Error("Expected no database when none was requested")
	}
	if err := app.Ping(context.Background()); err == nil {
		t.Error("Expected Ping to fail without a database")
	}
}

func TestInitialize_SigningKeyFromSecret(t *testing.T) {
	t.Setenv("RAILYARD_SECRET_JWT_KEY", "s3cret")

	cfg := &config.Config{
		Auth:    config.AuthConfig{Enabled: true, SigningKey: "literal", SigningKeySecret: "jwt-key"},
		Secrets: secrets.DefaultConfig(),
	}

	app, cleanup, err := Initialize(context.Background(), AppOptions{LoadConfig: fixedConfig(cfg)})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer cleanup()

	if string(app.SigningKey) != "s3cret" {
		t.Errorf("Expected key from secret, got %q", app.SigningKey)
	}
}

func TestInitialize_Failures(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.Config
		opts AppOptions
	}{
		{
			name: "auth without key",
			cfg:  &config.Config{Auth: config.AuthConfig{Enabled: true}},
		},
		{
			name: "missing secret",
			cfg: &config.Config{
				Auth: config.AuthConfig{Enabled: true, SigningKeySecret: "absent-key"},
			},
		},
		{
			name: "unknown driver",
			cfg:  &config.Config{Database: config.DatabaseConfig{Driver: "sqlite"}},
			opts: AppOptions{NeedsDatabase: true},
		},
		{
			name: "unknown secrets provider",
			cfg:  &config.Config{Secrets: secrets.Config{Provider: "keyring"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.LoadConfig = fixedConfig(tt.cfg)
			if _, _, err := Initialize(context.Background(), tt.opts); err == nil {
				t.Error("Expected Initialize to fail")
			}
		})
	}
}

func TestInitialize_ConfigError(t *testing.T) {
	boom := errors.New("bad file")
	_, _, err := Initialize(context.Background(), AppOptions{
		LoadConfig: func() (*config.Config, error) { return nil, boom },
	})
	if !errors.Is(err, boom) {
		t.Errorf("Expected wrapped config error, got %v", err)
	}
}

func TestCleanup_ReverseOrder(t *testing.T) {
	app := &App{}
	var order []int
	app.AddCleanup(func() error { order = append(order, 1); return nil })
	app.AddCleanup(func() error { order = append(order, 2); return errors.New("ignored") })

	app.Cleanup()
	app.Cleanup()

	if len(order) != 2 || order[0] != 2 || order[1] != 1 {
		t.Errorf("Expected [2 1] once, got %v", order)
	}
}
