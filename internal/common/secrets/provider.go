// Package secrets resolves secret values (database DSNs, signing keys) from
// the environment or HashiCorp Vault.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Common errors
var (
	ErrSecretNotFound = errors.New("secret not found")
	ErrProviderError  = errors.New("provider error")
)

// Provider defines the interface for secret storage backends
type Provider interface {
	// Get retrieves a secret by key
	Get(ctx context.Context, key string) (string, error)

	// Name returns the provider name for logging
	Name() string
}

// ProviderType represents the type of secret provider
type ProviderType string

const (
	ProviderTypeEnv   ProviderType = "env"
	ProviderTypeVault ProviderType = "vault"
)

// EnvPrefix is prepended to keys by the environment provider.
const EnvPrefix = "RAILYARD_SECRET_"

// Config holds configuration for the secrets provider
type Config struct {
	Provider ProviderType `toml:"provider"`

	// HashiCorp Vault settings
	VaultAddr      string `toml:"vault_addr"`
	VaultToken     string `toml:"vault_token"`
	VaultMount     string `toml:"vault_mount"`
	VaultPath      string `toml:"vault_path"`
	VaultNamespace string `toml:"vault_namespace"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		Provider:   ProviderTypeEnv,
		VaultMount: "secret",
		VaultPath:  "railyard",
	}
}

// LoadConfigFromEnv loads configuration from environment variables
func LoadConfigFromEnv() Config {
	cfg := DefaultConfig()

	if p := os.Getenv("RAILYARD_SECRETS_PROVIDER"); p != "" {
		cfg.Provider = ProviderType(strings.ToLower(p))
	}
	cfg.VaultAddr = firstEnv("RAILYARD_SECRETS_VAULT_ADDR", "VAULT_ADDR")
	cfg.VaultToken = firstEnv("RAILYARD_SECRETS_VAULT_TOKEN", "VAULT_TOKEN")
	cfg.VaultNamespace = firstEnv("RAILYARD_SECRETS_VAULT_NAMESPACE", "VAULT_NAMESPACE")
	if m := os.Getenv("RAILYARD_SECRETS_VAULT_MOUNT"); m != "" {
		cfg.VaultMount = m
	}
	if p := os.Getenv("RAILYARD_SECRETS_VAULT_PATH"); p != "" {
		cfg.VaultPath = p
	}

	return cfg
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// NewProvider creates a new secret provider based on configuration
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case ProviderTypeVault:
		return NewVaultProvider(cfg)
	case ProviderTypeEnv, "":
		return NewEnvProvider(EnvPrefix), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Provider)
	}
}

// Resolve returns the secret named key, or fallback when key is empty.
// Config fields come in pairs (a literal value and the name of a secret
// holding it); this picks between them.
func Resolve(ctx context.Context, p Provider, key, fallback string) (string, error) {
	if key == "" {
		return fallback, nil
	}
	v, err := p.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("resolve secret %q from %s: %w", key, p.Name(), err)
	}
	return v, nil
}

// EnvProvider reads secrets from environment variables
type EnvProvider struct {
	prefix string
}

// NewEnvProvider creates a new environment variable provider
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{prefix: prefix}
}

// Get reads prefix + KEY, with dashes and dots turned into underscores.
func (p *EnvProvider) Get(ctx context.Context, key string) (string, error) {
	envKey := p.prefix + strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(key))
	value := os.Getenv(envKey)
	if value == "" {
		return "", ErrSecretNotFound
	}
	return value, nil
}

// Name returns the provider name
func (p *EnvProvider) Name() string {
	return "env"
}
