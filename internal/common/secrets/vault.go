package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	vault "github.com/hashicorp/vault/api"
)

// VaultProvider reads secrets from a KV v2 mount. Each secret lives at
// <path>/<key> and stores its value under the "value" field.
type VaultProvider struct {
	kv   *vault.KVv2
	path string
}

// NewVaultProvider creates a new HashiCorp Vault provider
func NewVaultProvider(cfg Config) (*VaultProvider, error) {
	if cfg.VaultAddr == "" {
		return nil, fmt.Errorf("%w: vault address is required", ErrProviderError)
	}

	vaultCfg := vault.DefaultConfig()
	vaultCfg.Address = cfg.VaultAddr
	vaultCfg.MaxRetries = 1

	client, err := vault.NewClient(vaultCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if cfg.VaultToken != "" {
		client.SetToken(cfg.VaultToken)
	}
	if cfg.VaultNamespace != "" {
		client.SetNamespace(cfg.VaultNamespace)
	}

	mount := strings.Trim(cfg.VaultMount, "/")
	if mount == "" {
		mount = "secret"
	}

	return &VaultProvider{
		kv:   client.KVv2(mount),
		path: strings.Trim(cfg.VaultPath, "/"),
	}, nil
}

// Get retrieves a secret from Vault
func (p *VaultProvider) Get(ctx context.Context, key string) (string, error) {
	secret, err := p.kv.Get(ctx, p.secretPath(key))
	if err != nil {
		if errors.Is(err, vault.ErrSecretNotFound) {
			return "", ErrSecretNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrProviderError, err)
	}
	if secret == nil || secret.Data == nil {
		return "", ErrSecretNotFound
	}

	if value, ok := secret.Data["value"].(string); ok {
		return value, nil
	}
	return "", ErrSecretNotFound
}

// Name returns the provider name
func (p *VaultProvider) Name() string {
	return "vault"
}

func (p *VaultProvider) secretPath(key string) string {
	if p.path == "" {
		return key
	}
	return p.path + "/" + key
}
