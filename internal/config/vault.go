package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/hashicorp/vault/api"
)

var (
	vaultMu     sync.Mutex
	vaultClient *api.Client
	vaultAddr   string
)

// vault returns a client for VAULT_ADDR, reusing it while the address and
// token stay the same. DSN and connection string references in one config
// usually point at the same server.
func vault() (*api.Client, error) {
	addr, token := os.Getenv("VAULT_ADDR"), os.Getenv("VAULT_TOKEN")
	if addr == "" || token == "" {
		return nil, fmt.Errorf("VAULT_ADDR and VAULT_TOKEN must be set")
	}

	vaultMu.Lock()
	defer vaultMu.Unlock()
	if vaultClient != nil && vaultAddr == addr && vaultClient.Token() == token {
		return vaultClient, nil
	}

	cfg := api.DefaultConfig()
	cfg.Address = addr
	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating Vault client: %w", err)
	}
	client.SetToken(token)
	if ns := os.Getenv("VAULT_NAMESPACE"); ns != "" {
		client.SetNamespace(ns)
	}
	vaultClient, vaultAddr = client, addr
	return client, nil
}

// resolveVault reads one field of a KV secret. Reference format:
// mount/data/path#field. Both KV v1 and v2 layouts are accepted.
func resolveVault(ref string) (string, error) {
	path, field, ok := strings.Cut(ref, "#")
	if !ok || path == "" || field == "" {
		return "", fmt.Errorf("invalid Vault reference %q: expected path#field", ref)
	}

	client, err := vault()
	if err != nil {
		return "", fmt.Errorf("resolving %q: %w", ref, err)
	}
	secret, err := client.Logical().Read(path)
	if err != nil {
		return "", fmt.Errorf("reading Vault secret at %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("no secret found at %s", path)
	}

	data := secret.Data
	if inner, ok := data["data"].(map[string]interface{}); ok {
		data = inner
	}
	return secretField(data, field, "Vault secret at "+path)
}

// secretField extracts a scalar field from a decoded secret document.
func secretField(data map[string]interface{}, field, where string) (string, error) {
	switch v := data[field].(type) {
	case string:
		return v, nil
	case float64, bool:
		return fmt.Sprint(v), nil
	case nil:
		return "", fmt.Errorf("%s has no field %q", where, field)
	default:
		return "", fmt.Errorf("%s field %q is not a scalar", where, field)
	}
}
