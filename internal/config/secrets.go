package config

import (
	"fmt"
	"os"
	"regexp"
)

var secretPattern = regexp.MustCompile(`\$\{(ENV|VAULT|AWS_SM):([^}]+)\}`)

func (c *Config) resolveSecrets() error {
	var err error
	c.Publish.Postgres.DSN, err = ResolveValue(c.Publish.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("publish.postgres.dsn: %w", err)
	}
	c.Publish.MongoDB.ConnectionString, err = ResolveValue(c.Publish.MongoDB.ConnectionString)
	if err != nil {
		return fmt.Errorf("publish.mongodb.connection_string: %w", err)
	}
	return nil
}

// ResolveValue replaces every ${PROVIDER:ref} reference in val with the
// secret it names. Values without references are returned unchanged.
func ResolveValue(val string) (string, error) {
	var firstErr error
	out := secretPattern.ReplaceAllStringFunc(val, func(m string) string {
		if firstErr != nil {
			return m
		}
		parts := secretPattern.FindStringSubmatch(m)
		v, err := resolveRef(parts[1], parts[2])
		if err != nil {
			firstErr = err
			return m
		}
		return v
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

func resolveRef(provider, ref string) (string, error) {
	switch provider {
	case "ENV":
		v := os.Getenv(ref)
		if v == "" {
			return "", fmt.Errorf("environment variable %s not set", ref)
		}
		return v, nil
	case "VAULT":
		return resolveVault(ref)
	case "AWS_SM":
		return resolveAWSSecretsManager(ref)
	default:
		return "", fmt.Errorf("unknown secrets provider: %s", provider)
	}
}
