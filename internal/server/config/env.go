package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Environment variables read by parseEnv.
const (
	EnvDatabaseURL     = "DATABASE_URL"
	EnvDatabaseURLAuth = "DATABASE_URL_AUTH"
	EnvSecretKey       = "AUTH_SECRET_KEY"
	EnvHTTPAddr        = "HTTP_ADDR"
	EnvGRPCAddr        = "GRPC_ADDR"
	EnvAccessTokenTTL  = "ACCESS_TOKEN_TTL"
	EnvPasswordHasher  = "PASSWORD_HASHER"
	EnvLogLevel        = "LOG_LEVEL"
)

// parseEnv overlays config with non-empty environment variables.
// DATABASE_URL takes precedence over DATABASE_URL_AUTH.
func parseEnv(config *Config, lookup func(string) (string, bool)) error {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	if v := get(EnvDatabaseURL); v != "" {
		config.DatabaseDSN = v
	} else if v := get(EnvDatabaseURLAuth); v != "" {
		config.DatabaseDSN = v
	}

	setString(&config.SecretKey, get(EnvSecretKey))
	setString(&config.HTTPAddr, get(EnvHTTPAddr))
	setString(&config.GRPCAddr, get(EnvGRPCAddr))
	setString(&config.PasswordHasher, get(EnvPasswordHasher))
	setString(&config.LogLevel, get(EnvLogLevel))

	if v := get(EnvAccessTokenTTL); v != "" {
		ttl, err := parseMinutes(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvAccessTokenTTL, err)
		}
		config.AccessTokenTTL = ttl
	}

	return nil
}

// parseMinutes accepts either a bare integer (minutes) or a Go duration string.
func parseMinutes(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Minute, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return d, nil
}
