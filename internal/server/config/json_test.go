package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"http_addr":        "www.example:8080",
		"grpc_addr":        "www.example:9000",
		"database_dsn":     "file:auth.db",
		"secret_key":       "my_secret_key",
		"access_token_ttl": "90m",
		"password_hasher":  "bcrypt",
		"startup_attempts": 3,
		"startup_delay":    "500ms",
		"store_timeout":    2000000000,
		"max_open_conns":   4,
	})

	t.Run("loads from json", func(t *testing.T) {
		cfg := &Config{}
		require.NoError(t, parseJson(cfg, []string{"-config", pathFlag}))

		assert.Equal(t, "www.example:8080", cfg.HTTPAddr)
		assert.Equal(t, "www.example:9000", cfg.GRPCAddr)
		assert.Equal(t, "file:auth.db", cfg.DatabaseDSN)
		assert.Equal(t, "my_secret_key", cfg.SecretKey)
		assert.Equal(t, 90*time.Minute, cfg.AccessTokenTTL)
		assert.Equal(t, "bcrypt", cfg.PasswordHasher)
		assert.Equal(t, 3, cfg.StartupAttempts)
		assert.Equal(t, 500*time.Millisecond, cfg.StartupDelay)
		assert.Equal(t, 2*time.Second, cfg.StoreTimeout)
		assert.Equal(t, 4, cfg.MaxOpenConns)
	})

	t.Run("short flag", func(t *testing.T) {
		cfg := &Config{}
		require.NoError(t, parseJson(cfg, []string{"-c", pathFlag}))
		assert.Equal(t, "my_secret_key", cfg.SecretKey)
	})

	t.Run("no config flag → no changes", func(t *testing.T) {
		cfg := &Config{}
		cfg.LoadDefaults()
		want := *cfg

		require.NoError(t, parseJson(cfg, []string{"-a", ":1"}))
		assert.Equal(t, want, *cfg)
	})

	t.Run("partial file keeps other values", func(t *testing.T) {
		partial := writeTempJSON(t, dir, "partial.json", map[string]any{"secret_key": "only"})

		cfg := &Config{}
		cfg.LoadDefaults()
		require.NoError(t, parseJson(cfg, []string{"-c", partial}))

		assert.Equal(t, "only", cfg.SecretKey)
		assert.Equal(t, ":8000", cfg.HTTPAddr)
		assert.Equal(t, 60*time.Minute, cfg.AccessTokenTTL)
	})

	t.Run("invalid JSON → error", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		cfg := &Config{}
		require.Error(t, parseJson(cfg, []string{"-config", bad}))
	})
}
