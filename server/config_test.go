package server_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/blobstore/server"
)

func TestDefaultConfig(t *testing.T) {
	cfg := server.DefaultConfig()

	assert.Equal(t, ":3000", cfg.Addr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 500, cfg.Engine.Memory.MaxEntries)
	assert.Equal(t, 24*time.Hour, time.Duration(cfg.Engine.Memory.TTL))
	assert.Equal(t, int64(64<<20), cfg.Engine.MaxPayloadBytes)
	assert.Empty(t, cfg.Auth.ReadToken)
	assert.Empty(t, cfg.Auth.WriteToken)
	assert.False(t, cfg.Auth.AllowAnonymousWrites)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{
		"addr": ":8080",
		"auth": {"write_token": "writer"},
		"engine": {
			"memory": {"ttl": "1h"},
			"store": {"path": "/var/lib/blobstore"}
		}
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := server.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "writer", cfg.Auth.WriteToken)
	assert.Equal(t, time.Hour, time.Duration(cfg.Engine.Memory.TTL))
	assert.Equal(t, 500, cfg.Engine.Memory.MaxEntries)
	assert.Equal(t, "/var/lib/blobstore", cfg.Engine.Store.Path)
}

func TestLoadConfig_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := server.LoadConfig(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"engine": {"memory": {"ttl": 5}}}`), 0o600))
	_, err = server.LoadConfig(bad)
	assert.Error(t, err)
}

func env(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestConfig_ApplyEnv(t *testing.T) {
	cfg := server.DefaultConfig()

	err := cfg.ApplyEnv(env(map[string]string{
		"PORT":                   "4000",
		"LOG_LEVEL":              "debug",
		"CACHE_DIR":              "/data",
		"API_KEY_READ_TOKEN":     "reader",
		"API_KEY_WRITE_TOKEN":    "writer",
		"CACHE_MAX_ENTRIES":      "50",
		"CACHE_TTL":              "10m",
		"MAX_PAYLOAD_BYTES":      "1024",
		"ALLOW_ANONYMOUS_WRITES": "true",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":4000", cfg.Addr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/data", cfg.Engine.Store.Path)
	assert.Equal(t, "reader", cfg.Auth.ReadToken)
	assert.Equal(t, "writer", cfg.Auth.WriteToken)
	assert.Equal(t, 50, cfg.Engine.Memory.MaxEntries)
	assert.Equal(t, 10*time.Minute, time.Duration(cfg.Engine.Memory.TTL))
	assert.Equal(t, int64(1024), cfg.Engine.MaxPayloadBytes)
	assert.True(t, cfg.Auth.AllowAnonymousWrites)
}

func TestConfig_ApplyEnv_Unset(t *testing.T) {
	cfg := server.DefaultConfig()
	require.NoError(t, cfg.ApplyEnv(env(nil)))
	assert.Equal(t, server.DefaultConfig(), cfg)
}

func TestConfig_ApplyEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "port", key: "PORT", val: "http"},
		{name: "port out of range", key: "PORT", val: "70000"},
		{name: "max entries", key: "CACHE_MAX_ENTRIES", val: "-1"},
		{name: "ttl", key: "CACHE_TTL", val: "forever"},
		{name: "payload", key: "MAX_PAYLOAD_BYTES", val: "lots"},
		{name: "anonymous writes", key: "ALLOW_ANONYMOUS_WRITES", val: "sometimes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := server.DefaultConfig()
			assert.Error(t, cfg.ApplyEnv(env(map[string]string{tt.key: tt.val})))
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    slog.Level
		wantErr bool
	}{
		{name: "debug", want: slog.LevelDebug},
		{name: "INFO", want: slog.LevelInfo},
		{name: "warn", want: slog.LevelWarn},
		{name: "error", want: slog.LevelError},
		{name: "chatty", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := server.ParseLevel(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
