package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tailored-agentic-units/blobstore/auth"
	"github.com/tailored-agentic-units/blobstore/engine"
	"github.com/tailored-agentic-units/blobstore/memory"
)

const (
	defaultAddr     = ":3000"
	defaultLogLevel = "info"
)

// Config holds initialization parameters for the server and every subsystem
// behind it.
type Config struct {
	Addr     string        `json:"addr,omitempty"`
	LogLevel string        `json:"log_level,omitempty"`
	Auth     auth.Config   `json:"auth"`
	Engine   engine.Config `json:"engine"`
}

func DefaultConfig() Config {
	return Config{
		Addr:     defaultAddr,
		LogLevel: defaultLogLevel,
		Engine:   engine.DefaultConfig(),
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	c.Auth.Merge(&source.Auth)
	c.Engine.Merge(&source.Engine)

	if source.Addr != "" {
		c.Addr = source.Addr
	}
	if source.LogLevel != "" {
		c.LogLevel = source.LogLevel
	}
}

// LoadConfig reads a JSON config file, merges it with defaults, and returns
// the resulting Config.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}

// ApplyEnv overrides c with the environment variables that are set. getenv
// is usually os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	var env Config

	if port := getenv("PORT"); port != "" {
		if _, err := strconv.ParseUint(port, 10, 16); err != nil {
			return fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		env.Addr = ":" + port
	}
	env.LogLevel = getenv("LOG_LEVEL")
	env.Engine.Store.Path = getenv("CACHE_DIR")
	env.Auth.ReadToken = getenv("API_KEY_READ_TOKEN")
	env.Auth.WriteToken = getenv("API_KEY_WRITE_TOKEN")
	if v := getenv("ALLOW_ANONYMOUS_WRITES"); v != "" {
		allow, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid ALLOW_ANONYMOUS_WRITES %q: %w", v, err)
		}
		env.Auth.AllowAnonymousWrites = allow
	}

	if v := getenv("CACHE_MAX_ENTRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid CACHE_MAX_ENTRIES %q", v)
		}
		env.Engine.Memory.MaxEntries = n
	}
	if v := getenv("CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid CACHE_TTL %q: %w", v, err)
		}
		env.Engine.Memory.TTL = memory.Duration(d)
	}
	if v := getenv("MAX_PAYLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid MAX_PAYLOAD_BYTES %q", v)
		}
		env.Engine.MaxPayloadBytes = n
	}

	c.Merge(&env)
	return nil
}

// ParseLevel converts a level name (debug, info, warn, error) to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", name, err)
	}
	return level, nil
}
