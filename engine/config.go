package engine

import (
	"github.com/tailored-agentic-units/blobstore/memory"
	"github.com/tailored-agentic-units/blobstore/store"
)

const defaultMaxPayloadBytes = 64 << 20

// Config holds initialization parameters for both tiers.
type Config struct {
	Memory          memory.Config `json:"memory"`
	Store           store.Config  `json:"store"`
	MaxPayloadBytes int64         `json:"max_payload_bytes,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Memory:          memory.DefaultConfig(),
		Store:           store.DefaultConfig(),
		MaxPayloadBytes: defaultMaxPayloadBytes,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	c.Memory.Merge(&source.Memory)
	c.Store.Merge(&source.Store)

	if source.MaxPayloadBytes > 0 {
		c.MaxPayloadBytes = source.MaxPayloadBytes
	}
}
