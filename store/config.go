package store

import (
	"os"
	"path/filepath"
)

// Config holds durable store initialization parameters.
type Config struct {
	Path string `json:"path,omitempty"` // Root directory holding one file per record.
}

// DefaultConfig returns a store rooted at $TMPDIR/blobstore.
func DefaultConfig() Config {
	return Config{
		Path: filepath.Join(os.TempDir(), "blobstore"),
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Path != "" {
		c.Path = source.Path
	}
}
