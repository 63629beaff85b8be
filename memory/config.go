package memory

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	defaultMaxEntries = 500
	defaultTTL        = 24 * time.Hour
)

// Duration is a time.Duration that encodes to JSON as a Go duration string
// such as "90s" or "24h".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Config holds memory tier bounds.
type Config struct {
	MaxEntries int      `json:"max_entries,omitempty"` // Capacity before LRU eviction.
	TTL        Duration `json:"ttl,omitempty"`         // Age after which an entry is invisible.
}

// DefaultConfig returns 500 entries with a 24 hour time-to-live.
func DefaultConfig() Config {
	return Config{
		MaxEntries: defaultMaxEntries,
		TTL:        Duration(defaultTTL),
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.MaxEntries > 0 {
		c.MaxEntries = source.MaxEntries
	}
	if source.TTL > 0 {
		c.TTL = source.TTL
	}
}
