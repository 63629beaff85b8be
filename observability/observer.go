// Package observability carries events out of the storage engine. Events are
// plain values handed to an Observer; SlogObserver writes them as log lines
// and Stats tallies them for the stats endpoint.
package observability

import (
	"context"
	"log/slog"
	"time"
)

// Level is an event severity.
type Level int

const (
	LevelVerbose Level = iota + 1
	LevelInfo
	LevelWarning
	LevelError
)

// String returns the upper-case level name.
func (l Level) String() string {
	switch l {
	case LevelVerbose:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// SlogLevel maps l to the slog level used when logging it.
func (l Level) SlogLevel() slog.Level {
	switch {
	case l <= LevelVerbose:
		return slog.LevelDebug
	case l == LevelInfo:
		return slog.LevelInfo
	case l == LevelWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// EventType names an event, e.g. "engine.get.hit".
type EventType string

// Event is a single occurrence reported by a subsystem. Data carries
// event-specific attributes such as the record key or payload size.
type Event struct {
	Type      EventType
	Level     Level
	Timestamp time.Time
	Source    string
	Data      map[string]any
}

// Observer receives events. Implementations must be safe for concurrent use
// and must not block the caller.
type Observer interface {
	OnEvent(ctx context.Context, event Event)
}
