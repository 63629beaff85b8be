package observability

import (
	"context"
	"maps"
	"sync"
	"time"
)

// Stats counts events by type.
type Stats struct {
	mu        sync.Mutex
	counts    map[EventType]uint64
	startTime time.Time
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	UptimeSeconds float64              `json:"uptime_seconds"`
	Events        map[EventType]uint64 `json:"events"`
}

func NewStats() *Stats {
	return &Stats{
		counts:    make(map[EventType]uint64),
		startTime: time.Now(),
	}
}

func (s *Stats) OnEvent(_ context.Context, event Event) {
	s.mu.Lock()
	s.counts[event.Type]++
	s.mu.Unlock()
}

// Count returns how many events of type t were observed.
func (s *Stats) Count(t EventType) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[t]
}

func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		UptimeSeconds: time.Since(s.startTime).Seconds(),
		Events:        maps.Clone(s.counts),
	}
}
