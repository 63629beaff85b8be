package observability

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"time"
)

// SlogObserver writes each event as one log record stamped with the event's
// own timestamp. The message is the event type; the source and the Data
// entries, in key order, become attributes.
type SlogObserver struct {
	logger *slog.Logger
}

func NewSlogObserver(logger *slog.Logger) *SlogObserver {
	return &SlogObserver{logger: logger}
}

func (o *SlogObserver) OnEvent(ctx context.Context, event Event) {
	level := event.Level.SlogLevel()
	handler := o.logger.Handler()
	if !handler.Enabled(ctx, level) {
		return
	}

	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	record := slog.NewRecord(ts, level, string(event.Type), 0)
	record.AddAttrs(slog.String("source", event.Source))
	for _, k := range slices.Sorted(maps.Keys(event.Data)) {
		record.AddAttrs(slog.Any(k, event.Data[k]))
	}

	_ = handler.Handle(ctx, record)
}
