package engine

import "github.com/tailored-agentic-units/blobstore/observability"

// Engine event types.
const (
	EventGetHit      observability.EventType = "engine.get.hit"
	EventGetPromote  observability.EventType = "engine.get.promote"
	EventGetMiss     observability.EventType = "engine.get.miss"
	EventPutSaved    observability.EventType = "engine.put.saved"
	EventPutConflict observability.EventType = "engine.put.conflict"
	EventError       observability.EventType = "engine.error"
)
