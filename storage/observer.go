package storage

import "github.com/tailored-agentic-units/spillq/observability"

// Storage event types.
const (
	EventInit      observability.EventType = "storage.init"
	EventShutdown  observability.EventType = "storage.shutdown"
	EventTempDir   observability.EventType = "storage.tempdir"
	EventExhausted observability.EventType = "storage.exhausted"
)
