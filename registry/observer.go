package registry

import "github.com/tailored-agentic-units/spillq/observability"

// Registry event types.
const (
	EventCreate  observability.EventType = "registry.create"
	EventDestroy observability.EventType = "registry.destroy"
)
