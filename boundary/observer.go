package boundary

import "github.com/tailored-agentic-units/spillq/observability"

// Boundary event types.
const (
	EventServeStart    observability.EventType = "boundary.serve.start"
	EventServeStop     observability.EventType = "boundary.serve.stop"
	EventRequestFailed observability.EventType = "boundary.request.failed"
)
