package fifo

import "github.com/tailored-agentic-units/spillq/observability"

// FIFO store event types.
const (
	EventSpill observability.EventType = "fifo.spill"
)
