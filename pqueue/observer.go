package pqueue

import "github.com/tailored-agentic-units/spillq/observability"

// Priority store event types.
const (
	EventSpill observability.EventType = "pqueue.spill"
	EventMerge observability.EventType = "pqueue.merge"
)
