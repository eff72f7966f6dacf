package observability

import "context"

// NoOpObserver discards all events. It is the default for every subsystem.
type NoOpObserver struct{}

func (NoOpObserver) OnEvent(context.Context, Event) {}
