package observability

import "context"

// MultiObserver delivers each event to every member in order.
type MultiObserver struct {
	observers []Observer
}

// NewMultiObserver combines observers. Nil members are dropped and nested
// MultiObservers are flattened. With no members left it returns a
// NoOpObserver; with one it returns that observer unwrapped.
func NewMultiObserver(observers ...Observer) Observer {
	var flat []Observer
	for _, obs := range observers {
		switch o := obs.(type) {
		case nil:
		case *MultiObserver:
			flat = append(flat, o.observers...)
		case NoOpObserver:
		default:
			flat = append(flat, o)
		}
	}

	switch len(flat) {
	case 0:
		return NoOpObserver{}
	case 1:
		return flat[0]
	default:
		return &MultiObserver{observers: flat}
	}
}

func (m *MultiObserver) OnEvent(ctx context.Context, event Event) {
	for _, obs := range m.observers {
		obs.OnEvent(ctx, event)
	}
}
