package observability

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// ErrUnknownObserver is returned by GetObserver for an unregistered name.
var ErrUnknownObserver = errors.New("unknown observer")

var (
	mutex     sync.RWMutex
	observers = map[string]Observer{
		"noop": NoOpObserver{},
		"slog": NewSlogObserver(nil),
		"span": SpanObserver{},
		"stderr": NewSlogObserver(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))),
	}
)

// GetObserver looks up a named observer. Built in: "noop", "slog" (the
// default logger), "span" (events on the active trace span) and "stderr"
// (debug-level text). The empty name selects "noop".
func GetObserver(name string) (Observer, error) {
	if name == "" {
		name = "noop"
	}

	mutex.RLock()
	defer mutex.RUnlock()

	obs, ok := observers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownObserver, name)
	}
	return obs, nil
}

// RegisterObserver adds or replaces a named observer.
func RegisterObserver(name string, observer Observer) {
	mutex.Lock()
	defer mutex.Unlock()

	observers[name] = observer
}
