// Package engine composes the storage subsystem, the two queue disciplines,
// and the handle registry into one process-wide queue service.
//
// The engine initializes from configuration via New, creating every
// subsystem internally. Functional options override config-created
// defaults.
//
//	e, err := engine.New(&cfg)
//	h, err := e.Registry().Create(16, queue.FIFO)
//	defer e.Shutdown(ctx)
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tailored-agentic-units/spillq/entry"
	"github.com/tailored-agentic-units/spillq/fifo"
	"github.com/tailored-agentic-units/spillq/observability"
	"github.com/tailored-agentic-units/spillq/pqueue"
	"github.com/tailored-agentic-units/spillq/queue"
	"github.com/tailored-agentic-units/spillq/registry"
	"github.com/tailored-agentic-units/spillq/storage"
)

// Option configures an Engine after config-driven initialization and
// before its subsystems are created.
type Option func(*Engine)

// WithObserver overrides the observer named in the config.
func WithObserver(o observability.Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// Engine owns the storage manager and the registry of live stores.
type Engine struct {
	storage  *storage.Manager
	registry *registry.Registry
	observer observability.Observer

	mu     sync.Mutex
	closed bool
}

// New creates an Engine from configuration. The config is copied; later
// changes to cfg do not affect the engine.
func New(cfg *Config, opts ...Option) (*Engine, error) {
	observer, err := observability.GetObserver(cfg.Observer)
	if err != nil {
		return nil, fmt.Errorf("failed to create observer: %w", err)
	}

	e := &Engine{observer: observer}
	for _, opt := range opts {
		opt(e)
	}

	m, err := storage.New(&cfg.Storage, storage.WithObserver(e.observer))
	if err != nil {
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}
	e.storage = m

	priority := cfg.Priority
	fifoCfg := cfg.FIFO

	e.registry = registry.New(registry.WithObserver(e.observer))
	e.registry.Register(queue.Priority, func(size entry.SizeClass) (queue.Store, error) {
		return pqueue.New(m, size, &priority, pqueue.WithObserver(e.observer))
	})
	e.registry.Register(queue.FIFO, func(size entry.SizeClass) (queue.Store, error) {
		return fifo.New(m, size, &fifoCfg, fifo.WithObserver(e.observer))
	})

	return e, nil
}

// Storage returns the engine's storage manager.
func (e *Engine) Storage() *storage.Manager {
	return e.storage
}

// Registry returns the engine's handle registry.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Observer returns the observer every subsystem reports to.
func (e *Engine) Observer() observability.Observer {
	return e.observer
}

// Closed reports whether Shutdown has been called.
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Shutdown destroys every store still registered and then tears down the
// storage subsystem. Calling Shutdown again returns ErrNotInitialized.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrNotInitialized
	}
	e.closed = true
	e.mu.Unlock()

	return errors.Join(
		e.registry.DestroyAll(ctx),
		e.storage.Shutdown(),
	)
}
