// Package storage is the block-spilling capability the queues are built on.
// A Manager owns the process-wide memory budget that bounds resident
// buffers, the temp directory that receives spilled extents, and the running
// count of bytes held on secondary storage.
//
//	m, err := storage.New(&cfg)
//	grant, err := m.ReserveUpTo(1<<20, 4096)
//	ext, err := m.CreateExtent("pq")
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/tailored-agentic-units/spillq/observability"
)

// Option configures a Manager after config-driven initialization.
type Option func(*Manager)

// WithObserver overrides the default NoOpObserver.
func WithObserver(o observability.Observer) Option {
	return func(m *Manager) { m.observer = o }
}

// Manager is the shared storage subsystem. All methods are safe for
// concurrent use.
type Manager struct {
	mu       sync.Mutex
	budget   uint64
	reserved uint64
	dir      string
	created  []string
	extents  map[*Extent]struct{}
	closed   bool
	spilled  atomic.Int64
	observer observability.Observer
}

// New initializes the storage subsystem from configuration. The spill
// directory is created when it does not exist.
func New(cfg *Config, opts ...Option) (*Manager, error) {
	m := &Manager{
		budget:   cfg.MemoryBudget,
		extents:  make(map[*Extent]struct{}),
		observer: observability.NoOpObserver{},
	}

	for _, opt := range opts {
		opt(m)
	}
	if m.observer == nil {
		m.observer = observability.NoOpObserver{}
	}

	if err := m.SetTempDir(cfg.TempDir, cfg.TempSubdir); err != nil {
		return nil, err
	}

	m.emit(EventInit, observability.LevelInfo, map[string]any{
		"memory_budget": m.budget,
		"temp_dir":      m.dir,
	})

	return m, nil
}

// SetTempDir changes the directory that receives new extents to dir/subdir,
// creating subdir when necessary. An empty dir selects os.TempDir. Extents
// that already exist stay where they are.
func (m *Manager) SetTempDir(dir, subdir string) error {
	if dir == "" {
		dir = os.TempDir()
	}
	path := dir
	if subdir != "" {
		path = filepath.Join(dir, subdir)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("%w: create temp dir %s: %v", ErrStorage, path, err)
		}
		m.created = append(m.created, path)
	} else if err != nil {
		return fmt.Errorf("%w: stat temp dir %s: %v", ErrStorage, path, err)
	}

	m.dir = path
	m.emit(EventTempDir, observability.LevelVerbose, map[string]any{"temp_dir": path})
	return nil
}

// TempDir returns the directory that receives new extents.
func (m *Manager) TempDir() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dir
}

// Budget returns the configured memory budget in bytes.
func (m *Manager) Budget() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.budget
}

// Reserved returns the bytes currently granted to resident buffers.
func (m *Manager) Reserved() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reserved
}

// Available returns the unreserved part of the budget.
func (m *Manager) Available() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.budget - m.reserved
}

// SpilledBytes returns the number of bytes currently held in extents.
func (m *Manager) SpilledBytes() uint64 {
	return uint64(max(m.spilled.Load(), 0))
}

// ReserveUpTo grants as much of want as the budget allows, but never less
// than least, even when want is smaller. Returns ErrExhausted when fewer than least bytes are available.
func (m *Manager) ReserveUpTo(want, least uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrClosed
	}

	available := m.budget - m.reserved
	if available < least {
		m.emit(EventExhausted, observability.LevelWarning, map[string]any{
			"requested": least,
			"available": available,
		})
		return 0, fmt.Errorf("%w: requested %d bytes, %d available", ErrExhausted, least, available)
	}

	grant := min(max(want, least), available)
	m.reserved += grant
	return grant, nil
}

// Release returns n bytes to the budget.
func (m *Manager) Release(n uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reserved -= min(n, m.reserved)
}

// CreateExtent creates an empty extent file in the current temp directory.
// The prefix is used only to make file names recognizable.
func (m *Manager) CreateExtent(prefix string) (*Extent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}

	name := fmt.Sprintf("%s-%s.spill", prefix, uuid.Must(uuid.NewV7()).String())
	path := filepath.Join(m.dir, name)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: create extent: %v", ErrStorage, err)
	}

	ext := &Extent{manager: m, file: f, path: path}
	m.extents[ext] = struct{}{}
	return ext, nil
}

// Extents returns the number of live extents.
func (m *Manager) Extents() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.extents)
}

// Shutdown tears down the subsystem: leftover extents are removed, as are
// the directories the manager created. Further reservations and extent
// creation fail with ErrClosed. Calling Shutdown twice is a no-op.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	leftover := make([]*Extent, 0, len(m.extents))
	for ext := range m.extents {
		leftover = append(leftover, ext)
	}
	created := m.created
	m.created = nil
	m.mu.Unlock()

	var errs []error
	for _, ext := range leftover {
		errs = append(errs, ext.Remove())
	}

	for i := len(created) - 1; i >= 0; i-- {
		errs = append(errs, removeIfEmpty(created[i]))
	}

	m.emit(EventShutdown, observability.LevelInfo, map[string]any{
		"leftover_extents": len(leftover),
	})

	return errors.Join(errs...)
}

// removeIfEmpty removes dir unless it is gone or holds files it did not
// create.
func removeIfEmpty(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) || len(entries) > 0 {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: read temp dir %s: %v", ErrStorage, dir, err)
	}
	if err := os.Remove(dir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: remove temp dir %s: %v", ErrStorage, dir, err)
	}
	return nil
}

func (m *Manager) forget(ext *Extent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.extents, ext)
}

func (m *Manager) emit(typ observability.EventType, level observability.Level, data map[string]any) {
	observability.Emit(context.Background(), m.observer, typ, level, "storage.Manager", data)
}
