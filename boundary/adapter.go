// Package boundary exposes the queue engine to a foreign caller as a flat
// API over integer handles.
//
// Every method of Adapter returns either nil or a *Failure. The package-level
// functions act on a process-wide default adapter; Server speaks a
// length-prefixed frame protocol over a byte stream and dispatches each
// request to an Adapter.
//
//	boundary.InitStorage(64 << 20)
//	h, err := boundary.CreatePriority(8)
//	err = boundary.PriorityPush(h, 1.5, payload)
//	priority, payload, err := boundary.PriorityTop(h)
package boundary

import (
	"context"
	"fmt"
	"sync"

	"github.com/tailored-agentic-units/spillq/engine"
	"github.com/tailored-agentic-units/spillq/queue"
	"github.com/tailored-agentic-units/spillq/registry"
	"github.com/tailored-agentic-units/spillq/storage"
)

// MinMemoryBudget is the smallest memory budget InitStorage accepts; lower
// requests are raised to it.
const MinMemoryBudget = 16 * storage.MiB

type tempDir struct {
	path    string
	subpath string
}

// Adapter owns at most one engine over its lifetime. The storage lifecycle
// runs in one direction: InitStorage once, ShutdownStorage once.
// Adapter methods are safe for concurrent use on different handles.
type Adapter struct {
	mu      sync.RWMutex
	config  engine.Config
	opts    []engine.Option
	engine  *engine.Engine
	started bool
	tempDir *tempDir
}

// NewAdapter returns an uninitialized adapter. cfg supplies every setting
// except the memory budget, which InitStorage provides; nil selects
// engine.DefaultConfig. opts are passed to engine.New.
func NewAdapter(cfg *engine.Config, opts ...engine.Option) *Adapter {
	config := engine.DefaultConfig()
	if cfg != nil {
		config = *cfg
	}
	return &Adapter{
		config: config,
		opts:   opts,
	}
}

// Engine returns the running engine, or nil before InitStorage and after
// ShutdownStorage.
func (a *Adapter) Engine() *engine.Engine {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.engine
}

// InitStorage starts the storage subsystem with the given memory budget,
// raised to MinMemoryBudget when smaller. A temp directory set earlier with
// SetTempDirectory is applied. Initializing twice fails.
func (a *Adapter) InitStorage(memoryBudget uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return Translate(engine.ErrAlreadyInitialized)
	}

	cfg := a.config
	cfg.Storage.MemoryBudget = max(memoryBudget, MinMemoryBudget)
	if a.tempDir != nil {
		cfg.Storage.TempDir = a.tempDir.path
		cfg.Storage.TempSubdir = a.tempDir.subpath
	}

	e, err := engine.New(&cfg, a.opts...)
	if err != nil {
		return Translate(err)
	}

	a.engine = e
	a.started = true
	return nil
}

// ShutdownStorage destroys every live store, removes their spill files and
// tears down the storage subsystem.
func (a *Adapter) ShutdownStorage() error {
	a.mu.Lock()
	e := a.engine
	a.engine = nil
	a.mu.Unlock()

	if e == nil {
		return Translate(engine.ErrNotInitialized)
	}
	return Translate(e.Shutdown(context.Background()))
}

// SetTempDirectory selects path/subpath as the location of spill files
// created from now on; subpath may be empty. Before InitStorage the choice
// is remembered and applied at initialization.
func (a *Adapter) SetTempDirectory(path, subpath string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.engine == nil {
		if a.started {
			return Translate(engine.ErrNotInitialized)
		}
		a.tempDir = &tempDir{path: path, subpath: subpath}
		return nil
	}
	return Translate(a.engine.Storage().SetTempDir(path, subpath))
}

// SpilledBytes returns the number of bytes currently held on secondary
// storage, or 0 when storage is not running.
func (a *Adapter) SpilledBytes() uint64 {
	e := a.Engine()
	if e == nil {
		return 0
	}
	return e.Storage().SpilledBytes()
}

// CreatePriority creates a priority store for payloads of sizeClass bytes.
func (a *Adapter) CreatePriority(sizeClass int) (int64, error) {
	return a.create(sizeClass, queue.Priority)
}

// CreateFIFO creates a FIFO store for payloads of sizeClass bytes.
func (a *Adapter) CreateFIFO(sizeClass int) (int64, error) {
	return a.create(sizeClass, queue.FIFO)
}

// Destroy releases the store behind handle and everything it spilled.
func (a *Adapter) Destroy(handle int64) error {
	reg, err := a.registry()
	if err != nil {
		return Translate(err)
	}
	h, err := toHandle(handle)
	if err != nil {
		return Translate(err)
	}
	return Translate(reg.Destroy(h))
}

func (a *Adapter) PriorityPush(handle int64, priority float64, payload []byte) error {
	q, err := a.priority(handle)
	if err != nil {
		return err
	}
	return Translate(q.Push(priority, payload))
}

// PriorityTop returns the minimum entry without removing it.
func (a *Adapter) PriorityTop(handle int64) (float64, []byte, error) {
	q, err := a.priority(handle)
	if err != nil {
		return 0, nil, err
	}
	priority, payload, err := q.Top()
	return priority, payload, Translate(err)
}

// PriorityTopInto copies the minimum entry's payload into buf, which must be
// exactly the store's size class wide.
func (a *Adapter) PriorityTopInto(handle int64, buf []byte) (float64, error) {
	q, err := a.priority(handle)
	if err != nil {
		return 0, err
	}
	priority, err := q.TopInto(buf)
	return priority, Translate(err)
}

func (a *Adapter) PriorityPop(handle int64) error {
	q, err := a.priority(handle)
	if err != nil {
		return err
	}
	return Translate(q.Pop())
}

func (a *Adapter) PrioritySize(handle int64) (uint64, error) {
	q, err := a.priority(handle)
	if err != nil {
		return 0, err
	}
	return q.Size(), nil
}

func (a *Adapter) PriorityIsEmpty(handle int64) (bool, error) {
	q, err := a.priority(handle)
	if err != nil {
		return false, err
	}
	return q.IsEmpty(), nil
}

func (a *Adapter) FIFOPush(handle int64, payload []byte) error {
	q, err := a.fifo(handle)
	if err != nil {
		return err
	}
	return Translate(q.Push(payload))
}

// FIFOFront returns the head payload without removing it.
func (a *Adapter) FIFOFront(handle int64) ([]byte, error) {
	q, err := a.fifo(handle)
	if err != nil {
		return nil, err
	}
	payload, err := q.Front()
	return payload, Translate(err)
}

// FIFOFrontInto copies the head payload into buf, which must be exactly the
// store's size class wide.
func (a *Adapter) FIFOFrontInto(handle int64, buf []byte) error {
	q, err := a.fifo(handle)
	if err != nil {
		return err
	}
	return Translate(q.FrontInto(buf))
}

func (a *Adapter) FIFOPop(handle int64) error {
	q, err := a.fifo(handle)
	if err != nil {
		return err
	}
	return Translate(q.Pop())
}

func (a *Adapter) FIFOSize(handle int64) (uint64, error) {
	q, err := a.fifo(handle)
	if err != nil {
		return 0, err
	}
	return q.Size(), nil
}

func (a *Adapter) FIFOIsEmpty(handle int64) (bool, error) {
	q, err := a.fifo(handle)
	if err != nil {
		return false, err
	}
	return q.IsEmpty(), nil
}

func (a *Adapter) create(sizeClass int, d queue.Discipline) (int64, error) {
	reg, err := a.registry()
	if err != nil {
		return 0, Translate(err)
	}
	h, err := reg.Create(sizeClass, d)
	if err != nil {
		return 0, Translate(err)
	}
	return int64(h), nil
}

func (a *Adapter) registry() (*registry.Registry, error) {
	e := a.Engine()
	if e == nil {
		return nil, engine.ErrNotInitialized
	}
	return e.Registry(), nil
}

func (a *Adapter) priority(handle int64) (queue.PriorityStore, error) {
	reg, err := a.registry()
	if err != nil {
		return nil, Translate(err)
	}
	h, err := toHandle(handle)
	if err != nil {
		return nil, Translate(err)
	}
	q, err := reg.ResolvePriority(h)
	if err != nil {
		return nil, Translate(err)
	}
	return q, nil
}

func (a *Adapter) fifo(handle int64) (queue.FIFOStore, error) {
	reg, err := a.registry()
	if err != nil {
		return nil, Translate(err)
	}
	h, err := toHandle(handle)
	if err != nil {
		return nil, Translate(err)
	}
	q, err := reg.ResolveFIFO(h)
	if err != nil {
		return nil, Translate(err)
	}
	return q, nil
}

func toHandle(handle int64) (registry.Handle, error) {
	if handle <= 0 {
		return 0, fmt.Errorf("%w: %d", registry.ErrInvalidHandle, handle)
	}
	return registry.Handle(handle), nil
}
