// Package registry maps opaque integer handles to live stores.
//
// Handles are allocated from a monotonically increasing counter starting at
// 1 and are never reused for the lifetime of a Registry, so a stale handle
// resolves to ErrInvalidHandle rather than to some newer store. Stores are
// built through a factory table keyed by discipline.
//
//	reg := registry.New()
//	reg.Register(queue.FIFO, func(size entry.SizeClass) (queue.Store, error) {
//		return fifo.New(m, size, &cfg)
//	})
//	h, err := reg.Create(16, queue.FIFO)
//	q, err := reg.ResolveFIFO(h)
package registry

import (
	"cmp"
	"context"
	"fmt"
	"runtime"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tailored-agentic-units/spillq/entry"
	"github.com/tailored-agentic-units/spillq/observability"
	"github.com/tailored-agentic-units/spillq/queue"
)

// Handle is the caller-visible identity of a live store.
type Handle uint64

// Factory builds an empty store of one discipline for a size class.
type Factory func(size entry.SizeClass) (queue.Store, error)

// StoreStats is a point-in-time view of one registered store.
type StoreStats struct {
	Handle     Handle
	Discipline queue.Discipline
	SizeClass  entry.SizeClass
	Size       uint64
}

// Option configures a Registry.
type Option func(*Registry)

// WithObserver overrides the default NoOpObserver.
func WithObserver(o observability.Observer) Option {
	return func(r *Registry) { r.observer = o }
}

// Registry owns every live store. All methods are safe for concurrent use;
// the stores it hands out are not, and callers serialize access per handle.
type Registry struct {
	mu        sync.RWMutex
	stores    map[Handle]queue.Store
	factories map[queue.Discipline]Factory
	last      Handle
	observer  observability.Observer
}

// New creates an empty Registry with no factories.
func New(opts ...Option) *Registry {
	r := &Registry{
		stores:    make(map[Handle]queue.Store),
		factories: make(map[queue.Discipline]Factory),
		observer:  observability.NoOpObserver{},
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register installs the factory used by Create for discipline d, replacing
// any previous one.
func (r *Registry) Register(d queue.Discipline, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[d] = f
}

// Create builds a store of discipline d bound to sizeClass and returns its
// handle. Fails with entry.ErrUnsupportedSizeClass when sizeClass is not a
// supported width. On failure the registry is unchanged and no handle is
// consumed.
func (r *Registry) Create(sizeClass int, d queue.Discipline) (Handle, error) {
	size, err := entry.ParseSizeClass(sizeClass)
	if err != nil {
		return 0, err
	}

	r.mu.RLock()
	factory, ok := r.factories[d]
	r.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownDiscipline, d)
	}

	store, err := factory(size)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	r.last++
	h := r.last
	r.stores[h] = store
	r.mu.Unlock()

	observability.Emit(context.Background(), r.observer, EventCreate, observability.LevelVerbose, "registry.Registry", map[string]any{
		"handle":     uint64(h),
		"discipline": d.String(),
		"size_class": int(size),
		"store":      store.ID(),
	})

	return h, nil
}

// Resolve returns the store registered under h.
func (r *Registry) Resolve(h Handle) (queue.Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	store, ok := r.stores[h]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHandle, h)
	}
	return store, nil
}

// ResolvePriority returns the priority store registered under h.
func (r *Registry) ResolvePriority(h Handle) (queue.PriorityStore, error) {
	return resolveAs[queue.PriorityStore](r, h, queue.Priority)
}

// ResolveFIFO returns the FIFO store registered under h.
func (r *Registry) ResolveFIFO(h Handle) (queue.FIFOStore, error) {
	return resolveAs[queue.FIFOStore](r, h, queue.FIFO)
}

func resolveAs[S queue.Store](r *Registry, h Handle, d queue.Discipline) (S, error) {
	var zero S

	store, err := r.Resolve(h)
	if err != nil {
		return zero, err
	}

	typed, ok := store.(S)
	if !ok || store.Discipline() != d {
		return zero, fmt.Errorf("%w: %d is a %s store, not %s", ErrInvalidHandle, h, store.Discipline(), d)
	}
	return typed, nil
}

// Destroy unregisters h and releases everything the store owns before
// returning. Destroying an unknown or already destroyed handle fails with
// ErrInvalidHandle.
func (r *Registry) Destroy(h Handle) error {
	r.mu.Lock()
	store, ok := r.stores[h]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrInvalidHandle, h)
	}
	delete(r.stores, h)
	r.mu.Unlock()

	err := store.Close()

	observability.Emit(context.Background(), r.observer, EventDestroy, observability.LevelVerbose, "registry.Registry", map[string]any{
		"handle":     uint64(h),
		"discipline": store.Discipline().String(),
		"store":      store.ID(),
	})

	return err
}

// DestroyAll unregisters and closes every live store. Stores are closed in
// parallel; all of them are closed even when some fail, and the first
// failure is returned.
func (r *Registry) DestroyAll(ctx context.Context) error {
	r.mu.Lock()
	stores := r.stores
	r.stores = make(map[Handle]queue.Store)
	r.mu.Unlock()

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))

	for h, store := range stores {
		g.Go(func() error {
			err := store.Close()
			observability.Emit(ctx, r.observer, EventDestroy, observability.LevelVerbose, "registry.Registry", map[string]any{
				"handle":     uint64(h),
				"discipline": store.Discipline().String(),
				"store":      store.ID(),
			})
			return err
		})
	}

	return g.Wait()
}

// Len returns the number of live stores.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stores)
}

// Handles returns the live handles in ascending order.
func (r *Registry) Handles() []Handle {
	r.mu.RLock()
	handles := make([]Handle, 0, len(r.stores))
	for h := range r.stores {
		handles = append(handles, h)
	}
	r.mu.RUnlock()

	slices.Sort(handles)
	return handles
}

// Stats reports every live store, ordered by handle.
func (r *Registry) Stats() []StoreStats {
	r.mu.RLock()
	stats := make([]StoreStats, 0, len(r.stores))
	for h, store := range r.stores {
		stats = append(stats, StoreStats{
			Handle:     h,
			Discipline: store.Discipline(),
			SizeClass:  store.SizeClass(),
			Size:       store.Size(),
		})
	}
	r.mu.RUnlock()

	slices.SortFunc(stats, func(a, b StoreStats) int {
		return cmp.Compare(a.Handle, b.Handle)
	})
	return stats
}
