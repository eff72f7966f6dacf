// Package serializing layers typed queues over the engine's fixed-width
// stores. A serializer declares the size class its values need and converts
// values to and from payload bytes; the queue owns one store handle and
// releases it on Close.
//
//	q, err := serializing.NewFIFOQueue(e, serializing.Int64{})
//	defer q.Close()
//	err = q.Push(42)
//	v, err := q.Front()
package serializing

import (
	"github.com/tailored-agentic-units/spillq/engine"
	"github.com/tailored-agentic-units/spillq/entry"
	"github.com/tailored-agentic-units/spillq/queue"
	"github.com/tailored-agentic-units/spillq/registry"
)

// PrioritySerializer converts values of T to payloads of a priority store.
type PrioritySerializer[T any] interface {
	// SizeClass is the payload width every serialized value fits in.
	SizeClass() entry.SizeClass
	// Serialize writes v into buf, which is zeroed and exactly SizeClass
	// wide, and returns v's priority.
	Serialize(v T, buf []byte) (float64, error)
	// Deserialize rebuilds a value from its priority and payload.
	Deserialize(priority float64, buf []byte) (T, error)
}

// Serializer converts values of T to payloads of a FIFO store.
type Serializer[T any] interface {
	SizeClass() entry.SizeClass
	Serialize(v T, buf []byte) error
	Deserialize(buf []byte) (T, error)
}

// PriorityQueue is a min-priority queue of T. Not safe for concurrent use.
type PriorityQueue[T any] struct {
	engine     *engine.Engine
	handle     registry.Handle
	store      queue.PriorityStore
	serializer PrioritySerializer[T]
	buf        []byte
}

// NewPriorityQueue creates a priority store sized for s and wraps it.
func NewPriorityQueue[T any](e *engine.Engine, s PrioritySerializer[T]) (*PriorityQueue[T], error) {
	h, store, err := create(e, s.SizeClass(), queue.Priority, e.Registry().ResolvePriority)
	if err != nil {
		return nil, err
	}
	return &PriorityQueue[T]{
		engine:     e,
		handle:     h,
		store:      store,
		serializer: s,
		buf:        make([]byte, s.SizeClass().Bytes()),
	}, nil
}

// Handle returns the registry handle of the underlying store.
func (q *PriorityQueue[T]) Handle() registry.Handle { return q.handle }

func (q *PriorityQueue[T]) Push(v T) error {
	clear(q.buf)
	priority, err := q.serializer.Serialize(v, q.buf)
	if err != nil {
		return err
	}
	return q.store.Push(priority, q.buf)
}

// Top returns the value with the smallest priority without removing it.
func (q *PriorityQueue[T]) Top() (T, error) {
	priority, err := q.store.TopInto(q.buf)
	if err != nil {
		var zero T
		return zero, err
	}
	return q.serializer.Deserialize(priority, q.buf)
}

func (q *PriorityQueue[T]) Pop() error { return q.store.Pop() }

func (q *PriorityQueue[T]) Size() uint64 { return q.store.Size() }

func (q *PriorityQueue[T]) IsEmpty() bool { return q.store.IsEmpty() }

// Close destroys the underlying store.
func (q *PriorityQueue[T]) Close() error {
	return q.engine.Registry().Destroy(q.handle)
}

// FIFOQueue is a first-in-first-out queue of T. Not safe for concurrent use.
type FIFOQueue[T any] struct {
	engine     *engine.Engine
	handle     registry.Handle
	store      queue.FIFOStore
	serializer Serializer[T]
	buf        []byte
}

// NewFIFOQueue creates a FIFO store sized for s and wraps it.
func NewFIFOQueue[T any](e *engine.Engine, s Serializer[T]) (*FIFOQueue[T], error) {
	h, store, err := create(e, s.SizeClass(), queue.FIFO, e.Registry().ResolveFIFO)
	if err != nil {
		return nil, err
	}
	return &FIFOQueue[T]{
		engine:     e,
		handle:     h,
		store:      store,
		serializer: s,
		buf:        make([]byte, s.SizeClass().Bytes()),
	}, nil
}

// Handle returns the registry handle of the underlying store.
func (q *FIFOQueue[T]) Handle() registry.Handle { return q.handle }

func (q *FIFOQueue[T]) Push(v T) error {
	clear(q.buf)
	if err := q.serializer.Serialize(v, q.buf); err != nil {
		return err
	}
	return q.store.Push(q.buf)
}

// Front returns the oldest value without removing it.
func (q *FIFOQueue[T]) Front() (T, error) {
	if err := q.store.FrontInto(q.buf); err != nil {
		var zero T
		return zero, err
	}
	return q.serializer.Deserialize(q.buf)
}

func (q *FIFOQueue[T]) Pop() error { return q.store.Pop() }

func (q *FIFOQueue[T]) Size() uint64 { return q.store.Size() }

func (q *FIFOQueue[T]) IsEmpty() bool { return q.store.IsEmpty() }

// Close destroys the underlying store.
func (q *FIFOQueue[T]) Close() error {
	return q.engine.Registry().Destroy(q.handle)
}

func create[S queue.Store](e *engine.Engine, size entry.SizeClass, d queue.Discipline, resolve func(registry.Handle) (S, error)) (registry.Handle, S, error) {
	var zero S

	h, err := e.Registry().Create(int(size), d)
	if err != nil {
		return 0, zero, err
	}
	store, err := resolve(h)
	if err != nil {
		e.Registry().Destroy(h)
		return 0, zero, err
	}
	return h, store, nil
}
