// Package pqueue implements the out-of-core priority store: a min-priority
// queue over fixed-width payloads whose working set may exceed the memory
// granted to it.
//
// Pushes land in a resident binary heap bounded by the store's reservation
// from the storage budget. When the heap is full it is sorted and written
// out as a run. Runs are kept in levels; once a level holds FanIn runs they
// are merged into a single run one level up, so every entry is rewritten at
// most log_FanIn(n) times. The minimum is the smaller of the heap top and
// the buffered heads of the live runs.
//
// Entries with equal priority leave in no particular order.
package pqueue

import (
	"bytes"
	"cmp"
	"container/heap"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/tailored-agentic-units/spillq/entry"
	"github.com/tailored-agentic-units/spillq/observability"
	"github.com/tailored-agentic-units/spillq/queue"
	"github.com/tailored-agentic-units/spillq/storage"
)

// Option configures a Queue after config-driven initialization.
type Option func(*Queue)

// WithObserver overrides the default NoOpObserver.
func WithObserver(o observability.Observer) Option {
	return func(q *Queue) { q.observer = o }
}

// Queue is a priority store bound to one size class. A Queue is not safe
// for concurrent use, except for Size and IsEmpty.
type Queue struct {
	id       string
	codec    entry.Codec
	storage  *storage.Manager
	reserved uint64
	observer observability.Observer

	heap     *residentHeap
	capacity int

	levels [][]*run
	stale  []*storage.Extent
	spare  []byte
	block  int
	fanIn  int

	count  atomic.Uint64
	closed bool
}

var _ queue.PriorityStore = (*Queue)(nil)

// New creates an empty priority store for payloads of the given size class.
// The resident heap is sized from a reservation of up to cfg.ResidentBytes;
// creation fails with storage.ErrExhausted when the budget cannot hold even
// a minimal heap.
func New(m *storage.Manager, size entry.SizeClass, cfg *Config, opts ...Option) (*Queue, error) {
	if !size.Valid() {
		return nil, fmt.Errorf("%w: %d", entry.ErrUnsupportedSizeClass, size)
	}

	codec := entry.NewKeyedCodec(size)
	rec := codec.RecordSize()

	grant, err := m.ReserveUpTo(cfg.ResidentBytes, uint64(rec*minResidentRecords))
	if err != nil {
		return nil, err
	}

	capacity := int(grant / uint64(rec))
	q := &Queue{
		id:       uuid.Must(uuid.NewV7()).String(),
		codec:    codec,
		storage:  m,
		reserved: grant,
		observer: observability.NoOpObserver{},
		heap:     newResidentHeap(size.Bytes(), capacity),
		capacity: capacity,
		block:    max(1, int(cfg.BlockBytes)/rec) * rec,
		fanIn:    max(cfg.FanIn, minFanIn),
	}

	for _, opt := range opts {
		opt(q)
	}

	return q, nil
}

func (q *Queue) ID() string { return q.id }

func (q *Queue) Discipline() queue.Discipline { return queue.Priority }

func (q *Queue) SizeClass() entry.SizeClass { return q.codec.SizeClass() }

func (q *Queue) Size() uint64 { return q.count.Load() }

func (q *Queue) IsEmpty() bool { return q.count.Load() == 0 }

// Resident returns the number of entries held in the resident heap.
func (q *Queue) Resident() int { return q.heap.Len() }

// Runs returns the number of live spilled runs.
func (q *Queue) Runs() int {
	n := 0
	for _, level := range q.levels {
		n += len(level)
	}
	return n
}

// Push inserts one entry. It fails only when the payload is not exactly
// the size class wide or when spilling the resident heap fails; in both
// cases the stored entries are unchanged.
func (q *Queue) Push(priority float64, payload []byte) error {
	if q.closed {
		return queue.ErrClosed
	}
	if err := q.codec.Check(payload); err != nil {
		return err
	}

	if q.heap.Len() >= q.capacity {
		if err := q.spill(); err != nil {
			return err
		}
	}

	q.heap.insert(priority, payload)
	q.count.Add(1)
	return nil
}

// TopPriority returns the smallest priority held.
func (q *Queue) TopPriority() (float64, error) {
	priority, _, err := q.peek()
	return priority, err
}

// TopPayload returns a copy of the payload of the entry TopPriority reports.
func (q *Queue) TopPayload() ([]byte, error) {
	_, payload, err := q.peek()
	if err != nil {
		return nil, err
	}
	return bytes.Clone(payload), nil
}

// Top returns the minimum entry without removing it.
func (q *Queue) Top() (float64, []byte, error) {
	priority, payload, err := q.peek()
	if err != nil {
		return 0, nil, err
	}
	return priority, bytes.Clone(payload), nil
}

// TopInto copies the minimum entry's payload into dst, which must be exactly
// the size class wide, and returns its priority.
func (q *Queue) TopInto(dst []byte) (float64, error) {
	if err := q.codec.Check(dst); err != nil {
		return 0, err
	}
	priority, payload, err := q.peek()
	if err != nil {
		return 0, err
	}
	copy(dst, payload)
	return priority, nil
}

// Pop removes the minimum entry. Returns queue.ErrEmptyQueue when empty.
func (q *Queue) Pop() error {
	if q.closed {
		return queue.ErrClosed
	}

	r, ok := q.minimum()
	if !ok {
		return queue.ErrEmptyQueue
	}

	if r == nil {
		q.heap.removeTop()
	} else if err := q.consume(r); err != nil {
		return err
	}

	q.count.Add(^uint64(0))
	return nil
}

// Close releases the reservation and removes every extent of the store.
func (q *Queue) Close() error {
	if q.closed {
		return nil
	}
	q.closed = true

	var errs []error
	for _, level := range q.levels {
		for _, r := range level {
			errs = append(errs, r.ext.Remove())
		}
	}
	for _, ext := range q.stale {
		errs = append(errs, ext.Remove())
	}

	q.levels = nil
	q.stale = nil
	q.heap = newResidentHeap(q.codec.SizeClass().Bytes(), 0)
	q.storage.Release(q.reserved)
	q.reserved = 0
	q.count.Store(0)

	return errors.Join(errs...)
}

func (q *Queue) peek() (float64, []byte, error) {
	if q.closed {
		return 0, nil, queue.ErrClosed
	}

	r, ok := q.minimum()
	if !ok {
		return 0, nil, queue.ErrEmptyQueue
	}
	if r == nil {
		it := q.heap.top()
		return it.priority, q.heap.payload(it.slot), nil
	}

	priority, payload := q.codec.Decode(r.head(q.codec))
	return priority, payload, nil
}

// minimum locates the smallest entry. A nil run with ok set means the heap
// top is the minimum.
func (q *Queue) minimum() (*run, bool) {
	var (
		best  float64
		found *run
		ok    bool
	)

	if q.heap.Len() > 0 {
		best, ok = q.heap.top().priority, true
	}

	for _, level := range q.levels {
		for _, r := range level {
			p := q.codec.Priority(r.head(q.codec))
			if !ok || cmp.Compare(p, best) < 0 {
				best, found, ok = p, r, true
			}
		}
	}

	return found, ok
}

// consume advances r past its head. The next block is read before anything
// changes so a failed read leaves the run where it was.
func (q *Queue) consume(r *run) error {
	rec := q.codec.RecordSize()

	if r.remaining > 1 && r.pos+rec >= len(r.buf) {
		n, err := readBlock(r.ext, q.spare, r.next)
		if err != nil {
			return err
		}
		r.buf, q.spare = q.spare[:n], r.buf[:cap(r.buf)]
		r.next += int64(n)
		r.pos = 0
		r.remaining--
		return nil
	}

	r.pos += rec
	r.remaining--
	if r.remaining == 0 {
		q.drop(r)
	}
	return nil
}

func (q *Queue) drop(r *run) {
	for i, level := range q.levels {
		for j, candidate := range level {
			if candidate == r {
				q.levels[i] = slices.Delete(level, j, j+1)
				q.discard(r.ext)
				return
			}
		}
	}
}

func (q *Queue) discard(ext *storage.Extent) {
	if err := ext.Remove(); err != nil {
		q.stale = append(q.stale, ext)
	}
}

// spill writes the resident heap out as a level-0 run, then merges any level
// that reached FanIn runs. A failure removes the partial output and leaves
// the heap and existing runs as they were.
func (q *Queue) spill() error {
	if q.spare == nil {
		q.spare = make([]byte, q.block)
	}

	items := slices.Clone(q.heap.items)
	slices.SortFunc(items, func(a, b item) int {
		return cmp.Compare(a.priority, b.priority)
	})

	w, err := q.newRunWriter()
	if err != nil {
		return err
	}
	for _, it := range items {
		if err := w.write(it.priority, q.heap.payload(it.slot)); err != nil {
			w.abort()
			return err
		}
	}
	r, err := w.finish()
	if err != nil {
		return err
	}

	q.heap.reset()
	if len(q.levels) == 0 {
		q.levels = append(q.levels, nil)
	}
	q.levels[0] = append(q.levels[0], r)

	observability.Emit(context.Background(), q.observer, EventSpill, observability.LevelVerbose, "pqueue.Queue", map[string]any{
		"store":   q.id,
		"records": len(items),
		"bytes":   r.ext.Size(),
	})

	return q.compact()
}

func (q *Queue) compact() error {
	for lvl := 0; lvl < len(q.levels); lvl++ {
		if len(q.levels[lvl]) < q.fanIn {
			continue
		}

		sources := q.levels[lvl]
		merged, err := q.merge(sources)
		if err != nil {
			return err
		}

		q.levels[lvl] = nil
		for _, r := range sources {
			q.discard(r.ext)
		}
		if lvl+1 == len(q.levels) {
			q.levels = append(q.levels, nil)
		}
		q.levels[lvl+1] = append(q.levels[lvl+1], merged)

		observability.Emit(context.Background(), q.observer, EventMerge, observability.LevelVerbose, "pqueue.Queue", map[string]any{
			"store":   q.id,
			"level":   lvl + 1,
			"runs":    len(sources),
			"records": merged.remaining,
		})
	}
	return nil
}

// merge k-way merges sources into a new run without touching them.
func (q *Queue) merge(sources []*run) (*run, error) {
	rec := q.codec.RecordSize()

	h := &mergeHeap{codec: q.codec}
	for _, r := range sources {
		h.cursors = append(h.cursors, newCursor(r))
	}
	heap.Init(h)

	w, err := q.newRunWriter()
	if err != nil {
		return nil, err
	}

	for h.Len() > 0 {
		c := h.cursors[0]
		if err := w.writeRecord(c.buf[c.pos : c.pos+rec]); err != nil {
			w.abort()
			return nil, err
		}
		if err := c.advance(rec, q.block); err != nil {
			w.abort()
			return nil, err
		}
		if c.remaining == 0 {
			heap.Pop(h)
		} else {
			heap.Fix(h, 0)
		}
	}

	return w.finish()
}
