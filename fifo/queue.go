// Package fifo implements the out-of-core FIFO store.
//
// A store keeps two resident blocks: the head, which pops are served from,
// and the tail, which pushes are appended to. When the tail fills it is
// spilled to the middle of the queue: a chain of segment extents, each
// holding up to SegmentBlocks full blocks. An empty head is refilled from the
// oldest segment or, once the middle is drained, by taking over the tail.
// A segment is dropped as soon as it has been read back, so spilled bytes
// stay proportional to the entries waiting in the middle. Every record is
// written and read at most once, so push and pop are O(1) amortized.
package fifo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
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

// Queue is a FIFO store bound to one size class. A Queue is not safe for
// concurrent use, except for Size and IsEmpty.
type Queue struct {
	id       string
	codec    entry.Codec
	storage  *storage.Manager
	reserved uint64
	observer observability.Observer

	head    []byte
	headPos int
	headEnd int
	tail    []byte
	tailLen int

	middle       []*segment
	pending      int64
	segmentBytes int64
	stale        []*storage.Extent

	count  atomic.Uint64
	closed bool
}

var _ queue.FIFOStore = (*Queue)(nil)

// segment is one extent of the spilled middle, read from the front.
type segment struct {
	ext     *storage.Extent
	readOff int64
}

func (s *segment) unread() int64 { return s.ext.Size() - s.readOff }

// New creates an empty FIFO store for payloads of the given size class. It
// reserves two blocks from the storage budget, shrinking them when the
// budget is tight, and fails with storage.ErrExhausted when not even one
// record per block fits.
func New(m *storage.Manager, size entry.SizeClass, cfg *Config, opts ...Option) (*Queue, error) {
	if !size.Valid() {
		return nil, fmt.Errorf("%w: %d", entry.ErrUnsupportedSizeClass, size)
	}

	codec := entry.NewCodec(size)
	rec := codec.RecordSize()
	block := max(minBlockRecords, int(cfg.BlockBytes)/rec) * rec

	grant, err := m.ReserveUpTo(uint64(2*block), uint64(2*minBlockRecords*rec))
	if err != nil {
		return nil, err
	}
	block = int(grant/2) / rec * rec

	q := &Queue{
		id:           uuid.Must(uuid.NewV7()).String(),
		codec:        codec,
		storage:      m,
		reserved:     grant,
		observer:     observability.NoOpObserver{},
		head:         make([]byte, block),
		tail:         make([]byte, block),
		segmentBytes: int64(block) * int64(max(cfg.SegmentBlocks, 1)),
	}

	for _, opt := range opts {
		opt(q)
	}

	return q, nil
}

func (q *Queue) ID() string { return q.id }

func (q *Queue) Discipline() queue.Discipline { return queue.FIFO }

func (q *Queue) SizeClass() entry.SizeClass { return q.codec.SizeClass() }

func (q *Queue) Size() uint64 { return q.count.Load() }

func (q *Queue) IsEmpty() bool { return q.count.Load() == 0 }

// Spilled returns the number of bytes of the queue held in its extents and
// not yet read back.
func (q *Queue) Spilled() int64 { return q.pending }

// Segments returns the number of extents backing the spilled middle.
func (q *Queue) Segments() int { return len(q.middle) }

// Push appends payload at the tail. When the tail block is full it is
// spilled first; a failed spill leaves the queue unchanged.
func (q *Queue) Push(payload []byte) error {
	if q.closed {
		return queue.ErrClosed
	}
	if err := q.codec.Check(payload); err != nil {
		return err
	}

	rec := q.codec.RecordSize()

	// Until something queues up behind the head, pushes can go straight to it.
	if q.tailLen == 0 && q.pending == 0 {
		if q.headPos == q.headEnd {
			q.headPos, q.headEnd = 0, 0
		}
		if q.headEnd+rec <= len(q.head) {
			q.codec.Encode(q.head[q.headEnd:], 0, payload)
			q.headEnd += rec
			q.count.Add(1)
			return nil
		}
	}

	if q.tailLen+rec > len(q.tail) {
		if err := q.spill(); err != nil {
			return err
		}
	}

	q.codec.Encode(q.tail[q.tailLen:], 0, payload)
	q.tailLen += rec
	q.count.Add(1)
	return nil
}

// Front returns a copy of the payload at the head.
func (q *Queue) Front() ([]byte, error) {
	rec, err := q.front()
	if err != nil {
		return nil, err
	}
	return bytes.Clone(q.codec.Payload(rec)), nil
}

// FrontInto copies the payload at the head into dst, which must be exactly
// the size class wide.
func (q *Queue) FrontInto(dst []byte) error {
	if err := q.codec.Check(dst); err != nil {
		return err
	}
	rec, err := q.front()
	if err != nil {
		return err
	}
	copy(dst, q.codec.Payload(rec))
	return nil
}

// Pop removes the head entry. Returns queue.ErrEmptyQueue when empty.
func (q *Queue) Pop() error {
	if _, err := q.front(); err != nil {
		return err
	}

	q.headPos += q.codec.RecordSize()
	q.count.Add(^uint64(0))
	return nil
}

// Close releases the reservation and removes the store's extents.
func (q *Queue) Close() error {
	if q.closed {
		return nil
	}
	q.closed = true

	var errs []error
	for _, seg := range q.middle {
		errs = append(errs, seg.ext.Remove())
	}
	for _, ext := range q.stale {
		errs = append(errs, ext.Remove())
	}

	q.middle, q.stale = nil, nil
	q.head, q.tail = nil, nil
	q.headPos, q.headEnd, q.tailLen, q.pending = 0, 0, 0, 0
	q.storage.Release(q.reserved)
	q.reserved = 0
	q.count.Store(0)

	return errors.Join(errs...)
}

// front returns the head record, refilling the head block when it has been
// consumed. Refilling moves records between blocks without changing the
// queue's contents, so a failed refill leaves the queue as it was.
func (q *Queue) front() ([]byte, error) {
	if q.closed {
		return nil, queue.ErrClosed
	}
	if q.count.Load() == 0 {
		return nil, queue.ErrEmptyQueue
	}

	if q.headPos == q.headEnd {
		if err := q.refill(); err != nil {
			return nil, err
		}
	}

	return q.head[q.headPos : q.headPos+q.codec.RecordSize()], nil
}

func (q *Queue) refill() error {
	if q.pending > 0 {
		seg := q.middle[0]
		n := int(min(int64(len(q.head)), seg.unread()))
		if err := seg.ext.ReadAt(q.head[:n], seg.readOff); err != nil {
			return err
		}
		seg.readOff += int64(n)
		q.pending -= int64(n)
		q.headPos, q.headEnd = 0, n
		if seg.unread() == 0 {
			q.retire()
		}
		return nil
	}

	q.head, q.tail = q.tail, q.head
	q.headPos, q.headEnd = 0, q.tailLen
	q.tailLen = 0
	return nil
}

// retire frees the fully read oldest segment. The segment still being
// written to is truncated and kept; any other is removed. Cleanup failures
// never fail the read that triggered them: a segment that cannot be truncated
// is dropped instead, and an extent that cannot be removed waits for Close.
func (q *Queue) retire() {
	seg := q.middle[0]
	if len(q.middle) == 1 {
		if err := seg.ext.Reset(); err == nil {
			seg.readOff = 0
			return
		}
	}

	q.middle = q.middle[1:]
	q.discard(seg.ext)
}

func (q *Queue) discard(ext *storage.Extent) {
	if err := ext.Remove(); err != nil {
		q.stale = append(q.stale, ext)
	}
}

// spill appends the full tail block to the newest segment, starting a new
// segment when that one is full. On failure the queue is unchanged.
func (q *Queue) spill() error {
	var fresh *segment
	target := q.last()
	if target == nil || target.ext.Size() >= q.segmentBytes {
		ext, err := q.storage.CreateExtent("fifo-" + q.id)
		if err != nil {
			return err
		}
		fresh = &segment{ext: ext}
		target = fresh
	}

	if _, err := target.ext.Append(q.tail[:q.tailLen]); err != nil {
		if fresh != nil {
			q.discard(fresh.ext)
		}
		return err
	}
	if fresh != nil {
		q.middle = append(q.middle, fresh)
	}
	q.pending += int64(q.tailLen)

	observability.Emit(context.Background(), q.observer, EventSpill, observability.LevelVerbose, "fifo.Queue", map[string]any{
		"store":    q.id,
		"records":  q.tailLen / q.codec.RecordSize(),
		"spilled":  q.pending,
		"segments": len(q.middle),
	})

	q.tailLen = 0
	return nil
}

func (q *Queue) last() *segment {
	if len(q.middle) == 0 {
		return nil
	}
	return q.middle[len(q.middle)-1]
}
