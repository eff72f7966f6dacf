package pqueue

import (
	"cmp"
	"container/heap"

	"github.com/tailored-agentic-units/spillq/entry"
	"github.com/tailored-agentic-units/spillq/storage"
)

// run is a sorted sequence of records in one extent, consumed from the front
// through a block buffer. While remaining > 0 the head record is buffered.
type run struct {
	ext       *storage.Extent
	next      int64
	buf       []byte
	pos       int
	remaining uint64
}

func (r *run) head(codec entry.Codec) []byte {
	return r.buf[r.pos : r.pos+codec.RecordSize()]
}

// readBlock fills dst with the next block of r starting at off and returns
// the number of bytes read.
func readBlock(ext *storage.Extent, dst []byte, off int64) (int, error) {
	n := int(min(int64(len(dst)), ext.Size()-off))
	if err := ext.ReadAt(dst[:n], off); err != nil {
		return 0, err
	}
	return n, nil
}

// cursor reads a run from its current position without disturbing it, so a
// failed merge leaves every source run intact.
type cursor struct {
	ext       *storage.Extent
	next      int64
	buf       []byte
	pos       int
	own       []byte
	remaining uint64
}

func newCursor(r *run) *cursor {
	return &cursor{
		ext:       r.ext,
		next:      r.next,
		buf:       r.buf,
		pos:       r.pos,
		remaining: r.remaining,
	}
}

func (c *cursor) advance(rec, block int) error {
	c.pos += rec
	c.remaining--
	if c.remaining == 0 || c.pos < len(c.buf) {
		return nil
	}
	if c.own == nil {
		c.own = make([]byte, block)
	}
	n, err := readBlock(c.ext, c.own, c.next)
	if err != nil {
		return err
	}
	c.buf = c.own[:n]
	c.next += int64(n)
	c.pos = 0
	return nil
}

type mergeHeap struct {
	cursors []*cursor
	codec   entry.Codec
}

func (h *mergeHeap) Len() int { return len(h.cursors) }

func (h *mergeHeap) Less(i, j int) bool {
	a := h.codec.Priority(h.cursors[i].buf[h.cursors[i].pos:])
	b := h.codec.Priority(h.cursors[j].buf[h.cursors[j].pos:])
	return cmp.Compare(a, b) < 0
}

func (h *mergeHeap) Swap(i, j int) { h.cursors[i], h.cursors[j] = h.cursors[j], h.cursors[i] }

func (h *mergeHeap) Push(x any) { h.cursors = append(h.cursors, x.(*cursor)) }

func (h *mergeHeap) Pop() any {
	n := len(h.cursors) - 1
	c := h.cursors[n]
	h.cursors = h.cursors[:n]
	return c
}

var _ heap.Interface = (*mergeHeap)(nil)
