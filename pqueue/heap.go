package pqueue

import (
	"cmp"
	"container/heap"
)

type item struct {
	priority float64
	slot     int
}

// residentHeap is a binary min-heap of priorities whose payloads live in a
// slot arena, so sifting moves 16-byte items instead of whole records.
type residentHeap struct {
	items []item
	arena []byte
	free  []int
	width int
}

func newResidentHeap(width, capacity int) *residentHeap {
	return &residentHeap{
		items: make([]item, 0, capacity),
		width: width,
	}
}

func (h *residentHeap) Len() int { return len(h.items) }

func (h *residentHeap) Less(i, j int) bool {
	return cmp.Compare(h.items[i].priority, h.items[j].priority) < 0
}

func (h *residentHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *residentHeap) Push(x any) { h.items = append(h.items, x.(item)) }

func (h *residentHeap) Pop() any {
	n := len(h.items) - 1
	it := h.items[n]
	h.items = h.items[:n]
	return it
}

func (h *residentHeap) insert(priority float64, payload []byte) {
	var slot int
	if n := len(h.free); n > 0 {
		slot = h.free[n-1]
		h.free = h.free[:n-1]
	} else {
		slot = len(h.arena) / h.width
		h.arena = append(h.arena, make([]byte, h.width)...)
	}
	copy(h.payload(slot), payload)
	heap.Push(h, item{priority: priority, slot: slot})
}

func (h *residentHeap) top() item {
	return h.items[0]
}

func (h *residentHeap) removeTop() {
	it := heap.Pop(h).(item)
	h.free = append(h.free, it.slot)
}

func (h *residentHeap) payload(slot int) []byte {
	return h.arena[slot*h.width : (slot+1)*h.width]
}

// reset empties the heap but keeps the arena for reuse.
func (h *residentHeap) reset() {
	h.items = h.items[:0]
	h.free = h.free[:0]
	for slot := len(h.arena)/h.width - 1; slot >= 0; slot-- {
		h.free = append(h.free, slot)
	}
}
