// Package queue holds the contracts shared by the queue disciplines: the
// Discipline enumeration, the Store interfaces the registry hands out, and
// the error kinds every discipline reports.
package queue

import (
	"fmt"

	"github.com/tailored-agentic-units/spillq/entry"
)

// Discipline is the ordering policy of a store.
type Discipline int

const (
	// Priority stores release the entry with the smallest priority first.
	Priority Discipline = iota + 1
	// FIFO stores release entries in insertion order.
	FIFO
)

func (d Discipline) String() string {
	switch d {
	case Priority:
		return "priority"
	case FIFO:
		return "fifo"
	default:
		return fmt.Sprintf("discipline(%d)", int(d))
	}
}

// Store is the discipline-independent view of a queue. Implementations are
// not safe for concurrent use; callers serialize access per store.
type Store interface {
	// ID returns a unique identifier used to name the store's extents.
	ID() string
	// Discipline reports the store's ordering policy.
	Discipline() Discipline
	// SizeClass reports the payload width the store is bound to.
	SizeClass() entry.SizeClass
	// Size returns the number of entries held, resident or spilled.
	// Safe to call from any goroutine.
	Size() uint64
	// IsEmpty reports whether Size is zero.
	IsEmpty() bool
	// Close releases the store's memory reservation and removes its extents.
	// Close is idempotent. Afterwards Size reports zero and every method that
	// can fail returns ErrClosed.
	Close() error
}

// PriorityStore is a min-priority queue over fixed-width payloads.
type PriorityStore interface {
	Store
	Push(priority float64, payload []byte) error
	TopPriority() (float64, error)
	TopPayload() ([]byte, error)
	Top() (float64, []byte, error)
	TopInto(dst []byte) (float64, error)
	Pop() error
}

// FIFOStore is a first-in-first-out queue over fixed-width payloads.
type FIFOStore interface {
	Store
	Push(payload []byte) error
	Front() ([]byte, error)
	FrontInto(dst []byte) error
	Pop() error
}
