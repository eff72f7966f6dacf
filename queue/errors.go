package queue

import "errors"

// Sentinel errors shared by all disciplines.
var (
	// ErrEmptyQueue is the expected, recoverable refusal to peek or pop an
	// empty store.
	ErrEmptyQueue = errors.New("queue is empty")
	// ErrClosed is returned by a store used after Close.
	ErrClosed = errors.New("queue is closed")
)
