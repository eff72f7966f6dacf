package engine

import "errors"

// Lifecycle errors.
var (
	// ErrAlreadyInitialized is returned when a running engine is initialized
	// a second time.
	ErrAlreadyInitialized = errors.New("storage already initialized")
	// ErrNotInitialized is returned when the engine is used before it was
	// initialized or after it was shut down.
	ErrNotInitialized = errors.New("storage not initialized")
)
