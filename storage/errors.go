package storage

import (
	"errors"
	"fmt"
)

// Sentinel errors for the storage capability. ErrExhausted wraps ErrStorage so
// callers that only care about "storage failed" can match the broader kind.
var (
	ErrStorage   = errors.New("storage failure")
	ErrExhausted = fmt.Errorf("%w: memory budget exhausted", ErrStorage)
	ErrClosed    = errors.New("storage manager is shut down")
)
