package registry

import "errors"

// Sentinel errors for handle resolution and store creation.
var (
	// ErrInvalidHandle is returned when a handle does not name a live store
	// of the requested discipline: never created, already destroyed, or
	// created for the other discipline.
	ErrInvalidHandle = errors.New("invalid handle")
	// ErrUnknownDiscipline is returned by Create when no factory is
	// registered for the requested discipline.
	ErrUnknownDiscipline = errors.New("unknown discipline")
)
