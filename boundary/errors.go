package boundary

import "errors"

// Wire protocol errors.
var (
	// ErrMalformedFrame is returned for a frame whose body cannot be decoded.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrFrameTooLarge is returned when a length prefix exceeds MaxFrameSize.
	// The stream cannot be resynchronized afterwards.
	ErrFrameTooLarge = errors.New("frame too large")
	// ErrUnknownOp is returned for a request naming an operation the server
	// does not implement.
	ErrUnknownOp = errors.New("unknown operation")
)
