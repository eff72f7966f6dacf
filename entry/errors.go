package entry

import "errors"

// Sentinel errors for record framing.
var (
	ErrUnsupportedSizeClass = errors.New("unsupported entry size")
	ErrPayloadSize          = errors.New("payload size does not match size class")
)
