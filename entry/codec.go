package entry

import (
	"encoding/binary"
	"fmt"
	"math"
)

// KeySize is the width of the priority key carried by keyed records.
const KeySize = 8

// Codec frames payloads of one size class into fixed-width records.
// Keyed records carry an 8-byte priority ahead of the payload; the key is not
// counted in the size class. Payload bytes are copied verbatim.
type Codec struct {
	size  SizeClass
	keyed bool
}

// NewCodec returns a codec for unkeyed (FIFO) records.
func NewCodec(size SizeClass) Codec {
	return Codec{size: size}
}

// NewKeyedCodec returns a codec for records prefixed with a priority key.
func NewKeyedCodec(size SizeClass) Codec {
	return Codec{size: size, keyed: true}
}

func (c Codec) SizeClass() SizeClass { return c.size }

func (c Codec) Keyed() bool { return c.keyed }

// RecordSize is the number of bytes one encoded record occupies.
func (c Codec) RecordSize() int {
	if c.keyed {
		return KeySize + c.size.Bytes()
	}
	return c.size.Bytes()
}

// Check returns ErrPayloadSize if payload is not exactly the size class wide.
func (c Codec) Check(payload []byte) error {
	if len(payload) != c.size.Bytes() {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrPayloadSize, len(payload), c.size.Bytes())
	}
	return nil
}

// Encode writes one record into dst, which must be at least RecordSize long.
// The priority is ignored for unkeyed codecs.
func (c Codec) Encode(dst []byte, priority float64, payload []byte) {
	if c.keyed {
		binary.LittleEndian.PutUint64(dst[:KeySize], math.Float64bits(priority))
		copy(dst[KeySize:KeySize+c.size.Bytes()], payload)
		return
	}
	copy(dst[:c.size.Bytes()], payload)
}

// Decode splits a record into its priority and a view of its payload.
// The payload aliases src.
func (c Codec) Decode(src []byte) (float64, []byte) {
	return c.Priority(src), c.Payload(src)
}

// Priority reads the key of a keyed record. Unkeyed records report 0.
func (c Codec) Priority(rec []byte) float64 {
	if !c.keyed {
		return 0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(rec[:KeySize]))
}

// Payload returns a view of the payload bytes of rec.
func (c Codec) Payload(rec []byte) []byte {
	if c.keyed {
		return rec[KeySize : KeySize+c.size.Bytes()]
	}
	return rec[:c.size.Bytes()]
}
