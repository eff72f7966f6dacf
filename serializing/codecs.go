package serializing

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/tailored-agentic-units/spillq/entry"
)

// Int64 stores int64 values in the 8-byte size class.
type Int64 struct{}

func (Int64) SizeClass() entry.SizeClass { return entry.Bytes8 }

func (Int64) Serialize(v int64, buf []byte) error {
	binary.BigEndian.PutUint64(buf, uint64(v))
	return nil
}

func (Int64) Deserialize(buf []byte) (int64, error) {
	return int64(binary.BigEndian.Uint64(buf)), nil
}

// Float64 orders float64 values by themselves; the payload repeats the value.
type Float64 struct{}

func (Float64) SizeClass() entry.SizeClass { return entry.Bytes8 }

func (Float64) Serialize(v float64, buf []byte) (float64, error) {
	binary.BigEndian.PutUint64(buf, math.Float64bits(v))
	return v, nil
}

func (Float64) Deserialize(_ float64, buf []byte) (float64, error) {
	return math.Float64frombits(binary.BigEndian.Uint64(buf)), nil
}

// Bytes stores variable-length byte strings up to the size class minus a
// two-byte length prefix.
type Bytes struct {
	Size entry.SizeClass
}

// BytesFor returns the narrowest Bytes serializer holding values of up to
// maxLen bytes.
func BytesFor(maxLen int) (Bytes, error) {
	size, ok := entry.BigEnoughFor(maxLen + 2)
	if !ok {
		return Bytes{}, fmt.Errorf("%w: no size class holds %d bytes", entry.ErrUnsupportedSizeClass, maxLen)
	}
	return Bytes{Size: size}, nil
}

func (b Bytes) SizeClass() entry.SizeClass { return b.Size }

// MaxLen is the longest value b can hold.
func (b Bytes) MaxLen() int { return b.Size.Bytes() - 2 }

func (b Bytes) Serialize(v []byte, buf []byte) error {
	if len(v) > b.MaxLen() {
		return fmt.Errorf("%w: %d bytes exceeds %d", entry.ErrPayloadSize, len(v), b.MaxLen())
	}
	binary.BigEndian.PutUint16(buf, uint16(len(v)))
	copy(buf[2:], v)
	return nil
}

func (b Bytes) Deserialize(buf []byte) ([]byte, error) {
	n := int(binary.BigEndian.Uint16(buf))
	if n > len(buf)-2 {
		return nil, fmt.Errorf("%w: length prefix %d exceeds %d", entry.ErrPayloadSize, n, len(buf)-2)
	}
	return append([]byte(nil), buf[2:2+n]...), nil
}
