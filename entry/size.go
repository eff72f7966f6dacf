// Package entry defines the fixed-width record layout shared by every queue
// discipline. A store is bound to exactly one SizeClass for its lifetime and
// every payload it accepts is exactly that many bytes.
package entry

import (
	"fmt"
	"strconv"
)

// SizeClass is the byte width of a payload.
type SizeClass uint32

const (
	Bytes8    SizeClass = 8
	Bytes16   SizeClass = 16
	Bytes32   SizeClass = 32
	Bytes64   SizeClass = 64
	Bytes128  SizeClass = 128
	Bytes256  SizeClass = 256
	Bytes512  SizeClass = 512
	Bytes1024 SizeClass = 1024
)

var sizes = []SizeClass{
	Bytes8, Bytes16, Bytes32, Bytes64, Bytes128, Bytes256, Bytes512, Bytes1024,
}

// Sizes returns the supported size classes in ascending order.
func Sizes() []SizeClass {
	out := make([]SizeClass, len(sizes))
	copy(out, sizes)
	return out
}

// ParseSizeClass validates n against the supported widths.
// Returns ErrUnsupportedSizeClass if n is not a member.
func ParseSizeClass(n int) (SizeClass, error) {
	for _, s := range sizes {
		if int(s) == n {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: %d", ErrUnsupportedSizeClass, n)
}

// BigEnoughFor returns the smallest size class able to hold n bytes.
func BigEnoughFor(n int) (SizeClass, bool) {
	for _, s := range sizes {
		if int(s) >= n {
			return s, true
		}
	}
	return 0, false
}

// Bytes returns the width as an int for slice arithmetic.
func (s SizeClass) Bytes() int {
	return int(s)
}

// Valid reports whether s is one of the supported widths.
func (s SizeClass) Valid() bool {
	_, err := ParseSizeClass(int(s))
	return err == nil
}

func (s SizeClass) String() string {
	return strconv.Itoa(int(s)) + "B"
}
