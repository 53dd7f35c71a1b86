package rangelock

import (
	"fmt"
	"math"
)

// MaxLast is the largest value a Range may end at.
//
// The interval container stores ranges half-open, so Last+1 must not
// overflow.
const MaxLast = math.MaxInt - 1

// Range is an inclusive span [Start, Last] of a linear address space, such
// as byte offsets in a file or page numbers.
type Range struct {
	Start int
	Last  int
}

// Full returns the range covering the whole address space. Locking it
// excludes (or shares with) every other range.
func Full() Range {
	return Range{Start: 0, Last: MaxLast}
}

// Valid reports whether r is a well-formed range.
func (r Range) Valid() bool {
	return r.Start <= r.Last && r.Last <= MaxLast
}

// Overlaps reports whether r and o share at least one point.
func (r Range) Overlaps(o Range) bool {
	return r.Start <= o.Last && o.Start <= r.Last
}

// Contains reports whether every point of o lies within r.
func (r Range) Contains(o Range) bool {
	return r.Start <= o.Start && o.Last <= r.Last
}

// Len returns the number of points in r.
func (r Range) Len() uint64 {
	return uint64(r.Last-r.Start) + 1
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d]", r.Start, r.Last)
}

func mustValid(r Range) {
	if !r.Valid() {
		panic("rangelock: invalid range " + r.String())
	}
}
