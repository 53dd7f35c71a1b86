package check

import (
	"fmt"
	"sync/atomic"
)

const writerBit = 1 << 31

// Shadow mirrors the occupancy of a linear address space of fixed size.
// Goroutines report when they enter and leave a range under a lock; Shadow
// reports any overlap a correct reader/writer lock would have prevented.
type Shadow struct {
	slots []atomic.Uint32
}

// NewShadow returns a shadow for [0, span).
func NewShadow(span int) *Shadow {
	return &Shadow{slots: make([]atomic.Uint32, span)}
}

// Span returns the size of the tracked address space.
func (s *Shadow) Span() int {
	return len(s.slots)
}

// Violation describes a slot that was entered while a conflicting holder
// was inside.
type Violation struct {
	Slot   int
	Reader bool
	State  uint32
}

func (v *Violation) Error() string {
	return fmt.Sprintf("slot %d entered as %s while held by %d readers and %d writers",
		v.Slot, kind(v.Reader), v.State&^writerBit, v.State>>31)
}

func kind(reader bool) string {
	if reader {
		return "reader"
	}
	return "writer"
}

// Enter marks every slot of [start, last] as occupied. On conflict the
// slots entered so far are released again and a *Violation is returned.
func (s *Shadow) Enter(start, last int, reader bool) error {
	for i := start; i <= last; i++ {
		var (
			old uint32
			ok  bool
		)
		if reader {
			old = s.slots[i].Add(1) - 1
			ok = old&writerBit == 0
			if !ok {
				s.slots[i].Add(^uint32(0))
			}
		} else {
			ok = s.slots[i].CompareAndSwap(0, writerBit)
			if !ok {
				old = s.slots[i].Load()
			}
		}
		if !ok {
			if i > start {
				s.Leave(start, i-1, reader)
			}
			return &Violation{Slot: i, Reader: reader, State: old}
		}
	}
	return nil
}

// Leave releases every slot of [start, last].
func (s *Shadow) Leave(start, last int, reader bool) {
	for i := start; i <= last; i++ {
		if reader {
			s.slots[i].Add(^uint32(0))
		} else {
			s.slots[i].Store(0)
		}
	}
}

// Downgrade turns the writer occupancy of [start, last] into a single
// reader.
func (s *Shadow) Downgrade(start, last int) {
	for i := start; i <= last; i++ {
		// -writerBit + 1
		s.slots[i].Add(^uint32(writerBit - 2))
	}
}

// Idle reports whether every slot is free.
func (s *Shadow) Idle() bool {
	for i := range s.slots {
		if s.slots[i].Load() != 0 {
			return false
		}
	}
	return true
}
