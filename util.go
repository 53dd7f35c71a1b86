package rangelock

import (
	"runtime"
	"time"
)

// noCopy may be added to structs which must not be copied
// after the first use.
//
// See https://golang.org/issues/8005#issuecomment-190753527
// for details.
//
// Note that it must not be embedded, due to the Lock and Unlock methods.
type noCopy struct{}

// Lock is a no-op used by -copylocks checker from `go vet`.
func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

const maxSpins = 16

// delay backs off a spinning waiter: it yields the processor for the first
// maxSpins rounds, then sleeps briefly and starts over.
func delay(spins *int) {
	if *spins < maxSpins {
		*spins++
		runtime.Gosched()
		return
	}
	*spins = 0
	// time.Sleep with non-zero duration works effectively as backoff under
	// high concurrency.
	// Derived from Facebook/folly's Sleeper.
	time.Sleep(50 * time.Microsecond)
}
