package rangelock

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

type waitMode int

const (
	uninterruptible waitMode = iota
	interruptible
	killable
)

// Lock acquires n as a writer, blocking until no published node overlapping
// n's range remains ahead of it.
func (t *Tree) Lock(n *Node) {
	_ = t.acquire(context.Background(), n, false, uninterruptible)
}

// LockContext is like Lock but gives up when ctx is done. On failure it
// returns a *WaitError and n is not held.
func (t *Tree) LockContext(ctx context.Context, n *Node) error {
	return t.acquire(ctx, n, false, interruptible)
}

// LockKillable is like Lock but gives up only when ctx is canceled with the
// cause ErrKilled.
func (t *Tree) LockKillable(ctx context.Context, n *Node) error {
	return t.acquire(ctx, n, false, killable)
}

// LockTimeout is like Lock but gives up after d with an ErrTimeout error.
func (t *Tree) LockTimeout(n *Node, d time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return t.acquire(ctx, n, false, interruptible)
}

// RLock acquires n as a reader, blocking until no overlapping writer
// remains ahead of it.
func (t *Tree) RLock(n *Node) {
	_ = t.acquire(context.Background(), n, true, uninterruptible)
}

// RLockContext is like RLock but gives up when ctx is done.
func (t *Tree) RLockContext(ctx context.Context, n *Node) error {
	return t.acquire(ctx, n, true, interruptible)
}

// RLockKillable is like RLock but gives up only when ctx is canceled with
// the cause ErrKilled.
func (t *Tree) RLockKillable(ctx context.Context, n *Node) error {
	return t.acquire(ctx, n, true, killable)
}

// RLockTimeout is like RLock but gives up after d with an ErrTimeout error.
func (t *Tree) RLockTimeout(n *Node, d time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return t.acquire(ctx, n, true, interruptible)
}

// TryLock acquires n as a writer only if nothing overlaps it. On failure n
// is left untouched and may be retried.
func (t *Tree) TryLock(n *Node) bool {
	return t.tryAcquire(n, false)
}

// TryRLock acquires n as a reader only if no writer overlaps it.
func (t *Tree) TryRLock(n *Node) bool {
	return t.tryAcquire(n, true)
}

// Unlock releases a node held as a writer.
func (t *Tree) Unlock(n *Node) {
	t.release(n, false)
}

// RUnlock releases a node held as a reader.
func (t *Tree) RUnlock(n *Node) {
	t.release(n, true)
}

// WriteRange write-locks [start, last] with a fresh node and returns the
// function releasing it.
func (t *Tree) WriteRange(start, last int) func() {
	n := NewNode(start, last)
	t.Lock(n)
	return func() { t.Unlock(n) }
}

// ReadRange read-locks [start, last] with a fresh node and returns the
// function releasing it.
func (t *Tree) ReadRange(start, last int) func() {
	n := NewNode(start, last)
	t.RLock(n)
	return func() { t.RUnlock(n) }
}

func (t *Tree) acquire(ctx context.Context, n *Node, reader bool, mode waitMode) error {
	n.prepare()

	t.mu.lock()
	n.reader = reader
	var blocking int32
	t.forEachOverlap(n.r, func(b *Node) bool {
		if !(reader && b.reader) {
			blocking++
		}
		return false
	})
	n.blocking.Store(blocking)
	t.insert(n)
	t.mu.unlock()

	if blocking == 0 {
		t.stats.acquired.Add(1)
		return nil
	}

	t.stats.contended.Add(1)
	t.event(zerolog.TraceLevel).
		Stringer("range", n.r).
		Bool("reader", reader).
		Int32("blocking", blocking).
		Msg("waiting for range")

	return t.wait(ctx, n, mode)
}

// wait parks the owner of n until its blocking count reaches zero or the
// wait is abandoned according to mode.
func (t *Tree) wait(ctx context.Context, n *Node, mode waitMode) error {
	var done <-chan struct{}
	if mode != uninterruptible {
		done = ctx.Done()
	}
	for n.blocking.Load() != 0 {
		select {
		case <-n.wake:
		case <-done:
			if mode == killable && !errors.Is(context.Cause(ctx), ErrKilled) {
				// Not fatal: keep waiting without watching ctx.
				done = nil
				continue
			}
			if t.cancel(n) {
				err := waitErrorFor(ctx, n.r)
				t.stats.canceled.Add(1)
				t.event(zerolog.DebugLevel).
					Stringer("range", n.r).
					Bool("reader", n.reader).
					Err(err).
					Msg("range wait abandoned")
				return err
			}
		}
	}
	t.stats.acquired.Add(1)
	return nil
}

// cancel withdraws the waiting node n. It reports false, leaving n held, if
// n was granted before the tree mutex could be taken.
func (t *Tree) cancel(n *Node) bool {
	var q wakeQ

	t.mu.lock()
	if n.blocking.Load() == 0 {
		t.mu.unlock()
		return false
	}
	t.remove(n)
	t.forEachOverlap(n.r, func(b *Node) bool {
		if n.reader && b.reader {
			return false
		}
		// Only nodes inserted after n counted it as a blocker.
		if n.seq < b.seq {
			q.put(b)
		}
		return false
	})
	t.mu.unlock()

	q.wake()
	return true
}

func (t *Tree) tryAcquire(n *Node, reader bool) bool {
	n.prepare()

	t.mu.lock()
	var blocked bool
	t.forEachOverlap(n.r, func(b *Node) bool {
		blocked = !(reader && b.reader)
		return blocked
	})
	if blocked {
		t.mu.unlock()
		t.stats.tryFailed.Add(1)
		return false
	}
	n.reader = reader
	n.blocking.Store(0)
	t.insert(n)
	t.mu.unlock()

	t.stats.acquired.Add(1)
	return true
}

func (t *Tree) release(n *Node, reader bool) {
	switch {
	case n.tree != t:
		panic("rangelock: unlock of unlocked range " + n.r.String())
	case n.blocking.Load() != 0:
		panic("rangelock: unlock of range " + n.r.String() + " that is still waiting")
	case n.reader != reader && reader:
		panic("rangelock: RUnlock of write-locked range " + n.r.String())
	case n.reader != reader:
		panic("rangelock: Unlock of read-locked range " + n.r.String())
	}

	var q wakeQ

	t.mu.lock()
	t.remove(n)
	// Every node still overlapping n was inserted while n was published, so
	// each conflicting one counted n.
	t.forEachOverlap(n.r, func(b *Node) bool {
		if !(n.reader && b.reader) {
			q.put(b)
		}
		return false
	})
	t.mu.unlock()

	q.wake()
	t.stats.released.Add(1)
}

// Downgrade turns n, held as a writer, into a reader without releasing it.
// Readers that were waiting only for n are granted.
func (t *Tree) Downgrade(n *Node) {
	switch {
	case n.tree != t:
		panic("rangelock: downgrade of unlocked range " + n.r.String())
	case n.blocking.Load() != 0:
		panic("rangelock: downgrade of range " + n.r.String() + " that is still waiting")
	case n.reader:
		panic("rangelock: downgrade of read-locked range " + n.r.String())
	}

	var q wakeQ

	t.mu.lock()
	t.forEachOverlap(n.r, func(b *Node) bool {
		if b != n && b.reader {
			q.put(b)
		}
		return false
	})
	n.reader = true
	t.mu.unlock()

	woken := q.wake()
	t.stats.downgraded.Add(1)
	t.event(zerolog.DebugLevel).
		Stringer("range", n.r).
		Int("woken", woken).
		Msg("range downgraded")
}
