package rangelock

import (
	"sync"
	"sync/atomic"

	"github.com/biogo/store/interval"
	"github.com/rs/zerolog"

	"github.com/llxisdsh/rangelock/internal/opt"
)

// Tree coordinates the range locks of one protected resource.
//
// Two acquisitions conflict only if their ranges overlap and at least one of
// them is a writer. Disjoint ranges, and overlapping readers, proceed in
// parallel.
//
// Usage:
//
//	var t rangelock.Tree
//
//	n := rangelock.NewNode(0, 4095)
//	t.Lock(n)
//	write(file[0:4096])
//	t.Unlock(n)
//
// It is zero-value usable. A Tree must not be copied after first use.
type Tree struct {
	_ noCopy

	mu treeLock

	// Protected by mu.
	items    interval.IntTree
	leftmost *Node
	seq      uint64

	log *zerolog.Logger

	_     opt.Pad_
	stats treeStats
}

// Option configures a Tree.
type Option func(*Tree)

// WithLogger makes the tree report contention, cancellations and downgrades
// to l.
func WithLogger(l zerolog.Logger) Option {
	return func(t *Tree) {
		t.log = &l
	}
}

// WithFairLock guards the tree with a TicketLock instead of sync.Mutex, so
// callers enter the lock and unlock paths in arrival order.
func WithFairLock() Option {
	return func(t *Tree) {
		t.mu.fair = true
	}
}

// New returns an empty Tree configured by opts.
func New(opts ...Option) *Tree {
	t := &Tree{}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Len returns the number of nodes currently in the tree, held or waiting.
func (t *Tree) Len() int {
	t.mu.lock()
	defer t.mu.unlock()
	return t.items.Len()
}

// Stats returns a snapshot of the tree counters.
func (t *Tree) Stats() Stats {
	s := t.stats.snapshot()
	s.Published = t.Len()
	return s
}

// mayOverlap reports whether r can intersect anything in the tree, using
// only the cached leftmost node and the maximum end kept at the container
// root. A false result is definitive.
func (t *Tree) mayOverlap(r Range) bool {
	root := t.items.Root
	if root == nil {
		return false
	}
	return r.Start < root.Range.End && t.leftmost.r.Start <= r.Last
}

// forEachOverlap calls fn for every node intersecting r, stopping early if
// fn returns true.
func (t *Tree) forEachOverlap(r Range, fn func(b *Node) (stop bool)) {
	if !t.mayOverlap(r) {
		return
	}
	t.items.DoMatching(func(e interval.IntInterface) bool {
		return fn(e.(*entry).node())
	}, query(r))
}

// insert publishes n. Must be called with mu held.
func (t *Tree) insert(n *Node) {
	n.seq = t.seq
	t.seq++
	if err := t.items.Insert((*entry)(n), false); err != nil {
		panic("rangelock: insert " + n.r.String() + ": " + err.Error())
	}
	if t.leftmost == nil || n.r.Start < t.leftmost.r.Start {
		t.leftmost = n
	}
	n.tree = t
}

// remove unpublishes n. Must be called with mu held.
func (t *Tree) remove(n *Node) {
	if err := t.items.Delete((*entry)(n), false); err != nil {
		panic("rangelock: remove " + n.r.String() + ": " + err.Error())
	}
	n.tree = nil
	if t.leftmost == n {
		t.leftmost = nil
		if m := t.items.Min(); m != nil {
			t.leftmost = m.(*entry).node()
		}
	}
}

func (t *Tree) event(lvl zerolog.Level) *zerolog.Event {
	if t.log == nil {
		return nil
	}
	return t.log.WithLevel(lvl)
}

// treeLock is the mutex protecting a Tree.
type treeLock struct {
	fair bool
	mu   sync.Mutex
	tl   TicketLock
}

func (l *treeLock) lock() {
	if l.fair {
		l.tl.Lock()
		return
	}
	l.mu.Lock()
}

func (l *treeLock) unlock() {
	if l.fair {
		l.tl.Unlock()
		return
	}
	l.mu.Unlock()
}

// Stats is a snapshot of the activity of a Tree.
type Stats struct {
	// Acquired counts granted acquisitions, blocking or try.
	Acquired uint64
	// Contended counts blocking acquisitions that had to wait.
	Contended uint64
	// Canceled counts waits abandoned through cancellation or timeout.
	Canceled uint64
	// TryFailed counts try-acquisitions refused because of a conflict.
	TryFailed uint64
	// Downgraded counts writer to reader downgrades.
	Downgraded uint64
	// Released counts unlocks.
	Released uint64
	// Published is the number of nodes in the tree when the snapshot was
	// taken.
	Published int
}

type treeStats struct {
	acquired   atomic.Uint64
	contended  atomic.Uint64
	canceled   atomic.Uint64
	tryFailed  atomic.Uint64
	downgraded atomic.Uint64
	released   atomic.Uint64
}

func (s *treeStats) snapshot() Stats {
	return Stats{
		Acquired:   s.acquired.Load(),
		Contended:  s.contended.Load(),
		Canceled:   s.canceled.Load(),
		TryFailed:  s.tryFailed.Load(),
		Downgraded: s.downgraded.Load(),
		Released:   s.released.Load(),
	}
}
