package rangelock

import (
	"sync/atomic"

	"github.com/biogo/store/interval"
)

// Node is one acquisition of a Range, as a reader or as a writer.
//
// A Node belongs to the goroutine that locks it. It may be reused for a new
// acquisition after it has been released, but it must not be copied, shared
// or locked again while it is published in a Tree.
//
// The zero value describes the single-point range [0,0].
type Node struct {
	_ noCopy

	r Range

	// reader is written by the owner under Tree.mu before the node is
	// published (and by Downgrade); other goroutines only read it under
	// Tree.mu.
	reader bool

	// blocking is the number of published, intersecting, conflicting nodes
	// this node waits for. It is modified only under Tree.mu; the owner
	// loads it without the mutex while waiting.
	blocking atomic.Int32

	// seq orders the node among every insertion into its tree.
	seq uint64

	// wake receives a token when blocking drops to zero. Allocated before
	// the node is first published and never replaced afterwards.
	wake chan struct{}

	// tree is the Tree the node is published in, nil otherwise.
	tree *Tree
}

// NewNode returns an unpublished writer node for [start, last].
func NewNode(start, last int) *Node {
	n := &Node{}
	n.Init(start, last)
	return n
}

// Init sets the range of an unpublished node. It panics if the range is
// invalid or the node is in a tree.
func (n *Node) Init(start, last int) {
	if n.tree != nil {
		panic("rangelock: Init of published node")
	}
	r := Range{Start: start, Last: last}
	mustValid(r)
	n.r = r
	n.reader = false
}

// Range returns the range of the node.
func (n *Node) Range() Range {
	return n.r
}

// Reader reports whether the node was last acquired, or downgraded to, a
// reader.
func (n *Node) Reader() bool {
	return n.reader
}

// Blocking returns the number of nodes n is still waiting for. Zero means
// the node is held (or not published).
func (n *Node) Blocking() int {
	return int(n.blocking.Load())
}

// prepare readies n for publication by its owner.
func (n *Node) prepare() {
	if n.tree != nil {
		panic("rangelock: lock of published node " + n.r.String())
	}
	mustValid(n.r)
	if n.wake == nil {
		n.wake = make(chan struct{}, 1)
		return
	}
	// A wakeup posted after the previous acquisition had already observed
	// its grant may still be buffered.
	select {
	case <-n.wake:
	default:
	}
}

// entry is the view of a Node stored in the interval container. The
// container owns its linkage while the node is published; the owner keeps
// everything else.
type entry Node

func (e *entry) node() *Node {
	return (*Node)(e)
}

func (e *entry) ID() uintptr {
	return uintptr(e.seq)
}

// Range is half-open, as the container expects non-empty ranges.
func (e *entry) Range() interval.IntRange {
	return interval.IntRange{Start: e.r.Start, End: e.r.Last + 1}
}

func (e *entry) Overlap(b interval.IntRange) bool {
	return query(e.r).Overlap(b)
}

// query is an inclusive range used to search the container.
type query Range

func (q query) Overlap(b interval.IntRange) bool {
	return q.Start < b.End && b.Start <= q.Last
}
