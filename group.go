package rangelock

import (
	"context"

	"github.com/llxisdsh/pb"
)

// Group keeps one Tree per key, such as a file name or an inode number, and
// lets callers range-lock any of them.
//
// Features:
//   - Infinite Keys: trees are created on first use.
//   - Auto-Cleanup: a key's tree is dropped once no node references it.
//
// Usage:
//
//	var group rangelock.Group[string]
//
//	n := rangelock.NewNode(off, off+len(buf)-1)
//	group.Lock("data.bin", n)
//	write("data.bin", off, buf)
//	group.Unlock("data.bin", n)
//
// A node must be unlocked with the same key it was locked with.
type Group[K comparable] struct {
	_    noCopy
	opts []Option
	m    pb.MapOf[K, *groupEntry]
}

type groupEntry struct {
	tree *Tree
	ref  int32
}

// NewGroup returns a Group whose trees are configured by opts.
func NewGroup[K comparable](opts ...Option) *Group[K] {
	return &Group[K]{opts: opts}
}

// ref returns k's tree, creating it if needed, and pins it.
func (g *Group[K]) ref(k K) *Tree {
	e, _ := g.m.ProcessEntry(
		k,
		func(l *pb.EntryOf[K, *groupEntry]) (*pb.EntryOf[K, *groupEntry], *groupEntry, bool) {
			if l != nil {
				l.Value.ref++
				return l, l.Value, true
			}
			e := &groupEntry{tree: New(g.opts...), ref: 1}
			return &pb.EntryOf[K, *groupEntry]{Value: e}, e, false
		},
	)
	return e.tree
}

// unref drops one pin on k's tree, deleting it when none remain.
func (g *Group[K]) unref(k K) {
	_, ok := g.m.ProcessEntry(
		k,
		func(l *pb.EntryOf[K, *groupEntry]) (*pb.EntryOf[K, *groupEntry], *groupEntry, bool) {
			if l == nil {
				return nil, nil, false
			}
			l.Value.ref--
			if l.Value.ref <= 0 {
				return nil, nil, true
			}
			return l, l.Value, true
		},
	)
	if !ok {
		panic("rangelock: unlock of unknown group key")
	}
}

// lookup returns k's tree without pinning it. The caller must hold a pin.
func (g *Group[K]) lookup(k K) *Tree {
	e, ok := g.m.Load(k)
	if !ok {
		panic("rangelock: unlock of unknown group key")
	}
	return e.tree
}

// Tree returns the tree currently kept for k, or nil if no node references
// it.
func (g *Group[K]) Tree(k K) *Tree {
	if e, ok := g.m.Load(k); ok {
		return e.tree
	}
	return nil
}

func (g *Group[K]) Lock(k K, n *Node) {
	g.ref(k).Lock(n)
}

func (g *Group[K]) RLock(k K, n *Node) {
	g.ref(k).RLock(n)
}

func (g *Group[K]) LockContext(ctx context.Context, k K, n *Node) error {
	if err := g.ref(k).LockContext(ctx, n); err != nil {
		g.unref(k)
		return err
	}
	return nil
}

func (g *Group[K]) RLockContext(ctx context.Context, k K, n *Node) error {
	if err := g.ref(k).RLockContext(ctx, n); err != nil {
		g.unref(k)
		return err
	}
	return nil
}

func (g *Group[K]) TryLock(k K, n *Node) bool {
	if !g.ref(k).TryLock(n) {
		g.unref(k)
		return false
	}
	return true
}

func (g *Group[K]) TryRLock(k K, n *Node) bool {
	if !g.ref(k).TryRLock(n) {
		g.unref(k)
		return false
	}
	return true
}

func (g *Group[K]) Unlock(k K, n *Node) {
	g.lookup(k).Unlock(n)
	g.unref(k)
}

func (g *Group[K]) RUnlock(k K, n *Node) {
	g.lookup(k).RUnlock(n)
	g.unref(k)
}

func (g *Group[K]) Downgrade(k K, n *Node) {
	g.lookup(k).Downgrade(n)
}
