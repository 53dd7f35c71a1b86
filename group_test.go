package rangelock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGroupBasic(t *testing.T) {
	var g Group[string]

	a := NewNode(0, 9)
	g.Lock("a", a)
	// Another key is another tree: the same range does not conflict.
	b := NewNode(0, 9)
	requireDone(t, async(func() { g.Lock("b", b) }))

	n := NewNode(5, 5)
	done := async(func() { g.RLock("a", n) })
	waitBlocking(t, n, 1)
	requireBlocked(t, done)

	g.Unlock("a", a)
	requireDone(t, done)
	g.RUnlock("a", n)
	g.Unlock("b", b)

	require.Nil(t, g.Tree("a"))
	require.Nil(t, g.Tree("b"))
}

func TestGroupRefCounting(t *testing.T) {
	var g Group[int]

	r1, r2 := NewNode(0, 9), NewNode(5, 14)
	g.RLock(1, r1)
	tr := g.Tree(1)
	require.NotNil(t, tr)
	require.True(t, g.TryRLock(1, r2))
	require.Same(t, tr, g.Tree(1))

	// A failed try must not pin the tree.
	require.False(t, g.TryLock(1, NewNode(9, 9)))
	g.RUnlock(1, r1)
	require.Same(t, tr, g.Tree(1))
	g.RUnlock(1, r2)
	require.Nil(t, g.Tree(1), "tree should be dropped once unreferenced")
}

func TestGroupContext(t *testing.T) {
	g := NewGroup[string](WithFairLock())

	w := NewNode(0, 99)
	g.Lock("f", w)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, g.LockContext(ctx, "f", NewNode(50, 50)), ErrTimeout)
	require.ErrorIs(t, g.RLockContext(ctx, "f", NewNode(50, 50)), ErrTimeout)
	require.Equal(t, 1, g.Tree("f").Len())

	g.Downgrade("f", w)
	require.NoError(t, g.RLockContext(ctx, "f", NewNode(60, 60)))
	require.False(t, g.TryLock("f", NewNode(60, 60)))
	require.True(t, g.TryRLock("f", NewNode(0, 0)))
	require.Equal(t, 3, g.Tree("f").Len())
}

func TestGroupConcurrentKeys(t *testing.T) {
	var g Group[int]
	const keys, workers, loops = 4, 8, 200
	counters := make([]int, keys)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := range workers {
		go func() {
			defer wg.Done()
			n := &Node{}
			for i := range loops {
				k := (w + i) % keys
				n.Init(0, 0)
				g.Lock(k, n)
				counters[k]++
				g.Unlock(k, n)
			}
		}()
	}
	wg.Wait()

	total := 0
	for k, c := range counters {
		total += c
		require.Nil(t, g.Tree(k))
	}
	require.Equal(t, workers*loops, total)
}

func TestGroupUnknownKeyPanics(t *testing.T) {
	var g Group[string]
	require.Panics(t, func() { g.Unlock("missing", NewNode(0, 0)) })
}
