package benchmark

import (
	"sync"

	"github.com/llxisdsh/rangelock"
)

// ============================================================================
// Locker Adapters
// ============================================================================

// RangeLocker locks the inclusive range [start, last] and returns the
// matching unlock.
type RangeLocker interface {
	Lock(start, last int) func()
	RLock(start, last int) func()
}

type treeAdapter struct{ t *rangelock.Tree }

func (a *treeAdapter) Lock(start, last int) func()  { return a.t.WriteRange(start, last) }
func (a *treeAdapter) RLock(start, last int) func() { return a.t.ReadRange(start, last) }

type rwMutexAdapter struct{ mu sync.RWMutex }

func (a *rwMutexAdapter) Lock(int, int) func() {
	a.mu.Lock()
	return a.mu.Unlock
}

func (a *rwMutexAdapter) RLock(int, int) func() {
	a.mu.RLock()
	return a.mu.RUnlock
}

// stripedAdapter covers the address space with fixed stripes, each guarded
// by its own RWMutex, and locks every stripe a range touches in ascending
// order.
type stripedAdapter struct {
	stripe int
	locks  []sync.RWMutex
}

func newStriped(span, stripes int) *stripedAdapter {
	stripe := (span + stripes - 1) / stripes
	return &stripedAdapter{stripe: stripe, locks: make([]sync.RWMutex, stripes)}
}

func (a *stripedAdapter) Lock(start, last int) func() {
	lo, hi := start/a.stripe, last/a.stripe
	for i := lo; i <= hi; i++ {
		a.locks[i].Lock()
	}
	return func() {
		for i := hi; i >= lo; i-- {
			a.locks[i].Unlock()
		}
	}
}

func (a *stripedAdapter) RLock(start, last int) func() {
	lo, hi := start/a.stripe, last/a.stripe
	for i := lo; i <= hi; i++ {
		a.locks[i].RLock()
	}
	return func() {
		for i := hi; i >= lo; i-- {
			a.locks[i].RUnlock()
		}
	}
}

type lockerImpl struct {
	name string
	make func(span int) RangeLocker
}

var lockerImpls = []lockerImpl{
	{"sync.RWMutex", func(int) RangeLocker { return &rwMutexAdapter{} }},
	{"Striped", func(span int) RangeLocker { return newStriped(span, 64) }},
	{"rangelock.Tree", func(int) RangeLocker { return &treeAdapter{rangelock.New()} }},
	{"rangelock.Tree/fair", func(int) RangeLocker {
		return &treeAdapter{rangelock.New(rangelock.WithFairLock())}
	}},
}
