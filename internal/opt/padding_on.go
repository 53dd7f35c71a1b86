//go:build !rangelock_disable_padding

package opt

// Pad_ separates the tree mutex from the statistics counters that every
// acquisition bumps, so counter traffic does not invalidate the lock word.
// Use: go build -tags=rangelock_disable_padding to drop it.
type Pad_ [CacheLineSize_]byte
