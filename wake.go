package rangelock

// wakeQ collects the waiters whose blocking count reached zero while the
// tree mutex was held. Wakeups are posted only after the mutex is released.
type wakeQ struct {
	buf  [4]chan struct{}
	list []chan struct{}
}

// put drops one blocker from b and queues b's waiter once it has none left.
// Must be called with the tree mutex held.
func (q *wakeQ) put(b *Node) {
	switch c := b.blocking.Add(-1); {
	case c == 0:
		if q.list == nil {
			q.list = q.buf[:0]
		}
		q.list = append(q.list, b.wake)
	case c < 0:
		panic("rangelock: blocking count underflow on " + b.r.String())
	}
}

// wake posts a token to every queued waiter and returns how many there were.
func (q *wakeQ) wake() int {
	for _, c := range q.list {
		select {
		case c <- struct{}{}:
		default:
		}
	}
	return len(q.list)
}
