// Package queue implements the value-based binary heaps used by graph
// traversal. Items carry a rank, an ascending sort key where lower is a
// better match regardless of the metric.
package queue

// Item is a graph row paired with its rank against the current query.
type Item struct {
	Row  uint32
	Rank float32
}

// Queue is a binary heap over Items. Min-oriented queues pop the best
// candidate first; max-oriented queues keep the worst result on top so a
// bounded result set can evict cheaply.
type Queue struct {
	max   bool
	items []Item
}

// NewMin creates a heap that pops the lowest rank first.
func NewMin(capacity int) *Queue {
	return &Queue{items: make([]Item, 0, capacity)}
}

// NewMax creates a heap that pops the highest rank first.
func NewMax(capacity int) *Queue {
	return &Queue{max: true, items: make([]Item, 0, capacity)}
}

// Len returns the number of items in the queue.
func (q *Queue) Len() int { return len(q.items) }

// Top returns the root item without removing it.
func (q *Queue) Top() (Item, bool) {
	if len(q.items) == 0 {
		return Item{}, false
	}
	return q.items[0], true
}

// Push inserts an item while maintaining the heap invariant.
func (q *Queue) Push(item Item) {
	q.items = append(q.items, item)
	q.siftUp(len(q.items) - 1)
}

// Pop removes and returns the root item.
func (q *Queue) Pop() (Item, bool) {
	n := len(q.items)
	if n == 0 {
		return Item{}, false
	}
	root := q.items[0]
	last := q.items[n-1]
	q.items = q.items[:n-1]
	if n-1 > 0 {
		q.items[0] = last
		q.siftDown(0)
	}
	return root, true
}

// PushBounded inserts into a max-oriented queue keeping at most bound
// items, evicting the worst rank when full. It reports whether the item
// was admitted.
func (q *Queue) PushBounded(item Item, bound int) bool {
	if len(q.items) < bound {
		q.Push(item)
		return true
	}
	if worst := q.items[0]; item.Rank < worst.Rank {
		q.items[0] = item
		q.siftDown(0)
		return true
	}
	return false
}

// Min returns the lowest-ranked item currently in the queue. For
// min-oriented queues this is the root; for max-oriented queues it scans
// the backing slice.
func (q *Queue) Min() (Item, bool) {
	if len(q.items) == 0 {
		return Item{}, false
	}
	if !q.max {
		return q.items[0], true
	}
	best := q.items[0]
	for _, it := range q.items[1:] {
		if it.Rank < best.Rank {
			best = it
		}
	}
	return best, true
}

// Reset empties the queue for reuse, keeping the backing slice.
func (q *Queue) Reset() {
	q.items = q.items[:0]
}

func (q *Queue) before(i, j int) bool {
	if q.max {
		return q.items[i].Rank > q.items[j].Rank
	}
	return q.items[i].Rank < q.items[j].Rank
}

func (q *Queue) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !q.before(i, p) {
			return
		}
		q.items[i], q.items[p] = q.items[p], q.items[i]
		i = p
	}
}

func (q *Queue) siftDown(i int) {
	n := len(q.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		if r := l + 1; r < n && q.before(r, l) {
			best = r
		}
		if !q.before(best, i) {
			return
		}
		q.items[i], q.items[best] = q.items[best], q.items[i]
		i = best
	}
}
