// This file implements FIFO eviction.

package eviction

type fifo struct {
	// queue keeps keys in the order they were inserted.
	// The front of the queue (index 0) is the oldest key.
	queue []string

	// set keeps track of which keys are currently in the queue.
	set map[string]struct{}
}

func newFIFO() *fifo {
	return &fifo{
		queue: make([]string, 0),
		set:   make(map[string]struct{}),
	}
}

// OnGet is ignored. FIFO does not care about reads.
func (f *fifo) OnGet(string) {}

// OnPut is called when a key is added to the cache. FIFO only cares about
// the first insertion; re-inserting a tracked key does not move it.
func (f *fifo) OnPut(k string) {
	if _, ok := f.set[k]; ok {
		return
	}
	f.queue = append(f.queue, k)
	f.set[k] = struct{}{}
}

// Evict returns the oldest inserted key.
func (f *fifo) Evict() string {
	if len(f.queue) == 0 {
		return ""
	}
	k := f.queue[0]
	f.queue = f.queue[1:]
	delete(f.set, k)
	return k
}

// Remove is called when a key is explicitly removed from the cache (not
// because of eviction). Keeps the queue and set consistent.
func (f *fifo) Remove(k string) {
	if _, ok := f.set[k]; !ok {
		return
	}
	delete(f.set, k)

	// Remove from queue while preserving order.
	for i, v := range f.queue {
		if v == k {
			f.queue = append(f.queue[:i], f.queue[i+1:]...)
			break
		}
	}
}

// Reset drops all bookkeeping.
func (f *fifo) Reset() {
	f.queue = f.queue[:0]
	f.set = make(map[string]struct{})
}
