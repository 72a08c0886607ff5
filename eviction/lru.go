// This file implements LRU eviction.

package eviction

// lruNode represents ONE key inside the LRU structure. We use a
// doubly-linked list to track usage order.
type lruNode struct {
	key  string
	prev *lruNode
	next *lruNode
}

// lru is the concrete implementation of the LRU eviction policy.
type lru struct {
	// nodes maps cache keys to their corresponding list nodes.
	// This allows us to find and move nodes in O(1) time.
	nodes map[string]*lruNode

	// head points to the MOST recently used key.
	head *lruNode

	// tail points to the LEAST recently used key.
	tail *lruNode
}

func newLRU() *lru {
	return &lru{nodes: make(map[string]*lruNode)}
}

// OnGet is called whenever a key is read from the cache. An accessed key
// becomes "recently used", so its node moves to the front of the list.
func (l *lru) OnGet(k string) {
	if n, ok := l.nodes[k]; ok {
		l.moveToFront(n)
	}
}

// OnPut is called whenever a key is added to the cache. Overwriting an
// existing key counts as an access.
func (l *lru) OnPut(k string) {
	if n, ok := l.nodes[k]; ok {
		l.moveToFront(n)
		return
	}
	n := &lruNode{key: k}
	l.nodes[k] = n
	l.addFront(n)
}

// Evict removes and returns the LEAST recently used key.
// That key is always at the tail of the list.
func (l *lru) Evict() string {
	if l.tail == nil {
		return ""
	}
	k := l.tail.key
	l.remove(l.tail)
	delete(l.nodes, k)
	return k
}

// Remove is called when a key is explicitly removed (not evicted due to
// capacity). This keeps LRU's internal state consistent.
func (l *lru) Remove(k string) {
	if n, ok := l.nodes[k]; ok {
		l.remove(n)
		delete(l.nodes, k)
	}
}

// Reset drops all bookkeeping.
func (l *lru) Reset() {
	l.nodes = make(map[string]*lruNode)
	l.head = nil
	l.tail = nil
}

// addFront adds a node to the front of the linked list, marking it as
// most recently used.
func (l *lru) addFront(n *lruNode) {
	n.prev = nil
	n.next = l.head
	if l.head != nil {
		l.head.prev = n
	}
	l.head = n

	// If the list was empty, head and tail are the same.
	if l.tail == nil {
		l.tail = n
	}
}

// remove unlinks a node from the list, updating head and tail if needed.
func (l *lru) remove(n *lruNode) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
}

// moveToFront marks a node as most recently used.
func (l *lru) moveToFront(n *lruNode) {
	if l.head == n {
		return
	}
	l.remove(n)
	l.addFront(n)
}
