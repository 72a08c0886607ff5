// This file implements LFU eviction.

package eviction

// lfuNode represents one key tracked by LFU.
type lfuNode struct {
	key  string
	freq int // how many times this key was accessed

	// seq is bumped on every insert and access. When several keys share the
	// lowest frequency, the one with the smallest seq (the stalest) is
	// evicted, so a key that was just inserted or touched is never the
	// victim of a tie.
	seq uint64
}

type lfu struct {
	// nodes lets us quickly find the node for a key.
	nodes map[string]*lfuNode

	// freqMap groups keys by how many times they were accessed.
	freqMap map[int]map[string]*lfuNode

	// minFreq keeps track of the smallest frequency currently present.
	// This avoids scanning the entire map on eviction.
	minFreq int

	// clock supplies seq values.
	clock uint64
}

func newLFU() *lfu {
	return &lfu{
		nodes:   make(map[string]*lfuNode),
		freqMap: make(map[int]map[string]*lfuNode),
	}
}

// OnGet bumps the key's frequency and moves it between buckets.
func (l *lfu) OnGet(k string) {
	n, ok := l.nodes[k]
	if !ok {
		return
	}

	old := n.freq
	n.freq++
	l.clock++
	n.seq = l.clock

	delete(l.freqMap[old], k)
	if len(l.freqMap[old]) == 0 {
		delete(l.freqMap, old)
		if l.minFreq == old {
			l.minFreq++
		}
	}

	if l.freqMap[n.freq] == nil {
		l.freqMap[n.freq] = make(map[string]*lfuNode)
	}
	l.freqMap[n.freq][k] = n
}

// OnPut starts tracking a new key with frequency 1.
func (l *lfu) OnPut(k string) {
	if _, ok := l.nodes[k]; ok {
		return
	}

	l.clock++
	n := &lfuNode{key: k, freq: 1, seq: l.clock}
	l.nodes[k] = n

	if l.freqMap[1] == nil {
		l.freqMap[1] = make(map[string]*lfuNode)
	}
	l.freqMap[1][k] = n

	// A new key with freq=1 exists, so minFreq must be 1.
	l.minFreq = 1
}

// Evict removes the key with the lowest frequency (minFreq). Ties are broken
// by age: the key least recently inserted or accessed goes first.
func (l *lfu) Evict() string {
	bucket := l.freqMap[l.minFreq]
	if len(bucket) == 0 {
		// minFreq can go stale after Remove or repeated evictions.
		l.minFreq = 0
		for f, b := range l.freqMap {
			if len(b) == 0 {
				delete(l.freqMap, f)
				continue
			}
			if l.minFreq == 0 || f < l.minFreq {
				l.minFreq = f
			}
		}
		bucket = l.freqMap[l.minFreq]
	}

	var victim *lfuNode
	for _, n := range bucket {
		if victim == nil || n.seq < victim.seq {
			victim = n
		}
	}
	if victim == nil {
		return ""
	}

	delete(bucket, victim.key)
	delete(l.nodes, victim.key)
	return victim.key
}

// Remove is called when a key is explicitly removed (not because of
// eviction).
func (l *lfu) Remove(k string) {
	n, ok := l.nodes[k]
	if !ok {
		return
	}
	delete(l.freqMap[n.freq], k)
	delete(l.nodes, k)
}

// Reset drops all bookkeeping.
func (l *lfu) Reset() {
	l.nodes = make(map[string]*lfuNode)
	l.freqMap = make(map[int]map[string]*lfuNode)
	l.minFreq = 0
	l.clock = 0
}
