package storage

import (
	"container/list"
	"sync"
)

// Replacer tracks evictable frames and hands out a victim in a defined
// order. Implementations must be safe for concurrent use; all four
// operations are mutually exclusive under a single internal mutex, the
// same discipline the teacher's sharded LRU cache (pkg/concurrent) uses
// for its per-shard list+map pair.
type Replacer interface {
	// Pin removes frameID from the tracked set, if present. No-op otherwise.
	Pin(frameID int)
	// Unpin inserts frameID as the newest eviction candidate, unless it is
	// already tracked, in which case it is a no-op: a duplicate Unpin must
	// not refresh recency, or victim order stops being deterministic when
	// callers drop the last pin on the same frame more than once.
	Unpin(frameID int)
	// Victim removes and returns the oldest tracked candidate. Returns
	// (0, false) if the tracked set is empty — not an error.
	Victim() (int, bool)
	// Size returns the number of tracked entries.
	Size() int
}

// LRUReplacer orders evictable frames by insertion recency: newest at the
// head, oldest at the tail. Victim pops the tail. A hash map from frame id
// to list element makes Pin/Unpin/Victim all O(1), the same doubly-linked
// list + map shape as pkg/concurrent.ShardedLRUCache's per-shard lruList.
type LRUReplacer struct {
	mu      sync.Mutex
	order   *list.List
	entries map[int]*list.Element
}

// NewLRUReplacer creates an empty LRU replacer.
func NewLRUReplacer() *LRUReplacer {
	return &LRUReplacer{
		order:   list.New(),
		entries: make(map[int]*list.Element),
	}
}

// Pin implements Replacer.
func (r *LRUReplacer) Pin(frameID int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	elem, ok := r.entries[frameID]
	if !ok {
		return
	}
	r.order.Remove(elem)
	delete(r.entries, frameID)
}

// Unpin implements Replacer.
func (r *LRUReplacer) Unpin(frameID int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[frameID]; ok {
		return
	}
	r.entries[frameID] = r.order.PushFront(frameID)
}

// Victim implements Replacer.
func (r *LRUReplacer) Victim() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	back := r.order.Back()
	if back == nil {
		return 0, false
	}
	frameID := back.Value.(int)
	r.order.Remove(back)
	delete(r.entries, frameID)
	return frameID, true
}

// Size implements Replacer.
func (r *LRUReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.entries)
}
