package storage

import "sync"

// ShardedPool partitions the page-id space across N independent Shards by
// page_id mod N (spec.md §4.3), routing point operations to the owning
// shard and round-robining New allocations across shards so allocation
// traffic spreads out over time. Grounded on the teacher's
// pkg/concurrent.ShardedLRUCache — a fixed array of independently-locked
// shards plus a hashed/modulo routing function — generalized from a cache
// keyed by string hash to a buffer pool keyed by page_id mod N.
type ShardedPool struct {
	shards []*Shard

	mu     sync.Mutex
	cursor int
}

// NewShardedPool creates numShards Shards, each with poolSizePerShard
// frames. newDisk and newLog are invoked once per shard index to build
// that shard's DiskManager and (optional, may return nil) LogManager —
// e.g. one data file and one log file per shard.
func NewShardedPool(numShards, poolSizePerShard int, newDisk func(shardIndex int) DiskManager, newLog func(shardIndex int) LogManager) *ShardedPool {
	shards := make([]*Shard, numShards)
	for i := 0; i < numShards; i++ {
		var logMgr LogManager
		if newLog != nil {
			logMgr = newLog(i)
		}
		shards[i] = NewShard(poolSizePerShard, numShards, i, newDisk(i), logMgr)
	}
	return &ShardedPool{shards: shards}
}

// shardFor returns the shard owning pageID.
func (sp *ShardedPool) shardFor(pageID PageID) *Shard {
	n := PageID(len(sp.shards))
	idx := pageID % n
	if idx < 0 {
		idx += n
	}
	return sp.shards[idx]
}

// Fetch dispatches to the shard owning pageID.
func (sp *ShardedPool) Fetch(pageID PageID) (*Page, bool) {
	return sp.shardFor(pageID).Fetch(pageID)
}

// Unpin dispatches to the shard owning pageID.
func (sp *ShardedPool) Unpin(pageID PageID, isDirty bool) bool {
	return sp.shardFor(pageID).Unpin(pageID, isDirty)
}

// Flush dispatches to the shard owning pageID.
func (sp *ShardedPool) Flush(pageID PageID) bool {
	return sp.shardFor(pageID).Flush(pageID)
}

// Delete dispatches to the shard owning pageID.
func (sp *ShardedPool) Delete(pageID PageID) bool {
	return sp.shardFor(pageID).Delete(pageID)
}

// FlushAll flushes every shard, in index order.
func (sp *ShardedPool) FlushAll() {
	for _, shard := range sp.shards {
		shard.FlushAll()
	}
}

// PoolSize returns the total frame count across all shards.
func (sp *ShardedPool) PoolSize() int {
	total := 0
	for _, shard := range sp.shards {
		total += len(shard.frames)
	}
	return total
}

// NumShards returns the number of shards.
func (sp *ShardedPool) NumShards() int {
	return len(sp.shards)
}

// New cycles through shards starting at the pool's round-robin cursor,
// attempting New on each until one succeeds or all have failed. The
// cursor advances exactly once per outer call — not once per shard
// attempted — so allocation traffic is spread evenly across shards over
// time even when some shards are momentarily full. The cursor is guarded
// by the pool's own mutex, distinct from any shard's mutex: at most one
// shard mutex is ever held at a time (spec.md §5).
func (sp *ShardedPool) New() (*Page, PageID, bool) {
	sp.mu.Lock()
	start := sp.cursor
	sp.cursor = (sp.cursor + 1) % len(sp.shards)
	sp.mu.Unlock()

	n := len(sp.shards)
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		if page, pageID, ok := sp.shards[idx].New(); ok {
			return page, pageID, true
		}
	}
	return nil, InvalidPageID, false
}

// Stats aggregates per-shard hit/miss/eviction counters.
func (sp *ShardedPool) Stats() map[string]int64 {
	total := map[string]int64{"hits": 0, "misses": 0, "evictions": 0, "size": 0, "capacity": 0}
	for _, shard := range sp.shards {
		for k, v := range shard.Stats() {
			total[k] += v
		}
	}
	return total
}
