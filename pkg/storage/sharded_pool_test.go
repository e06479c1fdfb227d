package storage

import (
	"path/filepath"
	"testing"
)

func newTestShardedPool(t *testing.T, numShards, poolSizePerShard int) *ShardedPool {
	t.Helper()
	dir := t.TempDir()
	newDisk := func(shardIndex int) DiskManager {
		dm, err := NewFileDiskManager(filepath.Join(dir, "shard"+string(rune('0'+shardIndex))+".db"))
		if err != nil {
			t.Fatalf("NewFileDiskManager(shard %d): %v", shardIndex, err)
		}
		t.Cleanup(func() { dm.Close() })
		return dm
	}
	return NewShardedPool(numShards, poolSizePerShard, newDisk, nil)
}

// Scenario 6: with num_shards=4 and pool_size=1 per shard, four successive
// New calls must land one per shard in round-robin order, and the returned
// page ids must be congruent to their owning shard index mod 4.
func TestShardedPoolNewRoundRobinsAcrossShards(t *testing.T) {
	sp := newTestShardedPool(t, 4, 1)

	seenShardMods := make(map[int64]bool)
	for i := 0; i < 4; i++ {
		_, pageID, ok := sp.New()
		if !ok {
			t.Fatalf("New() call %d failed, want success (each shard has one free frame)", i)
		}
		mod := int64(pageID) % 4
		if mod < 0 {
			mod += 4
		}
		if seenShardMods[mod] {
			t.Fatalf("New() call %d produced page id %d, whose shard (mod %d) was already used; want one id per shard", i, pageID, mod)
		}
		seenShardMods[mod] = true
	}

	if len(seenShardMods) != 4 {
		t.Fatalf("got ids from %d distinct shards, want all 4", len(seenShardMods))
	}

	// All four frames are now pinned and full: a fifth New must fail.
	if _, _, ok := sp.New(); ok {
		t.Fatalf("New() succeeded after every shard's single frame was pinned, want failure")
	}
}

// The round-robin cursor advances exactly once per outer New() call, not
// once per shard attempted internally. Starve shard 0 (pin its one frame)
// and confirm the *next* New() still begins its search at shard 1, not
// shard 2 — i.e. the failed probe of shard 0 inside the first call did not
// itself consume a cursor tick.
func TestShardedPoolCursorAdvancesOncePerOuterCall(t *testing.T) {
	sp := newTestShardedPool(t, 4, 1)

	// Manually fill shard 0's single frame by calling New directly on the
	// pool's internal shard, so every subsequent New() must skip shard 0.
	_, firstID, ok := sp.shards[0].New()
	if !ok {
		t.Fatalf("priming shard 0 failed")
	}
	_ = firstID // left pinned: shard 0 has no free frame and nothing to evict

	// cursor currently at 0. First outer New() should skip shard 0 (full,
	// pinned) and land on shard 1, advancing the cursor to 1 in the process.
	_, id1, ok := sp.New()
	if !ok {
		t.Fatalf("New() failed, want a hit on shard 1")
	}
	if mod := int64(id1) % 4; mod != 1 {
		t.Fatalf("first New() landed on shard %d, want shard 1", mod)
	}
	if sp.cursor != 1 {
		t.Fatalf("cursor = %d after one outer New() that probed two shards, want 1", sp.cursor)
	}

	// Second outer call starts at the post-increment cursor (1), which is
	// now shard 1's frame, already pinned and full after the previous call,
	// so it should skip to shard 2.
	_, id2, ok := sp.New()
	if !ok {
		t.Fatalf("New() failed, want a hit on shard 2")
	}
	if mod := int64(id2) % 4; mod != 2 {
		t.Fatalf("second New() landed on shard %d, want shard 2", mod)
	}
}

func TestShardedPoolFetchUnpinFlushDeleteRouteByPageIDModN(t *testing.T) {
	sp := newTestShardedPool(t, 3, 2)

	page, pageID, ok := sp.New()
	if !ok {
		t.Fatalf("New() failed")
	}
	copy(page.Data(), "routed page")

	owningShard := int64(pageID) % 3
	if owningShard < 0 {
		owningShard += 3
	}
	if _, isResident := sp.shards[owningShard].pageTable[pageID]; !isResident {
		t.Fatalf("page %d is not resident on the shard its id mod 3 (%d) names", pageID, owningShard)
	}

	if !sp.Unpin(pageID, true) {
		t.Fatalf("Unpin(pageID) = false, want true")
	}
	if fetched, ok := sp.Fetch(pageID); !ok || fetched != page {
		t.Fatalf("Fetch(pageID) = (%v, %v), want the resident page from its owning shard", fetched, ok)
	}
	if !sp.Unpin(pageID, false) {
		t.Fatalf("Unpin(pageID) after Fetch = false, want true")
	}
	if !sp.Flush(pageID) {
		t.Fatalf("Flush(pageID) = false, want true")
	}
	if !sp.Delete(pageID) {
		t.Fatalf("Delete(pageID) = false, want true")
	}
	if _, isResident := sp.shards[owningShard].pageTable[pageID]; isResident {
		t.Fatalf("page %d still resident on its shard after Delete", pageID)
	}
}

func TestShardedPoolFetchUnknownPageRoutesAndMisses(t *testing.T) {
	sp := newTestShardedPool(t, 2, 1)

	// A miss against an empty, never-allocated id still routes correctly
	// and succeeds by reading a zeroed page from that shard's disk.
	page, ok := sp.Fetch(PageID(4))
	if !ok {
		t.Fatalf("Fetch(4) failed, want a successful cold read")
	}
	for i, b := range page.Data()[:16] {
		if b != 0 {
			t.Fatalf("byte %d of a never-written page = %#x, want 0", i, b)
		}
	}
	sp.Unpin(PageID(4), false)
}

func TestShardedPoolPoolSizeAndNumShards(t *testing.T) {
	sp := newTestShardedPool(t, 5, 3)

	if got := sp.NumShards(); got != 5 {
		t.Errorf("NumShards() = %d, want 5", got)
	}
	if got := sp.PoolSize(); got != 15 {
		t.Errorf("PoolSize() = %d, want 15", got)
	}
}

func TestShardedPoolFlushAllWritesEveryShard(t *testing.T) {
	sp := newTestShardedPool(t, 2, 2)

	var ids []PageID
	for i := 0; i < 4; i++ {
		page, id, ok := sp.New()
		if !ok {
			t.Fatalf("New() call %d failed", i)
		}
		copy(page.Data(), "flush all")
		sp.Unpin(id, true)
		ids = append(ids, id)
	}

	sp.FlushAll()

	for i, shard := range sp.shards {
		if got := shard.disk.(*FileDiskManager).Stats()["total_writes"]; got != 2 {
			t.Errorf("shard %d total_writes = %d after FlushAll, want 2", i, got)
		}
	}

	stats := sp.Stats()
	if stats["capacity"] != 4 {
		t.Errorf("aggregated capacity = %d, want 4", stats["capacity"])
	}
}
