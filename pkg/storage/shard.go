package storage

import (
	"fmt"
	"log/slog"
	"sync"
)

// Shard is a single buffer pool instance: a fixed array of frames, a
// page-id-to-frame-index table, a free list, one Replacer, and one mutex.
// It implements the full page-level contract (spec.md §4.2) — fetch, new,
// unpin, flush, flush_all, delete — delegating eviction order to its
// Replacer and physical I/O to its DiskManager. ShardedPool composes many
// Shards to spread contention across page ids; a Shard is also usable on
// its own as a single, unsharded buffer pool (num_shards=1, shard_index=0).
type Shard struct {
	mu sync.Mutex

	frames    []*Page
	pageTable map[PageID]int
	freeList  []int // FIFO: front is index 0
	replacer  Replacer

	disk   DiskManager
	logMgr LogManager

	numShards  int
	shardIndex int
	nextPageID PageID

	hits      int64
	misses    int64
	evictions int64
}

// NewShard allocates poolSize frames and wires them to disk and an
// optional log manager. shardIndex must be in [0, numShards); this is
// a programming-error assertion per spec.md §7, not a recoverable
// condition, so it panics.
func NewShard(poolSize, numShards, shardIndex int, disk DiskManager, logMgr LogManager) *Shard {
	if shardIndex < 0 || shardIndex >= numShards {
		panic(fmt.Sprintf("storage: shard index %d out of range [0, %d)", shardIndex, numShards))
	}

	frames := make([]*Page, poolSize)
	freeList := make([]int, poolSize)
	for i := 0; i < poolSize; i++ {
		frames[i] = newPage()
		freeList[i] = i
	}

	return &Shard{
		frames:     frames,
		pageTable:  make(map[PageID]int, poolSize),
		freeList:   freeList,
		replacer:   NewLRUReplacer(),
		disk:       disk,
		logMgr:     logMgr,
		numShards:  numShards,
		shardIndex: shardIndex,
		nextPageID: PageID(shardIndex),
	}
}

// Fetch returns the page identified by pageID, pinned, reading it from
// disk if it is not already resident. Returns (nil, false) if the page is
// not resident and every frame is pinned (no victim available).
func (s *Shard) Fetch(pageID PageID) (*Page, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx, ok := s.pageTable[pageID]; ok {
		page := s.frames[idx]
		page.pin()
		s.replacer.Pin(idx)
		s.hits++
		slog.Debug("shard: fetch hit", "page_id", pageID, "frame", idx, "pin_count", page.pinCount)
		return page, true
	}

	s.misses++

	idx, ok := s.pickVictim()
	if !ok {
		slog.Debug("shard: fetch miss, no victim available", "page_id", pageID)
		return nil, false
	}

	s.evictFrame(idx)

	page := s.frames[idx]
	if err := s.disk.ReadPage(pageID, page.data[:]); err != nil {
		panic(fmt.Errorf("storage: shard %d: read page %d: %w", s.shardIndex, pageID, err))
	}

	page.id = pageID
	page.pinCount = 1
	page.isDirty = false
	s.pageTable[pageID] = idx
	s.replacer.Pin(idx)

	slog.Debug("shard: fetch loaded from disk", "page_id", pageID, "frame", idx)
	return page, true
}

// New allocates a fresh page id owned by this shard, births it in memory
// (no disk read), pins it, and returns it. Returns (nil, InvalidPageID,
// false) if every frame is pinned; no id is allocated on that path, so a
// failed New never wastes an id.
func (s *Shard) New() (*Page, PageID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.pickVictim()
	if !ok {
		slog.Debug("shard: new failed, no victim available", "shard", s.shardIndex)
		return nil, InvalidPageID, false
	}

	s.evictFrame(idx)

	pageID := s.nextPageID
	s.nextPageID += PageID(s.numShards)
	if int(pageID)%s.numShards != s.shardIndex {
		slog.Error("storage: shard id generator produced an out-of-stride page id",
			"shard", s.shardIndex, "num_shards", s.numShards, "page_id", pageID)
		panic(fmt.Sprintf("storage: page id %d mod %d != shard index %d", pageID, s.numShards, s.shardIndex))
	}

	page := s.frames[idx]
	page.id = pageID
	page.pinCount = 1
	page.isDirty = false
	for i := range page.data {
		page.data[i] = 0
	}
	s.pageTable[pageID] = idx
	s.replacer.Pin(idx)

	slog.Debug("shard: new page born in memory", "page_id", pageID, "frame", idx)
	return page, pageID, true
}

// Unpin decrements pageID's pin count. Returns false if pageID is not
// resident or its pin count is already 0. isDirty is OR'd into the
// frame's sticky dirty flag: it is never cleared here, only by a
// successful Flush or eviction-write.
func (s *Shard) Unpin(pageID PageID, isDirty bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.pageTable[pageID]
	if !ok {
		return false
	}

	page := s.frames[idx]
	if page.pinCount == 0 {
		return false
	}

	if isDirty {
		page.markDirty()
	}
	page.unpin()

	if page.pinCount == 0 {
		s.replacer.Unpin(idx)
	}

	slog.Debug("shard: unpin", "page_id", pageID, "pin_count", page.pinCount, "dirty", page.isDirty)
	return true
}

// Flush writes pageID's buffer to disk unconditionally and clears its
// dirty flag. Returns false if the page is not resident. Flushing an
// unpinned page does not evict it.
func (s *Shard) Flush(pageID PageID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.pageTable[pageID]
	if !ok {
		return false
	}
	s.flushFrameLocked(idx)
	slog.Debug("shard: flush", "page_id", pageID, "frame", idx)
	return true
}

// FlushAll writes every resident frame to disk unconditionally, dirty or
// not, and does not clear dirty flags — preserved as an observable quirk
// of the reference implementation this spec distills (spec.md §9). Flush,
// by contrast, clears the dirty flag of the page it writes (it too writes
// clean pages). Each write goes through writePageLocked, so the WAL rule
// is honored here as well.
func (s *Shard) FlushAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for pageID, idx := range s.pageTable {
		if err := s.writePageLocked(idx); err != nil {
			panic(fmt.Errorf("storage: shard %d: flush_all write page %d: %w", s.shardIndex, pageID, err))
		}
	}
}

// Delete removes pageID from the buffer pool and frees its frame. Returns
// true vacuously if the page is not resident. Returns false if the page is
// resident and pinned. The id is not reused by this design.
func (s *Shard) Delete(pageID PageID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.pageTable[pageID]
	if !ok {
		return true
	}

	page := s.frames[idx]
	if page.isPinned() {
		return false
	}

	if page.isDirty {
		if err := s.writePageLocked(idx); err != nil {
			panic(fmt.Errorf("storage: shard %d: delete flush page %d: %w", s.shardIndex, pageID, err))
		}
	}

	delete(s.pageTable, pageID)
	s.replacer.Pin(idx) // no-op if not tracked, removes it if it was
	page.reset()
	s.freeList = append(s.freeList, idx)

	slog.Debug("shard: delete", "page_id", pageID, "frame", idx)
	return true
}

// Stats returns hit/miss/eviction counters, carried forward from the
// teacher's BufferPool.Stats even though spec.md does not require them.
func (s *Shard) Stats() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return map[string]int64{
		"hits":      s.hits,
		"misses":    s.misses,
		"evictions": s.evictions,
		"size":      int64(len(s.pageTable)),
		"capacity":  int64(len(s.frames)),
	}
}

// pickVictim implements the shared victim-selection helper (spec.md
// §4.2.5): the free list is always preferred over the replacer. Must be
// called with s.mu held.
func (s *Shard) pickVictim() (int, bool) {
	if len(s.freeList) > 0 {
		idx := s.freeList[0]
		s.freeList = s.freeList[1:]
		return idx, true
	}
	return s.replacer.Victim()
}

// evictFrame flushes frame idx if it holds a resident dirty page and
// removes its old page-id mapping, preparing it to be reused by Fetch or
// New. Must be called with s.mu held.
func (s *Shard) evictFrame(idx int) {
	page := s.frames[idx]
	if page.id == InvalidPageID {
		return
	}

	if page.isDirty {
		if err := s.writePageLocked(idx); err != nil {
			panic(fmt.Errorf("storage: shard %d: evict flush page %d: %w", s.shardIndex, page.id, err))
		}
	}

	slog.Debug("shard: evict", "page_id", page.id, "frame", idx, "dirty", page.isDirty)
	delete(s.pageTable, page.id)
	s.evictions++
}

// flushFrameLocked is the body of Flush: write the frame's buffer and
// clear its dirty flag. FlushAll does not use it, since FlushAll leaves
// dirty flags set. Must be called with s.mu held.
func (s *Shard) flushFrameLocked(idx int) {
	if err := s.writePageLocked(idx); err != nil {
		panic(fmt.Errorf("storage: shard %d: flush page %d: %w", s.shardIndex, s.frames[idx].id, err))
	}
	s.frames[idx].isDirty = false
}

// writePageLocked honors the WAL rule (spec.md §6) before handing the
// frame's buffer to the disk manager: log records up to the page's LSN
// must reach stable storage first. If no log manager is configured the
// step is skipped. Must be called with s.mu held.
func (s *Shard) writePageLocked(idx int) error {
	page := s.frames[idx]
	if s.logMgr != nil {
		if err := s.logMgr.FlushUpTo(page.lsn); err != nil {
			return fmt.Errorf("wal flush before write: %w", err)
		}
	}
	return s.disk.WritePage(page.id, page.data[:])
}
