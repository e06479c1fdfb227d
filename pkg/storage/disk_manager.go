package storage

import (
	"fmt"
	"os"
	"sync"
)

// DiskManager is the block device abstraction the buffer pool mediates
// access through: a synchronous reader/writer of fixed-size pages keyed by
// page id. It is an external collaborator per the spec — the buffer pool
// depends only on this interface, never on a concrete backend — but two
// reference implementations are provided: FileDiskManager (pread/pwrite)
// and MmapDiskManager (memory-mapped).
type DiskManager interface {
	// ReadPage fills buf (len(buf) == PageSize) with the bytes stored at
	// pageID. Reading a page beyond the current end of the backing file is
	// not an error — it yields a zeroed buffer, the same "born blank" rule
	// New uses for freshly allocated pages.
	ReadPage(pageID PageID, buf []byte) error
	// WritePage persists buf (len(buf) == PageSize) at pageID.
	WritePage(pageID PageID, buf []byte) error
	// Close flushes and releases the backing resource.
	Close() error
}

// FileDiskManager is the plain os.File-backed DiskManager, adapted from the
// teacher's disk_manager.go with the free-page-list reuse machinery
// removed: this spec allocates page ids per-shard with a fixed stride
// (§4.2.8) and never reuses a deleted id, so DiskManager has no allocation
// role here — it only moves bytes.
type FileDiskManager struct {
	mu          sync.Mutex
	file        *os.File
	totalReads  int64
	totalWrites int64
}

// NewFileDiskManager opens (or creates) the backing file at path.
func NewFileDiskManager(path string) (*FileDiskManager, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("disk manager: open %s: %w", path, err)
	}
	return &FileDiskManager{file: file}, nil
}

// ReadPage implements DiskManager.
func (dm *FileDiskManager) ReadPage(pageID PageID, buf []byte) error {
	if len(buf) != PageSize {
		return fmt.Errorf("disk manager: read buffer must be %d bytes, got %d", PageSize, len(buf))
	}

	dm.mu.Lock()
	defer dm.mu.Unlock()

	offset := int64(pageID) * PageSize
	n, err := dm.file.ReadAt(buf, offset)
	if err != nil && n < PageSize {
		// Short read past end-of-file means the page has never been
		// written: treat it as a blank page rather than an error.
		for i := n; i < PageSize; i++ {
			buf[i] = 0
		}
	}
	dm.totalReads++
	return nil
}

// WritePage implements DiskManager.
func (dm *FileDiskManager) WritePage(pageID PageID, buf []byte) error {
	if len(buf) != PageSize {
		return fmt.Errorf("disk manager: write buffer must be %d bytes, got %d", PageSize, len(buf))
	}

	dm.mu.Lock()
	defer dm.mu.Unlock()

	offset := int64(pageID) * PageSize
	if _, err := dm.file.WriteAt(buf, offset); err != nil {
		return fmt.Errorf("disk manager: write page %d: %w", pageID, err)
	}
	dm.totalWrites++
	return nil
}

// Sync flushes buffered writes to stable storage.
func (dm *FileDiskManager) Sync() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	return dm.file.Sync()
}

// Close implements DiskManager.
func (dm *FileDiskManager) Close() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if err := dm.file.Sync(); err != nil {
		return err
	}
	return dm.file.Close()
}

// Stats returns read/write counters, a bustub-course-assignment-style
// diagnostic carried forward even though spec.md does not require it.
func (dm *FileDiskManager) Stats() map[string]int64 {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	return map[string]int64{
		"total_reads":  dm.totalReads,
		"total_writes": dm.totalWrites,
	}
}
