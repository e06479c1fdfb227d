package storage

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// MmapDiskManager is a DiskManager backed by a memory-mapped file instead
// of pread/pwrite, adapted from the teacher's mmap_disk_manager.go but
// rebuilt on golang.org/x/sys/unix.Mmap/Munmap/Msync rather than raw
// syscall numbers — the wrapper the rest of the Go ecosystem uses for this
// (bbolt, badger) and a dependency already present, indirectly, in the
// teacher's module graph.
//
// Madvise-based prefetch hints from the teacher (MadviseWillNeed and
// friends) are not carried forward: prefetching is an explicit Non-goal
// (spec.md §1).
type MmapDiskManager struct {
	mu       sync.RWMutex
	file     *os.File
	region   []byte
	regionSz int64
	growBy   int64

	totalReads  int64
	totalWrites int64
}

// MmapConfig configures the initial and incremental size of the mapped
// region.
type MmapConfig struct {
	InitialSize int64
	GrowthSize  int64
}

// DefaultMmapConfig returns the teacher's defaults: 256MiB initial, 64MiB
// growth increments.
func DefaultMmapConfig() *MmapConfig {
	return &MmapConfig{
		InitialSize: 256 * 1024 * 1024,
		GrowthSize:  64 * 1024 * 1024,
	}
}

// NewMmapDiskManager opens path and maps it into the process address space.
func NewMmapDiskManager(path string, config *MmapConfig) (*MmapDiskManager, error) {
	if config == nil {
		config = DefaultMmapConfig()
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("mmap disk manager: open %s: %w", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("mmap disk manager: stat %s: %w", path, err)
	}

	dm := &MmapDiskManager{file: file, growBy: config.GrowthSize}

	mapSize := config.InitialSize
	if info.Size() > mapSize {
		mapSize = info.Size()
	}
	if err := dm.remap(mapSize); err != nil {
		file.Close()
		return nil, err
	}
	return dm, nil
}

// remap unmaps the current region (if any), grows the backing file to
// newSize, and maps it back in. Must be called with dm.mu held for write.
func (dm *MmapDiskManager) remap(newSize int64) error {
	if dm.region != nil {
		if err := unix.Munmap(dm.region); err != nil {
			return fmt.Errorf("mmap disk manager: munmap: %w", err)
		}
		dm.region = nil
	}

	if err := dm.file.Truncate(newSize); err != nil {
		return fmt.Errorf("mmap disk manager: truncate: %w", err)
	}

	region, err := unix.Mmap(int(dm.file.Fd()), 0, int(newSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("mmap disk manager: mmap: %w", err)
	}

	dm.region = region
	dm.regionSz = newSize
	return nil
}

// ensureMapped grows the mapped region, if needed, to cover offset+PageSize.
// Must be called with dm.mu held for write.
func (dm *MmapDiskManager) ensureMapped(offset int64) error {
	if offset+PageSize <= dm.regionSz {
		return nil
	}
	newSize := dm.regionSz + dm.growBy
	for offset+PageSize > newSize {
		newSize += dm.growBy
	}
	return dm.remap(newSize)
}

// ReadPage implements DiskManager.
func (dm *MmapDiskManager) ReadPage(pageID PageID, buf []byte) error {
	if len(buf) != PageSize {
		return fmt.Errorf("mmap disk manager: read buffer must be %d bytes, got %d", PageSize, len(buf))
	}

	dm.mu.RLock()
	defer dm.mu.RUnlock()

	offset := int64(pageID) * PageSize
	if offset+PageSize > dm.regionSz {
		for i := range buf {
			buf[i] = 0
		}
		return nil
	}

	copy(buf, dm.region[offset:offset+PageSize])
	dm.totalReads++
	return nil
}

// WritePage implements DiskManager.
func (dm *MmapDiskManager) WritePage(pageID PageID, buf []byte) error {
	if len(buf) != PageSize {
		return fmt.Errorf("mmap disk manager: write buffer must be %d bytes, got %d", PageSize, len(buf))
	}

	dm.mu.Lock()
	defer dm.mu.Unlock()

	offset := int64(pageID) * PageSize
	if err := dm.ensureMapped(offset); err != nil {
		return fmt.Errorf("mmap disk manager: grow for page %d: %w", pageID, err)
	}

	copy(dm.region[offset:offset+PageSize], buf)
	dm.totalWrites++
	return nil
}

// Sync flushes the mapped region to stable storage with msync.
func (dm *MmapDiskManager) Sync() error {
	dm.mu.RLock()
	defer dm.mu.RUnlock()

	if dm.region == nil {
		return nil
	}
	if err := unix.Msync(dm.region, unix.MS_SYNC); err != nil {
		return fmt.Errorf("mmap disk manager: msync: %w", err)
	}
	return nil
}

// Close implements DiskManager: syncs, unmaps, and closes the backing file.
func (dm *MmapDiskManager) Close() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.region != nil {
		if err := unix.Msync(dm.region, unix.MS_SYNC); err != nil {
			return fmt.Errorf("mmap disk manager: msync before close: %w", err)
		}
		if err := unix.Munmap(dm.region); err != nil {
			return fmt.Errorf("mmap disk manager: munmap: %w", err)
		}
		dm.region = nil
	}

	if err := dm.file.Sync(); err != nil {
		return err
	}
	return dm.file.Close()
}

// Stats returns read/write counters and the current mapped region size.
func (dm *MmapDiskManager) Stats() map[string]int64 {
	dm.mu.RLock()
	defer dm.mu.RUnlock()

	return map[string]int64{
		"total_reads":  dm.totalReads,
		"total_writes": dm.totalWrites,
		"region_bytes": dm.regionSz,
	}
}
