package storage

import (
	"path/filepath"
	"testing"
)

func TestMmapDiskManagerWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	dm, err := NewMmapDiskManager(filepath.Join(dir, "data.db"), nil)
	if err != nil {
		t.Fatalf("NewMmapDiskManager: %v", err)
	}
	defer dm.Close()

	var want [PageSize]byte
	copy(want[:], "mmap page data")

	if err := dm.WritePage(5, want[:]); err != nil {
		t.Fatalf("WritePage: %v", err)
	}

	var got [PageSize]byte
	if err := dm.ReadPage(5, got[:]); err != nil {
		t.Fatalf("ReadPage: %v", err)
	}

	if got != want {
		t.Fatalf("ReadPage returned different bytes than WritePage wrote")
	}
}

func TestMmapDiskManagerGrowsRegionForFarPages(t *testing.T) {
	dir := t.TempDir()
	cfg := &MmapConfig{InitialSize: PageSize, GrowthSize: PageSize}
	dm, err := NewMmapDiskManager(filepath.Join(dir, "data.db"), cfg)
	if err != nil {
		t.Fatalf("NewMmapDiskManager: %v", err)
	}
	defer dm.Close()

	farPage := PageID(50)
	var want [PageSize]byte
	copy(want[:], "far away page")

	if err := dm.WritePage(farPage, want[:]); err != nil {
		t.Fatalf("WritePage far page: %v", err)
	}

	var got [PageSize]byte
	if err := dm.ReadPage(farPage, got[:]); err != nil {
		t.Fatalf("ReadPage far page: %v", err)
	}
	if got != want {
		t.Fatalf("region growth did not preserve the written page")
	}
}

func TestMmapDiskManagerReadBeyondRegionIsBlank(t *testing.T) {
	dir := t.TempDir()
	dm, err := NewMmapDiskManager(filepath.Join(dir, "data.db"), nil)
	if err != nil {
		t.Fatalf("NewMmapDiskManager: %v", err)
	}
	defer dm.Close()

	buf := make([]byte, PageSize)
	for i := range buf {
		buf[i] = 0xAB
	}
	if err := dm.ReadPage(1_000_000, buf); err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d = %#x, want 0 for an unmapped page", i, b)
		}
	}
}

func TestMmapDiskManagerSyncAndClose(t *testing.T) {
	dir := t.TempDir()
	dm, err := NewMmapDiskManager(filepath.Join(dir, "data.db"), nil)
	if err != nil {
		t.Fatalf("NewMmapDiskManager: %v", err)
	}

	buf := make([]byte, PageSize)
	if err := dm.WritePage(0, buf); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	if err := dm.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if err := dm.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
