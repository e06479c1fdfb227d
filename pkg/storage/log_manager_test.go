package storage

import (
	"path/filepath"
	"testing"
)

func TestFileLogManagerAppendAssignsIncreasingLSNs(t *testing.T) {
	dir := t.TempDir()
	lm, err := NewFileLogManager(filepath.Join(dir, "wal.log"))
	if err != nil {
		t.Fatalf("NewFileLogManager: %v", err)
	}
	defer lm.Close()

	lsn1, err := lm.Append(&LogRecord{Type: LogRecordInsert, PageID: 1, Data: []byte("row a")})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	lsn2, err := lm.Append(&LogRecord{Type: LogRecordUpdate, PageID: 1, Data: []byte("row a updated")})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	if lsn2 <= lsn1 {
		t.Fatalf("lsn2 (%d) <= lsn1 (%d), want strictly increasing", lsn2, lsn1)
	}
}

func TestFileLogManagerReplayRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wal.log")

	lm, err := NewFileLogManager(path)
	if err != nil {
		t.Fatalf("NewFileLogManager: %v", err)
	}

	want := []string{"first record", "second, a bit longer", ""}
	for i, payload := range want {
		if _, err := lm.Append(&LogRecord{Type: LogRecordInsert, PageID: PageID(i), Data: []byte(payload)}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := lm.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := lm.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewFileLogManager(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	records, err := reopened.Replay()
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(records) != len(want) {
		t.Fatalf("Replay returned %d records, want %d", len(records), len(want))
	}
	for i, rec := range records {
		if string(rec.Data) != want[i] {
			t.Errorf("record %d payload = %q, want %q", i, rec.Data, want[i])
		}
		if rec.PageID != PageID(i) {
			t.Errorf("record %d page id = %d, want %d", i, rec.PageID, i)
		}
	}
}

func TestFileLogManagerCheckpoint(t *testing.T) {
	dir := t.TempDir()
	lm, err := NewFileLogManager(filepath.Join(dir, "wal.log"))
	if err != nil {
		t.Fatalf("NewFileLogManager: %v", err)
	}
	defer lm.Close()

	if err := lm.Checkpoint(); err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}

	records, err := lm.Replay()
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(records) != 1 || records[0].Type != LogRecordCheckpoint {
		t.Fatalf("Replay after Checkpoint = %v, want one LogRecordCheckpoint", records)
	}
}

func TestFileLogManagerFlushUpToDoesNotError(t *testing.T) {
	dir := t.TempDir()
	lm, err := NewFileLogManager(filepath.Join(dir, "wal.log"))
	if err != nil {
		t.Fatalf("NewFileLogManager: %v", err)
	}
	defer lm.Close()

	lsn, err := lm.Append(&LogRecord{Type: LogRecordInsert, Data: []byte("x")})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := lm.FlushUpTo(lsn); err != nil {
		t.Fatalf("FlushUpTo: %v", err)
	}
}
