package storage

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/klauspost/compress/s2"
)

// LogRecordType identifies the kind of change a LogRecord describes.
type LogRecordType uint8

const (
	LogRecordInsert LogRecordType = iota
	LogRecordUpdate
	LogRecordDelete
	LogRecordCheckpoint
	LogRecordCommit
	LogRecordAbort
)

// LogRecord is a single WAL entry: a change to PageID, logged before the
// page itself is written, per the WAL rule.
type LogRecord struct {
	LSN     uint64
	Type    LogRecordType
	TxnID   uint64
	PageID  PageID
	Data    []byte
	PrevLSN uint64
}

// LogManager is the write-ahead log collaborator described in spec.md §6:
// before writing a dirty page whose in-page LSN is L, the log records up to
// L must reach stable storage. A Shard holds an optional LogManager and
// calls FlushUpTo before any dirty eviction-write; if none is configured,
// the step is skipped.
type LogManager interface {
	FlushUpTo(lsn uint64) error
}

// FileLogManager is the file-backed LogManager, adapted from the teacher's
// WAL with record payloads compressed via klauspost/compress/s2 before
// they hit disk — the teacher compresses whole fixed-size pages
// (pkg/compression/page.go), which doesn't fit a PageSize-invariant disk
// manager; WAL records are already variable-length on disk, so they're
// where that dependency's concern (byte-stream compression) actually
// belongs in this system.
type FileLogManager struct {
	mu         sync.Mutex
	file       *os.File
	currentLSN uint64
}

// NewFileLogManager opens (or creates, append-only) the log file at path.
func NewFileLogManager(path string) (*FileLogManager, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("log manager: open %s: %w", path, err)
	}

	pos, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("log manager: seek %s: %w", path, err)
	}

	return &FileLogManager{file: file, currentLSN: uint64(pos)}, nil
}

// Append writes record to the log, assigning it the next LSN, and returns
// that LSN.
func (lm *FileLogManager) Append(record *LogRecord) (uint64, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	lm.currentLSN++
	record.LSN = lm.currentLSN

	data := serializeRecord(record)
	if _, err := lm.file.Write(data); err != nil {
		return 0, fmt.Errorf("log manager: append record: %w", err)
	}
	return record.LSN, nil
}

// serializeRecord converts a log record to bytes, compressing the payload.
// Format: [8-byte LSN][1-byte Type][8-byte TxnID][4-byte PageID]
//
//	[8-byte PrevLSN][4-byte rawLen][4-byte compressedLen][compressed payload]
func serializeRecord(record *LogRecord) []byte {
	compressed := s2.Encode(nil, record.Data)

	const headerSize = 37
	buf := make([]byte, headerSize+len(compressed))

	binary.LittleEndian.PutUint64(buf[0:8], record.LSN)
	buf[8] = byte(record.Type)
	binary.LittleEndian.PutUint64(buf[9:17], record.TxnID)
	binary.LittleEndian.PutUint32(buf[17:21], uint32(record.PageID))
	binary.LittleEndian.PutUint64(buf[21:29], record.PrevLSN)
	binary.LittleEndian.PutUint32(buf[29:33], uint32(len(record.Data)))
	binary.LittleEndian.PutUint32(buf[33:37], uint32(len(compressed)))
	copy(buf[headerSize:], compressed)

	return buf
}

// deserializeRecord reverses serializeRecord.
func deserializeRecord(data []byte) (*LogRecord, error) {
	const headerSize = 37
	if len(data) < headerSize {
		return nil, fmt.Errorf("log manager: record too short")
	}

	record := &LogRecord{
		LSN:     binary.LittleEndian.Uint64(data[0:8]),
		Type:    LogRecordType(data[8]),
		TxnID:   binary.LittleEndian.Uint64(data[9:17]),
		PageID:  PageID(binary.LittleEndian.Uint32(data[17:21])),
		PrevLSN: binary.LittleEndian.Uint64(data[21:29]),
	}

	rawLen := binary.LittleEndian.Uint32(data[29:33])
	compressedLen := binary.LittleEndian.Uint32(data[33:37])
	if len(data) < headerSize+int(compressedLen) {
		return nil, fmt.Errorf("log manager: record payload truncated")
	}

	raw, err := s2.Decode(make([]byte, rawLen), data[headerSize:headerSize+int(compressedLen)])
	if err != nil {
		return nil, fmt.Errorf("log manager: decompress record: %w", err)
	}
	record.Data = raw
	return record, nil
}

// Flush syncs all appended records to stable storage.
func (lm *FileLogManager) Flush() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	return lm.file.Sync()
}

// FlushUpTo implements LogManager. This log is append-only with no
// per-LSN flush watermark (that bookkeeping belongs to ARIES-style
// recovery, an explicit Non-goal), so flushing "up to lsn" and flushing
// everything are the same operation here — any record with an LSN <= lsn
// was already appended before this call by definition, and Sync commits
// the whole file.
func (lm *FileLogManager) FlushUpTo(lsn uint64) error {
	return lm.Flush()
}

// Replay reads every record in the log, in append order, for recovery use
// by a higher layer (this module does not implement ARIES recovery itself).
func (lm *FileLogManager) Replay() ([]*LogRecord, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if _, err := lm.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("log manager: seek to start: %w", err)
	}
	defer lm.file.Seek(0, io.SeekEnd)

	const headerSize = 37
	var records []*LogRecord
	header := make([]byte, headerSize)

	for {
		n, err := io.ReadFull(lm.file, header)
		if err == io.EOF || (err == io.ErrUnexpectedEOF && n == 0) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("log manager: read record header: %w", err)
		}

		compressedLen := binary.LittleEndian.Uint32(header[33:37])
		full := make([]byte, headerSize+int(compressedLen))
		copy(full, header)
		if compressedLen > 0 {
			if _, err := io.ReadFull(lm.file, full[headerSize:]); err != nil {
				return nil, fmt.Errorf("log manager: read record payload: %w", err)
			}
		}

		record, err := deserializeRecord(full)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, nil
}

// Checkpoint appends a checkpoint record and flushes it.
func (lm *FileLogManager) Checkpoint() error {
	if _, err := lm.Append(&LogRecord{Type: LogRecordCheckpoint}); err != nil {
		return err
	}
	return lm.Flush()
}

// Close syncs and closes the log file.
func (lm *FileLogManager) Close() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if err := lm.file.Sync(); err != nil {
		return err
	}
	return lm.file.Close()
}
