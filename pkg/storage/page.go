package storage

import "fmt"

// PageSize is the size of each page, a compile-time constant per the wire
// contract: every DiskManager implementation reads and writes exactly one
// PageSize buffer per page id.
const PageSize = 4096

// PageID identifies a page. Page ids are globally unique across shards; a
// shard with index i out of N owns exactly the page ids p with p mod N == i.
type PageID int64

// InvalidPageID is the reserved sentinel meaning "no page resident".
const InvalidPageID PageID = -1

// Page is the fixed-size frame buffer paired with its metadata: the handle
// higher-level access methods pin, mutate, and unpin. It is never
// constructed directly by callers — Shard.Fetch and Shard.New are the only
// ways to obtain one, and both return it already pinned (pin_count >= 1).
type Page struct {
	id       PageID
	data     [PageSize]byte
	pinCount int32
	isDirty  bool
	lsn      uint64
}

func newPage() *Page {
	return &Page{id: InvalidPageID}
}

// PageID returns the page's identity, or InvalidPageID if the frame is free.
func (p *Page) PageID() PageID {
	return p.id
}

// Data returns the mutable page buffer. Concurrent mutation of the same
// page's bytes by multiple pinners is the caller's responsibility — the
// buffer pool does not serialize page contents, only frame metadata.
func (p *Page) Data() []byte {
	return p.data[:]
}

// PinCount returns the number of outstanding pins on this frame.
func (p *Page) PinCount() int32 {
	return p.pinCount
}

// IsDirty reports whether the frame's buffer has been modified since it
// was last read from or written to disk. The flag is sticky: once set, it
// is cleared only by a successful flush or eviction-write, never by Unpin.
func (p *Page) IsDirty() bool {
	return p.isDirty
}

// LSN returns the log sequence number protecting this page's last write,
// consulted by the WAL rule (the log manager must flush up to this LSN
// before the page itself is written to disk).
func (p *Page) LSN() uint64 {
	return p.lsn
}

// SetLSN records the log sequence number of the most recent change applied
// to this page's buffer. Higher layers (the access methods that mutate the
// page) are expected to call this after logging a change and before unpinning
// the page dirty.
func (p *Page) SetLSN(lsn uint64) {
	p.lsn = lsn
}

func (p *Page) pin() {
	p.pinCount++
}

func (p *Page) unpin() {
	if p.pinCount > 0 {
		p.pinCount--
	}
}

func (p *Page) isPinned() bool {
	return p.pinCount > 0
}

func (p *Page) markDirty() {
	p.isDirty = true
}

// reset returns the frame to its free-list state: no resident page, zeroed
// buffer, zeroed metadata. Called on delete and never elsewhere — a frame
// being evicted into a new page id is reinitialized in place by the shard,
// not reset first.
func (p *Page) reset() {
	p.id = InvalidPageID
	p.pinCount = 0
	p.isDirty = false
	p.lsn = 0
	for i := range p.data {
		p.data[i] = 0
	}
}

func (p *Page) String() string {
	return fmt.Sprintf("Page{id=%d pin=%d dirty=%t}", p.id, p.pinCount, p.isDirty)
}
