// Package page implements the slotted page: a single fixed-size, WAL-backed
// record store. It is the core of a paginated record store — see
// spec.md/SPEC_FULL.md for the full contract.
//
// A Page is not internally thread-safe. It assumes a single-threaded
// cooperative caller per instance; serializing access across goroutines is
// the enclosing buffer-pool/latching layer's job, not this package's.
// Unsynchronized reads (FreeSpace, RecordsCount, and friends) are safe only
// under that external latching.
package page

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// DefaultPageSize is the page size used when Configure has not been called.
const DefaultPageSize = 64 * 1024

// PageSize is the process-wide page size in bytes. Fix it once via
// Configure before constructing any Page.
var PageSize = DefaultPageSize

var (
	pageSizeMu  sync.Mutex
	pageSizeSet bool
)

// Configure fixes PageSize for the process. configuredKiB must be a power
// of two. Calling it a second time panics: the page format's offsets are
// derived from PageSize at the moment a Page is built, so changing it mid
// process would silently corrupt any page already in memory.
func Configure(configuredKiB int) {
	pageSizeMu.Lock()
	defer pageSizeMu.Unlock()
	if pageSizeSet {
		panic("page: Configure called more than once")
	}
	if configuredKiB <= 0 || configuredKiB&(configuredKiB-1) != 0 {
		panic("page: configured size must be a power-of-two number of KiB")
	}
	if configuredKiB*1024 > 1<<16 {
		// The freelist thrift-encodes its next-link into the 16 low bits
		// of the slot pointer word (positionMask). Preserved, not widened,
		// per spec.md §9 — bump SlotSize before ever allowing this.
		panic("page: configured size exceeds the 16-bit slot position mask")
	}
	PageSize = configuredKiB * 1024
	pageSizeSet = true
}

// Fixed header field offsets (see spec.md §3.1). Sizes: magic 8, crc32 4,
// wal_segment 8, wal_position 4, next_page 8, prev_page 8, freelist_head 4,
// free_position 4, free_space 4, entries_count 4, slot_count 4 = 60 bytes.
const (
	offMagic        = 0
	offCRC32        = 8
	offWALSegment   = 12
	offWALPosition  = 20
	offNextPage     = 24
	offPrevPage     = 32
	offFreelistHead = 40
	offFreePosition = 44
	offFreeSpace    = 48
	offEntriesCount = 52
	offSlotCount    = 56

	// SlotOffset is the byte offset where the slot directory begins.
	SlotOffset = 60

	// SlotSize is the width of one slot-directory entry: a 4-byte slot
	// pointer word plus a VSize-byte version.
	SlotSize = 4 + VSize

	positionMask uint32 = 0xFFFF
	tombstoneBit uint32 = 1 << 16
)

// MaxEntrySize is the largest heap entry (header + payload) a page this
// size can ever hold.
func MaxEntrySize() int { return PageSize - SlotOffset - SlotSize }

// MaxRecordSize is the largest payload AppendRecord will ever accept.
func MaxRecordSize() int { return MaxEntrySize() - 8 }

// Page is a typed view over a caller-owned, exactly-PageSize-byte buffer:
// header, slot directory, freelist, and record heap, with every mutating
// operation framed by a WAL atomic-update pair.
type Page struct {
	buf       Buffer
	wal       WAL
	pageIndex uint32
	fileName  string
}

// Bytes returns the page's underlying buffer, for callers that need to flush
// it verbatim (e.g. writing it to a table file at its page offset).
func (p *Page) Bytes() []byte { return []byte(p.buf) }

func checkBufferSize(buf []byte) error {
	if len(buf) != PageSize {
		return fmt.Errorf("page: buffer must be exactly %d bytes, got %d", PageSize, len(buf))
	}
	return nil
}

// New initializes a fresh page over buf: emits AddNewPage, sets
// free_position/free_space/sibling pointers/counts to their empty-page
// values, all through the logged write path, wrapped in one atomic frame.
func New(buf []byte, wal WAL, pageIndex uint32, fileName string) (*Page, error) {
	if err := checkBufferSize(buf); err != nil {
		return nil, err
	}
	p := &Page{buf: Buffer(buf), wal: wal, pageIndex: pageIndex, fileName: fileName}

	err := p.atomic(func() error {
		if p.wal != nil {
			if _, err := p.wal.Log(Record{Kind: RecAddNewPage, PageIndex: pageIndex, FileName: fileName}); err != nil {
				return fmt.Errorf("page: add new page: %w", ErrWalFailure)
			}
		}
		if err := p.writeU64(offMagic, 0); err != nil {
			return err
		}
		if err := p.writeU32(offCRC32, 0); err != nil {
			return err
		}
		if err := p.writeU64(offWALSegment, 0); err != nil {
			return err
		}
		if err := p.writeU32(offWALPosition, 0); err != nil {
			return err
		}
		if err := p.writeI64(offNextPage, -1); err != nil {
			return err
		}
		if err := p.writeI64(offPrevPage, -1); err != nil {
			return err
		}
		if err := p.writeU32(offFreelistHead, 0); err != nil {
			return err
		}
		if err := p.writeU32(offFreePosition, uint32(PageSize)); err != nil {
			return err
		}
		if err := p.writeU32(offFreeSpace, uint32(PageSize-SlotOffset)); err != nil {
			return err
		}
		if err := p.writeU32(offEntriesCount, 0); err != nil {
			return err
		}
		return p.writeU32(offSlotCount, 0)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Attach wraps an existing, already-initialized buffer (read back from disk
// or cache) without touching its contents.
func Attach(buf []byte, wal WAL, pageIndex uint32, fileName string) (*Page, error) {
	if err := checkBufferSize(buf); err != nil {
		return nil, err
	}
	return &Page{buf: Buffer(buf), wal: wal, pageIndex: pageIndex, fileName: fileName}, nil
}

// atomic brackets fn with StartAtomicUpdate/EndAtomicUpdate (when a WAL is
// present) and stamps the End record's LSN into the header afterward. The
// End record — and only the End record — is guaranteed to fire whenever
// Start fired, regardless of whether fn succeeded.
func (p *Page) atomic(fn func() error) error {
	if p.wal != nil {
		if _, err := p.wal.Log(Record{Kind: RecStartAtomicUpdate, PageIndex: p.pageIndex, FileName: p.fileName}); err != nil {
			return fmt.Errorf("page: start atomic update: %w", ErrWalFailure)
		}
	}

	fnErr := fn()

	if p.wal != nil {
		lsn, err := p.wal.Log(Record{Kind: RecEndAtomicUpdate, PageIndex: p.pageIndex, FileName: p.fileName})
		if err != nil {
			if fnErr != nil {
				return fnErr
			}
			return fmt.Errorf("page: end atomic update: %w", ErrWalFailure)
		}
		if stampErr := p.stampLSN(lsn); stampErr != nil && fnErr == nil {
			fnErr = stampErr
		}
	}

	return fnErr
}

func (p *Page) stampLSN(lsn LSN) error {
	if err := p.writeU64(offWALSegment, lsn.Segment); err != nil {
		return err
	}
	return p.writeU32(offWALPosition, lsn.Position)
}

// --- logged write helpers: every persistent byte write goes through one of
// these, which emits SetPageData before applying the mutation in memory.

func (p *Page) writeU32(off int, v uint32) error {
	if p.wal != nil {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v)
		if _, err := p.wal.Log(Record{Kind: RecSetPageData, PageIndex: p.pageIndex, FileName: p.fileName, Offset: uint32(off), Payload: b[:]}); err != nil {
			return fmt.Errorf("page: set page data: %w", ErrWalFailure)
		}
	}
	return p.buf.WriteUint32(off, v)
}

func (p *Page) writeI32(off int, v int32) error {
	return p.writeU32(off, uint32(v))
}

func (p *Page) writeU64(off int, v uint64) error {
	if p.wal != nil {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], v)
		if _, err := p.wal.Log(Record{Kind: RecSetPageData, PageIndex: p.pageIndex, FileName: p.fileName, Offset: uint32(off), Payload: b[:]}); err != nil {
			return fmt.Errorf("page: set page data: %w", ErrWalFailure)
		}
	}
	return p.buf.WriteUint64(off, v)
}

func (p *Page) writeI64(off int, v int64) error {
	return p.writeU64(off, uint64(v))
}

func (p *Page) writeBytes(off int, data []byte) error {
	if p.wal != nil {
		if _, err := p.wal.Log(Record{Kind: RecSetPageData, PageIndex: p.pageIndex, FileName: p.fileName, Offset: uint32(off), Payload: append([]byte(nil), data...)}); err != nil {
			return fmt.Errorf("page: set page data: %w", ErrWalFailure)
		}
	}
	return p.buf.WriteBytes(off, data)
}

// --- unsynchronized reads: safe only under external latching.

func (p *Page) readU32(off int) (uint32, error) { return p.buf.ReadUint32(off) }
func (p *Page) readU64(off int) (uint64, error) { return p.buf.ReadUint64(off) }
func (p *Page) readI64(off int) (int64, error)  { return p.buf.ReadInt64(off) }
func (p *Page) readI32(off int) (int32, error)  { return p.buf.ReadInt32(off) }

// NextPage returns the forward sibling page number, or -1 if none.
func (p *Page) NextPage() int64 { v, _ := p.readI64(offNextPage); return v }

// PrevPage returns the backward sibling page number, or -1 if none.
func (p *Page) PrevPage() int64 { v, _ := p.readI64(offPrevPage); return v }

// SetNextPage atomically updates the forward sibling pointer.
func (p *Page) SetNextPage(v int64) error {
	return p.atomic(func() error { return p.writeI64(offNextPage, v) })
}

// SetPrevPage atomically updates the backward sibling pointer.
func (p *Page) SetPrevPage(v int64) error {
	return p.atomic(func() error { return p.writeI64(offPrevPage, v) })
}

// Magic returns the page-typing field; its contents are owned by the
// higher layer.
func (p *Page) Magic() uint64 { v, _ := p.readU64(offMagic); return v }

// SetMagic atomically writes the page-typing field.
func (p *Page) SetMagic(v uint64) error {
	return p.atomic(func() error { return p.writeU64(offMagic, v) })
}

// Checksum returns the page checksum field; computed by the higher layer
// at flush time, not by Page itself.
func (p *Page) Checksum() uint32 { v, _ := p.readU32(offCRC32); return v }

// SetChecksum atomically writes the page checksum field.
func (p *Page) SetChecksum(v uint32) error {
	return p.atomic(func() error { return p.writeU32(offCRC32, v) })
}

// LSN returns the page's last-applied log sequence number.
func (p *Page) LSN() LSN {
	seg, _ := p.readU64(offWALSegment)
	pos, _ := p.readU32(offWALPosition)
	return LSN{Segment: seg, Position: pos}
}

// FreeSpace returns the bytes currently available for a new slot+entry.
func (p *Page) FreeSpace() uint32 { v, _ := p.readU32(offFreeSpace); return v }

// RecordsCount returns the number of live (non-tombstoned) entries.
func (p *Page) RecordsCount() uint32 { v, _ := p.readU32(offEntriesCount); return v }

// SlotCount returns the number of slot-directory entries ever allocated.
func (p *Page) SlotCount() uint32 { v, _ := p.readU32(offSlotCount); return v }

// FreelistHead returns the 1-based id of the most recently freed slot, or 0
// if the freelist is empty.
func (p *Page) FreelistHead() uint32 { v, _ := p.readU32(offFreelistHead); return v }

// FreePosition returns the byte offset where the record heap starts.
func (p *Page) FreePosition() uint32 { v, _ := p.readU32(offFreePosition); return v }

// IsEmpty reports whether the page holds zero allocated bytes: equality
// against the fresh-page free space, not entries_count == 0, since a page
// whose only slots are tombstoned is not empty (§3.4 note).
func (p *Page) IsEmpty() bool {
	return p.FreeSpace() == uint32(PageSize-SlotOffset)
}

// MaxRecordSize reports the largest payload AppendRecord could accept on
// this page right now, given its current free space and freelist state.
func (p *Page) MaxRecordSize() int {
	fs := int(p.FreeSpace())
	if p.FreelistHead() > 0 {
		return fs - 8
	}
	return fs - SlotSize - 8
}

func slotOffset(slot uint32) int {
	return SlotOffset + int(slot)*SlotSize
}

func (p *Page) readSlotPointer(slot uint32) (uint32, error) {
	return p.buf.ReadUint32(slotOffset(slot))
}

func (p *Page) writeSlotPointer(slot uint32, ptr uint32) error {
	return p.writeU32(slotOffset(slot), ptr)
}

func (p *Page) readSlotVersion(slot uint32) (Version, error) {
	b, err := p.buf.ReadBytes(slotOffset(slot)+4, VSize)
	if err != nil {
		return 0, err
	}
	return decodeVersion(b), nil
}

func (p *Page) writeSlotVersion(slot uint32, v Version) error {
	enc := v.encode()
	return p.writeBytes(slotOffset(slot)+4, enc[:])
}

func (p *Page) readEntrySize(pos int) (int32, error)     { return p.readI32(pos) }
func (p *Page) readOwningSlot(pos int) (uint32, error)   { return p.readU32(pos + 4) }
func (p *Page) writeOwningSlot(pos int, slot uint32) error { return p.writeU32(pos+4, slot) }

// AppendRecord allocates a slot for payload, stamped with version, and
// returns its slot id. Returns ErrNoSpace if the page cannot fit it.
func (p *Page) AppendRecord(version Version, payload []byte) (uint32, error) {
	if len(payload) > MaxRecordSize() {
		return 0, fmt.Errorf("page: payload of %d bytes exceeds max record size %d: %w", len(payload), MaxRecordSize(), ErrNoSpace)
	}
	entrySize := int32(len(payload) + 8)

	var slot uint32
	noSpace := false

	err := p.atomic(func() error {
		freelistHead := p.FreelistHead()
		freeSpace := int(p.FreeSpace())

		if freelistHead > 0 {
			if freeSpace < int(entrySize) {
				noSpace = true
				return nil
			}
		} else if freeSpace < int(entrySize)+SlotSize {
			noSpace = true
			return nil
		}

		freePos := int(p.FreePosition())
		slotCount := int(p.SlotCount())
		newSlotCount := slotCount
		if freelistHead == 0 {
			newSlotCount++
		}
		dirEnd := SlotOffset + newSlotCount*SlotSize
		if freePos-int(entrySize) < dirEnd {
			if err := p.defragment(); err != nil {
				return err
			}
			freePos = int(p.FreePosition())
		}
		freePos -= int(entrySize)

		if freelistHead > 0 {
			s := freelistHead - 1
			oldPtr, err := p.readSlotPointer(s)
			if err != nil {
				return err
			}
			nextLink := oldPtr & positionMask
			if err := p.writeU32(offFreelistHead, nextLink); err != nil {
				return err
			}
			if err := p.writeSlotPointer(s, uint32(freePos)); err != nil {
				return err
			}

			oldVersion, err := p.readSlotVersion(s)
			if err != nil {
				return err
			}
			newVersion := version
			if !oldVersion.Less(version) {
				newVersion = oldVersion.Next()
			}
			if err := p.writeSlotVersion(s, newVersion); err != nil {
				return err
			}
			if err := p.writeU32(offFreeSpace, uint32(freeSpace-int(entrySize))); err != nil {
				return err
			}
			slot = s
		} else {
			s := uint32(slotCount)
			if err := p.writeU32(offSlotCount, uint32(newSlotCount)); err != nil {
				return err
			}
			if err := p.writeSlotPointer(s, uint32(freePos)); err != nil {
				return err
			}
			if err := p.writeSlotVersion(s, version); err != nil {
				return err
			}
			if err := p.writeU32(offFreeSpace, uint32(freeSpace-int(entrySize)-SlotSize)); err != nil {
				return err
			}
			slot = s
		}

		if err := p.writeI32(freePos, entrySize); err != nil {
			return err
		}
		if err := p.writeOwningSlot(freePos, slot); err != nil {
			return err
		}
		if err := p.writeBytes(freePos+8, payload); err != nil {
			return err
		}

		if err := p.writeU32(offFreePosition, uint32(freePos)); err != nil {
			return err
		}
		return p.writeU32(offEntriesCount, p.RecordsCount()+1)
	})

	if err != nil {
		return 0, err
	}
	if noSpace {
		return 0, ErrNoSpace
	}
	return slot, nil
}

// DeleteRecord tombstones slot, threading it onto the freelist. Returns
// false without error if slot doesn't exist or is already tombstoned — that
// is not an error condition.
func (p *Page) DeleteRecord(slot uint32) (bool, error) {
	deleted := false

	err := p.atomic(func() error {
		if slot >= p.SlotCount() {
			return nil
		}
		ptr, err := p.readSlotPointer(slot)
		if err != nil {
			return err
		}
		if ptr&tombstoneBit != 0 {
			return nil
		}
		entryPos := int(ptr & positionMask)

		freelistHead := p.FreelistHead()
		newPtr := (freelistHead & positionMask) | tombstoneBit
		if err := p.writeSlotPointer(slot, newPtr); err != nil {
			return err
		}
		if err := p.writeU32(offFreelistHead, slot+1); err != nil {
			return err
		}

		size, err := p.readEntrySize(entryPos)
		if err != nil {
			return err
		}
		invariant(size > 0, "delete_record: entry size was not positive")
		if err := p.writeI32(entryPos, -size); err != nil {
			return err
		}

		if err := p.writeU32(offFreeSpace, p.FreeSpace()+uint32(size)); err != nil {
			return err
		}
		if err := p.writeU32(offEntriesCount, p.RecordsCount()-1); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// RecordVersion returns slot's stored version. Undefined if the slot is
// tombstoned — callers must check IsDeleted first.
func (p *Page) RecordVersion(slot uint32) (Version, error) {
	return p.readSlotVersion(slot)
}

// RecordSize returns slot's payload length, or -1 if tombstoned.
func (p *Page) RecordSize(slot uint32) int32 {
	ptr, err := p.readSlotPointer(slot)
	if err != nil || ptr&tombstoneBit != 0 {
		return -1
	}
	size, err := p.readEntrySize(int(ptr & positionMask))
	if err != nil {
		return -1
	}
	return size - 8
}

// IsDeleted reports whether slot is tombstoned.
func (p *Page) IsDeleted(slot uint32) bool {
	ptr, err := p.readSlotPointer(slot)
	if err != nil {
		return true
	}
	return ptr&tombstoneBit != 0
}

// RecordBytes returns a zero-copy view of slot's payload, aliasing the page
// buffer, and true — or nil, false if the slot is tombstoned. The slice is
// only valid until the page is next mutated; this replaces the original's
// raw address return (spec.md §9) with Go's native slice-lifetime
// discipline.
func (p *Page) RecordBytes(slot uint32) ([]byte, bool) {
	ptr, err := p.readSlotPointer(slot)
	if err != nil || ptr&tombstoneBit != 0 {
		return nil, false
	}
	pos := int(ptr & positionMask)
	size, err := p.readEntrySize(pos)
	if err != nil || size <= 0 {
		return nil, false
	}
	b, err := p.buf.Slice(pos+8, int(size)-8)
	if err != nil {
		return nil, false
	}
	return b, true
}

// FindFirstDeleted scans the directory ascending from from (inclusive) and
// returns the first tombstoned slot id, or -1.
func (p *Page) FindFirstDeleted(from uint32) int64 {
	n := p.SlotCount()
	for s := from; s < n; s++ {
		if p.IsDeleted(s) {
			return int64(s)
		}
	}
	return -1
}

// FindFirstLive scans the directory ascending from from (inclusive) and
// returns the first live slot id, or -1.
func (p *Page) FindFirstLive(from uint32) int64 {
	n := p.SlotCount()
	for s := from; s < n; s++ {
		if !p.IsDeleted(s) {
			return int64(s)
		}
	}
	return -1
}

// FindLastLive scans the directory descending from min(slot_count-1,
// atOrBefore) and returns the first live slot id encountered, or -1.
func (p *Page) FindLastLive(atOrBefore uint32) int64 {
	n := p.SlotCount()
	if n == 0 {
		return -1
	}
	start := atOrBefore
	if start > n-1 {
		start = n - 1
	}
	for {
		if !p.IsDeleted(start) {
			return int64(start)
		}
		if start == 0 {
			break
		}
		start--
	}
	return -1
}

// defragment rewrites the heap region [free_position, PageSize) so that all
// dead holes are coalesced at the low-address end, adjacent to the slot
// directory. It walks the heap once collecting live entries in heap order,
// then rewrites them packed at the top, updating each slot's position in a
// single pass — the "cleaner redesign" spec.md §9 prefers over eager
// per-hole shifting.
func (p *Page) defragment() error {
	type liveEntry struct {
		size    int32
		slot    uint32
		payload []byte
	}

	cursor := int(p.FreePosition())
	var entries []liveEntry
	totalSize := 0

	for cursor < PageSize {
		size, err := p.readEntrySize(cursor)
		if err != nil {
			return err
		}
		if size > 0 {
			slot, err := p.readOwningSlot(cursor)
			if err != nil {
				return err
			}
			payload, err := p.buf.ReadBytes(cursor+8, int(size)-8)
			if err != nil {
				return err
			}
			entries = append(entries, liveEntry{size: size, slot: slot, payload: payload})
			totalSize += int(size)
			cursor += int(size)
		} else {
			cursor += int(-size)
		}
	}

	pos := PageSize - totalSize
	for _, e := range entries {
		if err := p.writeI32(pos, e.size); err != nil {
			return err
		}
		if err := p.writeOwningSlot(pos, e.slot); err != nil {
			return err
		}
		if err := p.writeBytes(pos+8, e.payload); err != nil {
			return err
		}
		if err := p.writeSlotPointer(e.slot, uint32(pos)); err != nil {
			return err
		}
		pos += int(e.size)
	}

	return p.writeU32(offFreePosition, uint32(PageSize-totalSize))
}
