package btree

import (
	"encoding/binary"
	"errors"

	"pagedb/internal/storage/page"
)

const (
	PageSize = 4096

	PageTypeLeaf     = 1
	PageTypeInternal = 2

	indexFileMagic = "BTREE1" // 6 bytes
)

var (
	ErrBadPage = errors.New("btree: bad page")
)

// PageHeader describes the fixed part of an index page.
type PageHeader struct {
	PageType     uint8
	ParentPageID uint32
	NumKeys      uint32
}

// index pages reuse the slotted-page module's bounds-checked Buffer
// accessor instead of raw encoding/binary slicing; offsets below are fixed
// by layout, so a checkRange failure here means a caller handed us a
// truncated page and is treated the same as the zero value.

func readPageHeader(p []byte) PageHeader {
	b := page.Buffer(p)
	parent, _ := b.ReadUint32(4)
	numKeys, _ := b.ReadUint32(8)
	return PageHeader{
		PageType:     p[0],
		ParentPageID: parent,
		NumKeys:      numKeys,
	}
}

func writePageHeader(p []byte, h PageHeader) {
	b := page.Buffer(p)
	p[0] = h.PageType
	// p[1:4] unused
	_ = b.WriteUint32(4, h.ParentPageID)
	_ = b.WriteUint32(8, h.NumKeys)
}

func leafGetKey(p []byte, idx uint32) Key {
	off := 16 + int(idx)*leafEntrySize // skip header (16 bytes)
	v, _ := page.Buffer(p).ReadUint64(off)
	return int64(v)
}

func leafGetRID(p []byte, idx uint32) RID {
	off := 16 + int(idx)*leafEntrySize + 8
	pageID := binary.LittleEndian.Uint32(p[off : off+4])
	slotID := binary.LittleEndian.Uint16(p[off+4 : off+6])
	return RID{PageID: pageID, SlotID: slotID}
}

func leafSetEntry(p []byte, idx uint32, key Key, rid RID) {
	off := 16 + int(idx)*leafEntrySize
	b := page.Buffer(p)
	_ = b.WriteUint64(off, uint64(key))
	off += 8
	_ = b.WriteUint32(off, rid.PageID)
	binary.LittleEndian.PutUint16(p[off+4:off+6], rid.SlotID)
}

func internalGetChild(p []byte, idx uint32) uint32 {
	off := 16 + int(idx)*internalEntrySize
	v, _ := page.Buffer(p).ReadUint32(off)
	return v
}

func internalGetKey(p []byte, idx uint32) Key {
	off := 16 + int(idx)*internalEntrySize + 4
	v, _ := page.Buffer(p).ReadUint64(off)
	return int64(v)
}

func internalSetEntry(p []byte, idx uint32, child uint32, key Key) {
	off := 16 + int(idx)*internalEntrySize
	b := page.Buffer(p)
	_ = b.WriteUint32(off, child)
	_ = b.WriteUint64(off+4, uint64(key))
}
