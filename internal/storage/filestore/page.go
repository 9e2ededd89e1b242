package filestore

import (
	"fmt"
	"pagedb/internal/sql"
	"pagedb/internal/storage/page"
)

// rowVersion stamps every row slot with a fixed version. Optimistic
// concurrency across row updates is a higher-layer concern this engine
// doesn't implement yet, so the slotted page's version field is carried but
// otherwise unused here.
const rowVersion page.Version = 1

// HeapPage is a table's on-disk unit of storage: a slotted page.Page holding
// encoded sql.Row values, one per live slot.
type HeapPage struct {
	*page.Page
}

// newEmptyHeapPage allocates and initializes a fresh heap page backed by its
// own buffer, logging its creation to wal (nil disables logging).
func newEmptyHeapPage(pageID uint32, wal page.WAL) (*HeapPage, error) {
	buf := make([]byte, page.PageSize)
	p, err := page.New(buf, wal, pageID, "")
	if err != nil {
		return nil, fmt.Errorf("filestore: init heap page %d: %w", pageID, err)
	}
	return &HeapPage{p}, nil
}

// attachHeapPage wraps an already-initialized page buffer read back from
// disk, without touching its contents.
func attachHeapPage(buf []byte, wal page.WAL, pageID uint32) (*HeapPage, error) {
	p, err := page.Attach(buf, wal, pageID, "")
	if err != nil {
		return nil, fmt.Errorf("filestore: attach heap page %d: %w", pageID, err)
	}
	return &HeapPage{p}, nil
}

// insertRow appends rowBytes as a new live slot, returning its slot id.
// Returns an error matching page.ErrNoSpace (errors.Is) if the page has no
// room.
func (h *HeapPage) insertRow(rowBytes []byte) (uint32, error) {
	slot, err := h.AppendRecord(rowVersion, rowBytes)
	if err != nil {
		return 0, err
	}
	return slot, nil
}

// iterateRows calls fn(slot, row) for every live row on the page, in slot
// order.
func (h *HeapPage) iterateRows(numCols int, fn func(slot uint32, row sql.Row) error) error {
	n := h.SlotCount()
	for s := uint32(0); s < n; s++ {
		if h.IsDeleted(s) {
			continue
		}
		rowBytes, ok := h.RecordBytes(s)
		if !ok {
			continue
		}
		row, err := readRowFromBytes(rowBytes, numCols)
		if err != nil {
			return fmt.Errorf("filestore: read row at slot %d: %w", s, err)
		}
		if err := fn(s, row); err != nil {
			return err
		}
	}
	return nil
}

// rowAt decodes the row stored at slot, or ok=false if the slot is
// tombstoned.
func (h *HeapPage) rowAt(slot uint32, numCols int) (sql.Row, bool, error) {
	rowBytes, ok := h.RecordBytes(slot)
	if !ok {
		return nil, false, nil
	}
	row, err := readRowFromBytes(rowBytes, numCols)
	if err != nil {
		return nil, false, fmt.Errorf("filestore: read row at slot %d: %w", slot, err)
	}
	return row, true, nil
}
