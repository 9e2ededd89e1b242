package page

import "sync"

// MemoryWAL accumulates records in memory in append order, handing out LSNs
// from a single fixed segment. It exists for tests that need to inspect or
// replay exactly what a page operation logged — most directly, the
// WAL-redo-equivalence property (spec.md §8.1 property 7).
type MemoryWAL struct {
	mu      sync.Mutex
	segment uint64
	pos     uint32
	records []Record
}

// NewMemoryWAL returns an empty in-memory WAL on the given segment number.
func NewMemoryWAL(segment uint64) *MemoryWAL {
	return &MemoryWAL{segment: segment}
}

// Log implements WAL.
func (w *MemoryWAL) Log(rec Record) (LSN, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	lsn := LSN{Segment: w.segment, Position: w.pos}
	w.pos++

	// Defensively copy the payload: callers of Log may reuse their buffer.
	if rec.Payload != nil {
		rec.Payload = append([]byte(nil), rec.Payload...)
	}
	w.records = append(w.records, rec)
	return lsn, nil
}

// Records returns a copy of every record logged so far, in program order.
func (w *MemoryWAL) Records() []Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Record, len(w.records))
	copy(out, w.records)
	return out
}

// Replay re-applies the SetPageData records in recs directly onto buf,
// bypassing any WAL — exactly what a nullary-sink Page does during
// recovery, since the writes it would otherwise log are the ones already
// being replayed.
func Replay(buf []byte, recs []Record) error {
	b := Buffer(buf)
	for _, rec := range recs {
		if rec.Kind != RecSetPageData {
			continue
		}
		if err := b.WriteBytes(int(rec.Offset), rec.Payload); err != nil {
			return err
		}
	}
	return nil
}
