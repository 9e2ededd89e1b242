package page

import (
	"encoding/binary"
	"fmt"
)

// Buffer is a bounds-checked, endian-stable view over a fixed-size byte
// slice. It owns no data: it is bound to a caller-supplied region for its
// lifetime, the same way the page buffer outlives the Page wrapping it.
type Buffer []byte

func (b Buffer) checkRange(off, n int) error {
	if off < 0 || n < 0 || off+n > len(b) {
		return fmt.Errorf("page: range [%d:%d) outside buffer of %d bytes: %w", off, off+n, len(b), ErrOutOfBounds)
	}
	return nil
}

// ReadUint32 reads a little-endian uint32 at off.
func (b Buffer) ReadUint32(off int) (uint32, error) {
	if err := b.checkRange(off, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[off : off+4]), nil
}

// WriteUint32 writes a little-endian uint32 at off.
func (b Buffer) WriteUint32(off int, v uint32) error {
	if err := b.checkRange(off, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b[off:off+4], v)
	return nil
}

// ReadUint64 reads a little-endian uint64 at off.
func (b Buffer) ReadUint64(off int) (uint64, error) {
	if err := b.checkRange(off, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[off : off+8]), nil
}

// WriteUint64 writes a little-endian uint64 at off.
func (b Buffer) WriteUint64(off int, v uint64) error {
	if err := b.checkRange(off, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(b[off:off+8], v)
	return nil
}

// ReadInt32 reads a two's-complement little-endian int32 at off.
func (b Buffer) ReadInt32(off int) (int32, error) {
	v, err := b.ReadUint32(off)
	return int32(v), err
}

// WriteInt32 writes a two's-complement little-endian int32 at off.
func (b Buffer) WriteInt32(off int, v int32) error {
	return b.WriteUint32(off, uint32(v))
}

// ReadInt64 reads a two's-complement little-endian int64 at off.
func (b Buffer) ReadInt64(off int) (int64, error) {
	v, err := b.ReadUint64(off)
	return int64(v), err
}

// WriteInt64 writes a two's-complement little-endian int64 at off.
func (b Buffer) WriteInt64(off int, v int64) error {
	return b.WriteUint64(off, uint64(v))
}

// ReadBytes returns a fresh copy of n bytes starting at off.
func (b Buffer) ReadBytes(off, n int) ([]byte, error) {
	if err := b.checkRange(off, n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b[off:off+n])
	return out, nil
}

// Slice returns a borrowed view of n bytes starting at off, aliasing the
// underlying buffer. Callers must not retain it across further mutation.
func (b Buffer) Slice(off, n int) ([]byte, error) {
	if err := b.checkRange(off, n); err != nil {
		return nil, err
	}
	return b[off : off+n], nil
}

// WriteBytes copies data into the buffer starting at off.
func (b Buffer) WriteBytes(off int, data []byte) error {
	if err := b.checkRange(off, len(data)); err != nil {
		return err
	}
	copy(b[off:off+len(data)], data)
	return nil
}

// Move copies n bytes from src to dst within the buffer. Go's builtin copy
// is memmove-safe, so both the forward- and backward-overlap cases are
// handled without special casing.
func (b Buffer) Move(dst, src, n int) error {
	if err := b.checkRange(dst, n); err != nil {
		return err
	}
	if err := b.checkRange(src, n); err != nil {
		return err
	}
	copy(b[dst:dst+n], b[src:src+n])
	return nil
}
