package page

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const fileWALMagic = "PGWAL1\x00\x00" // 8 bytes

// FileWAL is an append-only, file-backed WAL sink. It writes to one
// physical segment file at a time (Rotate switches to a new one) and hands
// out LSNs as (segment, byte offset of the
// record's start). The on-disk record shape mirrors the teacher's
// filestore WAL: a small fixed header (kind, page index, file name) plus a
// length-prefixed payload, so ReadFileWAL can parse it back for recovery.
type FileWAL struct {
	mu      sync.Mutex
	f       *os.File
	segment uint64
	pos     int64
	log     *logrus.Entry
}

// OpenFileWAL opens (creating if necessary) the WAL segment file at path.
func OpenFileWAL(path string, segment uint64) (*FileWAL, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("page: open wal %q: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("page: stat wal %q: %w", path, err)
	}

	pos := info.Size()
	if pos == 0 {
		n, err := f.Write([]byte(fileWALMagic))
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("page: write wal magic: %w", err)
		}
		pos = int64(n)
	}

	return &FileWAL{
		f:       f,
		segment: segment,
		pos:     pos,
		log:     logrus.WithField("component", "page.wal").WithField("path", path),
	}, nil
}

// Rotate closes the current segment file and opens a fresh one in dir,
// named with a time-ordered UUIDv7 so segment files sort the same way their
// LSNs do. It returns the new segment's path.
func (w *FileWAL) Rotate(dir string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("page: generate wal segment id: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("pages-%s.wal", id))

	if w.f != nil {
		if err := w.f.Close(); err != nil {
			return "", fmt.Errorf("page: close old wal segment: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return "", fmt.Errorf("page: open wal segment %q: %w", path, err)
	}
	if _, err := f.Write([]byte(fileWALMagic)); err != nil {
		f.Close()
		return "", fmt.Errorf("page: write wal magic: %w", err)
	}

	w.f = f
	w.segment++
	w.pos = int64(len(fileWALMagic))
	w.log = w.log.WithField("path", path)
	w.log.WithField("segment", w.segment).Info("rotated wal segment")

	return path, nil
}

// Close closes the underlying file.
func (w *FileWAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}

// Log implements WAL.
func (w *FileWAL) Log(rec Record) (LSN, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		return LSN{}, fmt.Errorf("page: wal is closed: %w", ErrWalFailure)
	}

	lsn := LSN{Segment: w.segment, Position: uint32(w.pos)}

	var buf bytes.Buffer
	buf.WriteByte(byte(rec.Kind))
	_ = binary.Write(&buf, binary.LittleEndian, rec.PageIndex)
	nameBytes := []byte(rec.FileName)
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(nameBytes)))
	buf.Write(nameBytes)
	_ = binary.Write(&buf, binary.LittleEndian, rec.Offset)
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(rec.Payload)))
	buf.Write(rec.Payload)

	n, err := w.f.Write(buf.Bytes())
	if err != nil {
		w.log.WithError(err).WithField("kind", rec.Kind).Error("wal append failed")
		return LSN{}, fmt.Errorf("page: wal append: %w", ErrWalFailure)
	}
	w.pos += int64(n)
	return lsn, nil
}

// ReadFileWAL parses every record out of a WAL segment file written by
// FileWAL, in append order. Used by the higher layer during recovery.
func ReadFileWAL(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("page: open wal %q for read: %w", path, err)
	}
	defer f.Close()

	magic := make([]byte, len(fileWALMagic))
	if _, err := io.ReadFull(f, magic); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("page: read wal magic: %w", err)
	}
	if string(magic) != fileWALMagic {
		return nil, fmt.Errorf("page: %q is not a page WAL segment", path)
	}

	var recs []Record
	for {
		var kindByte [1]byte
		if _, err := io.ReadFull(f, kindByte[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("page: read wal record kind: %w", err)
		}

		var rec Record
		rec.Kind = RecordKind(kindByte[0])

		if err := binary.Read(f, binary.LittleEndian, &rec.PageIndex); err != nil {
			return nil, fmt.Errorf("page: read wal page index: %w", err)
		}
		var nameLen uint16
		if err := binary.Read(f, binary.LittleEndian, &nameLen); err != nil {
			return nil, fmt.Errorf("page: read wal file name length: %w", err)
		}
		nameBytes := make([]byte, nameLen)
		if _, err := io.ReadFull(f, nameBytes); err != nil {
			return nil, fmt.Errorf("page: read wal file name: %w", err)
		}
		rec.FileName = string(nameBytes)

		if err := binary.Read(f, binary.LittleEndian, &rec.Offset); err != nil {
			return nil, fmt.Errorf("page: read wal offset: %w", err)
		}
		var payloadLen uint32
		if err := binary.Read(f, binary.LittleEndian, &payloadLen); err != nil {
			return nil, fmt.Errorf("page: read wal payload length: %w", err)
		}
		rec.Payload = make([]byte, payloadLen)
		if _, err := io.ReadFull(f, rec.Payload); err != nil {
			return nil, fmt.Errorf("page: read wal payload: %w", err)
		}

		recs = append(recs, rec)
	}

	return recs, nil
}
