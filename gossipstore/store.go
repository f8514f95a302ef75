package gossipstore

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"sync"

	"github.com/lnoverlay/gossipd/metrics"
)

const (
	// formatVersion is written as the single byte at offset 0 of every
	// store file. Readable offsets begin at 1 (§3, §6).
	formatVersion byte = 0x05

	// headerSize is len(4) + crc(4) + timestamp(4).
	headerSize = 12

	// lenDeletedBit is the tombstone flag, the high bit of the length
	// field (§3, §6).
	lenDeletedBit uint32 = 1 << 31
	lenMask       uint32 = ^lenDeletedBit
)

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// Record is a single decoded store entry: its location, sequencing, and
// payload.
type Record struct {
	// Offset is the byte offset of this record's header in the store
	// file, the stable identifier callers may hold onto (§3).
	Offset int64

	// Index is the broadcast index assigned at append time.
	Index uint64

	Timestamp uint32
	Payload   []byte
	Deleted   bool
}

// Store is the append-only, CRC-protected gossip log described in §4.2.
// All mutation (Append, Tombstone, Compact) is expected to come from a
// single writer (the routing table); concurrent readers (per-peer
// forwarding loops) use positional reads and never share the OS file
// offset, so no read-side locking is required.
type Store struct {
	mu    sync.Mutex
	file  *os.File
	path  string
	size  int64
	bcast *BroadcastIndex
}

func crcOf(timestamp uint32, payload []byte) uint32 {
	var tsBuf [4]byte
	binary.BigEndian.PutUint32(tsBuf[:], timestamp)

	h := crc32.New(crc32cTable)
	h.Write(tsBuf[:])
	h.Write(payload)
	return h.Sum32()
}

func encodeRecord(timestamp uint32, payload []byte, deleted bool) []byte {
	buf := make([]byte, headerSize+len(payload))

	lenField := uint32(len(payload))
	if deleted {
		lenField |= lenDeletedBit
	}
	crc := crcOf(timestamp, payload)

	binary.BigEndian.PutUint32(buf[0:4], lenField)
	binary.BigEndian.PutUint32(buf[4:8], crc)
	binary.BigEndian.PutUint32(buf[8:12], timestamp)
	copy(buf[headerSize:], payload)

	return buf
}

// Open opens (creating if necessary) the store at path, replaying it to
// find the valid end of file and to rebuild the in-memory broadcast index
// (§6: "on restart the table is rebuilt by streaming the store from offset
// 1"). A record whose declared length would run past the end of the file is
// treated as torn-write trailing garbage and silently discarded by
// truncating to its header offset. A record that is fully present but
// fails its CRC check is a genuine corruption, not a torn write (a torn
// write can only ever cut off a tail, never flip bits inside an otherwise
// complete record) — that case returns ErrCorrupt and the store refuses to
// open, per §7's StoreCorrupt/fatal handling and the corrupt-CRC scenario
// in §8.
func Open(path string) (*Store, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, err
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	size := stat.Size()
	if size == 0 {
		if _, err := f.WriteAt([]byte{formatVersion}, 0); err != nil {
			f.Close()
			return nil, err
		}
		size = 1
	} else {
		var hdr [1]byte
		if _, err := f.ReadAt(hdr[:], 0); err != nil {
			f.Close()
			return nil, err
		}
		if hdr[0] != formatVersion {
			f.Close()
			return nil, ErrUnsupportedVersion
		}
	}

	s := &Store{
		file:  f,
		path:  path,
		size:  size,
		bcast: NewBroadcastIndex(),
	}

	if err := s.replay(); err != nil {
		f.Close()
		return nil, err
	}

	return s, nil
}

// replay walks the store from offset 1, assigning sequential broadcast
// indices to every record it finds (live or tombstoned — tombstoning never
// removes a record's index, only compaction does), truncating at the first
// torn-write tail it encounters.
func (s *Store) replay() error {
	offset := int64(1)

	for offset < s.size {
		lenField, _, _, ok, err := s.headerAt(offset)
		if err != nil {
			return err
		}
		if !ok {
			// Not enough bytes left for a full header: torn write.
			break
		}

		payloadLen := int64(lenField & lenMask)
		recordEnd := offset + headerSize + payloadLen
		if recordEnd > s.size {
			break
		}

		payload := make([]byte, payloadLen)
		if _, err := s.file.ReadAt(payload, offset+headerSize); err != nil {
			return err
		}

		var tsBuf [4]byte
		if _, err := s.file.ReadAt(tsBuf[:], offset+8); err != nil {
			return err
		}
		timestamp := binary.BigEndian.Uint32(tsBuf[:])

		var crcBuf [4]byte
		if _, err := s.file.ReadAt(crcBuf[:], offset+4); err != nil {
			return err
		}
		declaredCRC := binary.BigEndian.Uint32(crcBuf[:])

		if crcOf(timestamp, payload) != declaredCRC {
			log.Errorf("gossipstore: corrupt record at offset %d, "+
				"refusing to serve", offset)
			return ErrCorrupt
		}

		s.bcast.AssignNext(offset)
		offset = recordEnd
	}

	if offset != s.size {
		log.Warnf("gossipstore: truncating torn write at offset %d "+
			"(file size %d)", offset, s.size)
		if err := s.file.Truncate(offset); err != nil {
			return err
		}
		s.size = offset
	}

	return nil
}

// headerAt reads the 12-byte header at offset. ok is false if fewer than
// headerSize bytes remain in the file at offset (a torn write).
func (s *Store) headerAt(offset int64) (lenField, crc, timestamp uint32, ok bool, err error) {
	if offset+headerSize > s.size {
		return 0, 0, 0, false, nil
	}

	var buf [headerSize]byte
	if _, err := s.file.ReadAt(buf[:], offset); err != nil {
		return 0, 0, 0, false, err
	}

	lenField = binary.BigEndian.Uint32(buf[0:4])
	crc = binary.BigEndian.Uint32(buf[4:8])
	timestamp = binary.BigEndian.Uint32(buf[8:12])
	return lenField, crc, timestamp, true, nil
}

// Append writes a new record and returns its assigned broadcast index. On
// any write error the file is truncated back to the pre-append offset
// before ErrIO (wrapping the underlying write error, if there is one) is
// returned, so a failed append never leaves a torn record lying around for
// the next Open to have to recover from.
func (s *Store) Append(payload []byte, timestamp uint32) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	offset := s.size
	buf := encodeRecord(timestamp, payload, false)

	n, err := s.file.WriteAt(buf, offset)
	if err != nil || n < len(buf) {
		s.file.Truncate(offset)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrIO, err)
		}
		return 0, ErrIO
	}

	s.size = offset + int64(len(buf))
	idx := s.bcast.AssignNext(offset)

	metrics.RecordsAppended.Inc()
	metrics.StoreSizeBytes.Set(float64(s.size))

	return idx, nil
}

// Tombstone sets the deleted bit on the record at index via a single
// positional write to its length field. Idempotent: tombstoning an
// already-deleted record is a no-op write of the same bits.
func (s *Store) Tombstone(index uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	offset, ok := s.bcast.ToOffset(index)
	if !ok {
		return ErrNotFound
	}

	var lenBuf [4]byte
	if _, err := s.file.ReadAt(lenBuf[:], offset); err != nil {
		return err
	}
	lenField := binary.BigEndian.Uint32(lenBuf[:]) | lenDeletedBit
	binary.BigEndian.PutUint32(lenBuf[:], lenField)

	if _, err := s.file.WriteAt(lenBuf[:], offset); err != nil {
		return err
	}
	metrics.RecordsTombstoned.Inc()
	return nil
}

// ReadAt decodes the single record whose header begins at offset, along
// with the offset of the record that follows it. It does not itself skip
// tombstoned records — callers streaming forward (the per-peer gossip
// forwarding loop, §4.6) are responsible for checking Record.Deleted and
// advancing to NextOffset themselves, since what to do with a tombstoned
// record (skip silently vs. surface it) is a policy decision that varies by
// caller.
func (s *Store) ReadAt(offset int64) (rec *Record, nextOffset int64, err error) {
	if offset >= s.Size() {
		return nil, offset, ErrEOF
	}

	lenField, crc, timestamp, ok, err := s.headerAt(offset)
	if err != nil {
		return nil, offset, err
	}
	if !ok {
		return nil, offset, ErrCorrupt
	}

	payloadLen := int64(lenField & lenMask)
	recordEnd := offset + headerSize + payloadLen
	if recordEnd > s.Size() {
		return nil, offset, ErrCorrupt
	}

	payload := make([]byte, payloadLen)
	if _, err := s.file.ReadAt(payload, offset+headerSize); err != nil {
		return nil, offset, err
	}

	if crcOf(timestamp, payload) != crc {
		return nil, offset, ErrCorrupt
	}

	rec = &Record{
		Offset:    offset,
		Timestamp: timestamp,
		Payload:   payload,
		Deleted:   lenField&lenDeletedBit != 0,
	}

	return rec, recordEnd, nil
}

// Size returns the current end-of-file offset.
func (s *Store) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// BroadcastIndex exposes the store's index → offset mapping for readers
// that need to resolve a peer-visible index (e.g. resuming replication).
func (s *Store) BroadcastIndex() *BroadcastIndex {
	return s.bcast
}

// Close releases the underlying file descriptor.
func (s *Store) Close() error {
	return s.file.Close()
}

// Compact rewrites the store to contain only live records in their
// original order, preserving timestamps but reassigning contiguous
// broadcast indices starting at 1. It returns the byte count the file
// shrank by, which callers must feed to MigrateCursor for every
// outstanding per-peer cursor before unlinking anything (§4.2, §5).
func (s *Store) Compact() (shrinkage int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmpPath := s.path + ".compact"
	tmp, err := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return 0, err
	}

	if _, err := tmp.WriteAt([]byte{formatVersion}, 0); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return 0, err
	}

	newBcast := NewBroadcastIndex()
	writeOffset := int64(1)

	offset := int64(1)
	for offset < s.size {
		lenField, crc, timestamp, ok, err := s.headerAt(offset)
		if err != nil || !ok {
			break
		}

		payloadLen := int64(lenField & lenMask)
		recordEnd := offset + headerSize + payloadLen
		if recordEnd > s.size {
			break
		}

		deleted := lenField&lenDeletedBit != 0
		if !deleted {
			payload := make([]byte, payloadLen)
			if _, err := s.file.ReadAt(payload, offset+headerSize); err != nil {
				tmp.Close()
				os.Remove(tmpPath)
				return 0, err
			}
			if crcOf(timestamp, payload) != crc {
				tmp.Close()
				os.Remove(tmpPath)
				return 0, ErrCorrupt
			}

			buf := encodeRecord(timestamp, payload, false)
			if _, err := tmp.WriteAt(buf, writeOffset); err != nil {
				tmp.Close()
				os.Remove(tmpPath)
				return 0, err
			}
			newBcast.AssignNext(writeOffset)
			writeOffset += int64(len(buf))
		}

		offset = recordEnd
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return 0, err
	}

	oldSize := s.size
	newSize := writeOffset

	if err := s.file.Close(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return 0, err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return 0, err
	}

	s.file = tmp
	s.size = newSize
	s.bcast = newBcast

	shrinkage = oldSize - newSize
	metrics.CompactionsRun.Inc()
	metrics.BytesShrunk.Add(float64(shrinkage))
	metrics.StoreSizeBytes.Set(float64(newSize))

	return shrinkage, nil
}
