// Package gossipstore implements the durable, append-only log of validated
// gossip messages described in spec §4.2 (store) and §4.3 (broadcast
// index): a file of length-prefixed, CRC-protected records supporting
// in-place tombstoning, streaming sequential reads from arbitrary offsets,
// and offline compaction.
package gossipstore

import "github.com/go-errors/errors"

var (
	// ErrNotFound is returned by Tombstone when the given index has no
	// corresponding live mapping in the broadcast index.
	ErrNotFound = errors.New("gossipstore: index not found")

	// ErrCorrupt is returned when a record's declared length exceeds the
	// file or its CRC does not match the stored value. Any corruption
	// discovered outside of startup replay is fatal (§7 StoreCorrupt).
	ErrCorrupt = errors.New("gossipstore: corrupt record")

	// ErrEOF is returned by ReadAt when offset is at or past the current
	// end of the store.
	ErrEOF = errors.New("gossipstore: end of store")

	// ErrUnsupportedVersion is returned by Open when the store's format
	// version header does not match the version this code writes.
	ErrUnsupportedVersion = errors.New("gossipstore: unsupported format version")

	// ErrIO is returned on a short or failed write during Append (§7
	// StoreIO); fatal to the caller.
	ErrIO = errors.New("gossipstore: write failed")
)
