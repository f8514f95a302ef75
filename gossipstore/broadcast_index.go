package gossipstore

// BroadcastIndex maps the monotonically increasing 64-bit broadcast index
// assigned to each appended record onto that record's current byte offset
// in the store file (§3 Broadcast record, §4.3). Indices are published to
// peers via replication queries; offsets are a local, mutable detail that
// changes on every compaction, which is exactly why the indirection exists.
//
// Index 0 is reserved and never assigned, so that a zero store-index can be
// used elsewhere (§3 Invariant 3, half-channel "defined") as the sentinel
// for "no record yet" without colliding with a real index.
//
// Because every append is assigned the next sequential index with none ever
// skipped or reused within a single store generation, a plain slice keyed
// by index is sufficient: no hash map is needed.
type BroadcastIndex struct {
	offsets []int64
}

// NewBroadcastIndex returns an empty index with slot 0 reserved.
func NewBroadcastIndex() *BroadcastIndex {
	return &BroadcastIndex{offsets: []int64{-1}}
}

// AssignNext records offset as the location of the next monotonic index
// (starting at 1) and returns that index.
func (b *BroadcastIndex) AssignNext(offset int64) uint64 {
	idx := uint64(len(b.offsets))
	b.offsets = append(b.offsets, offset)
	return idx
}

// ToOffset resolves index to its current byte offset.
func (b *BroadcastIndex) ToOffset(index uint64) (int64, bool) {
	if index == 0 || index >= uint64(len(b.offsets)) {
		return 0, false
	}
	return b.offsets[index], true
}

// Len returns the number of real indices assigned so far.
func (b *BroadcastIndex) Len() uint64 {
	return uint64(len(b.offsets) - 1)
}

// After returns the smallest assigned index strictly greater than index,
// along with its offset, used to resume per-peer replication from a known
// high-water mark (§4.3).
func (b *BroadcastIndex) After(index uint64) (nextIndex uint64, offset int64, ok bool) {
	next := index + 1
	if next == 0 || next >= uint64(len(b.offsets)) {
		return 0, 0, false
	}
	return next, b.offsets[next], true
}
