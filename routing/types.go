package routing

import (
	"net"

	"github.com/lnoverlay/gossipd/lnwire"
)

// inlineChanCap is the number of channels a node keeps in its inline array
// before promoting to a hash set. Sized to the footprint of a two-bucket
// hash-set header — three pointers — per §4.8's memory policy.
const inlineChanCap = 3

// HalfChannel is one direction's routing policy for a channel (§3).
type HalfChannel struct {
	BaseFeeMsat      uint32
	FeeProportional  uint32
	Delay            uint16
	MinHTLCMsat      uint64
	MaxHTLCMsat      uint64
	HasMaxHTLC       bool
	MessageFlags     uint8
	ChannelFlags     uint8
	Timestamp        uint32
	StoreIndex       uint64
}

// Defined reports whether this half-channel has ever been set by a
// channel_update (§3: "defined when its store-index is non-zero").
func (h *HalfChannel) Defined() bool {
	return h.StoreIndex != 0
}

// Enabled reports whether the half-channel is defined and not flagged
// disabled.
func (h *HalfChannel) Enabled() bool {
	return h.Defined() && h.ChannelFlags&lnwire.ChanUpdateDisabled == 0
}

// Channel is a bidirectional payment channel between two canonically
// ordered nodes (§3).
type Channel struct {
	SCID lnwire.ShortChannelID

	// Nodes holds the two endpoints with Nodes[0].Less(Nodes[1]) always
	// true (Invariant 1).
	Nodes [2]lnwire.PubKey

	// CapacitySat is the on-chain funding amount. Zero for local-only
	// channels that have not yet been capacity-checked.
	CapacitySat int64

	// Halves[0] is the nodes[0]->nodes[1] direction, Halves[1] the
	// reverse, matching original_source's half[0]->src==nodes[0]
	// convention.
	Halves [2]HalfChannel

	// AnnounceStoreIndex is the store index of the channel_announcement
	// record, or 0 for a local-only channel that was never appended to
	// the store.
	AnnounceStoreIndex uint64

	// BcastTimestamp is non-zero iff the channel is public (Invariant
	// 2). Local-only channels are inserted with this at 0.
	BcastTimestamp uint32
}

// IsPublic reports whether the channel has been broadcast (Invariant 2).
func (c *Channel) IsPublic() bool {
	return c.BcastTimestamp != 0
}

// OtherNode returns the endpoint of c that isn't id.
func (c *Channel) OtherNode(id lnwire.PubKey) lnwire.PubKey {
	if c.Nodes[0] == id {
		return c.Nodes[1]
	}
	return c.Nodes[0]
}

// DirectionFrom returns the half-channel describing the policy for
// forwarding out of id, and the direction bit that identifies it.
func (c *Channel) DirectionFrom(id lnwire.PubKey) (*HalfChannel, uint8) {
	if c.Nodes[0] == id {
		return &c.Halves[0], 0
	}
	return &c.Halves[1], 1
}

// chanSet is the small-vector-to-hash-set promotion container for a node's
// incident channels (§4.8). Promotion is one-way: once a node's channel
// count exceeds inlineChanCap, it stays in map form even if later pruning
// drops it back below the threshold, because thrashing the representation
// would cost more than the memory it'd save.
type chanSet struct {
	inline   [inlineChanCap]*Channel
	inlineN  int
	promoted map[lnwire.ShortChannelID]*Channel
}

func (s *chanSet) add(ch *Channel) {
	if s.promoted != nil {
		s.promoted[ch.SCID] = ch
		return
	}

	for i := 0; i < s.inlineN; i++ {
		if s.inline[i].SCID == ch.SCID {
			s.inline[i] = ch
			return
		}
	}

	if s.inlineN < inlineChanCap {
		s.inline[s.inlineN] = ch
		s.inlineN++
		return
	}

	s.promote()
	s.promoted[ch.SCID] = ch
}

func (s *chanSet) promote() {
	s.promoted = make(map[lnwire.ShortChannelID]*Channel, s.inlineN+1)
	for i := 0; i < s.inlineN; i++ {
		s.promoted[s.inline[i].SCID] = s.inline[i]
		s.inline[i] = nil
	}
	s.inlineN = 0
}

func (s *chanSet) remove(scid lnwire.ShortChannelID) {
	if s.promoted != nil {
		delete(s.promoted, scid)
		return
	}

	for i := 0; i < s.inlineN; i++ {
		if s.inline[i].SCID == scid {
			s.inline[i] = s.inline[s.inlineN-1]
			s.inline[s.inlineN-1] = nil
			s.inlineN--
			return
		}
	}
}

func (s *chanSet) get(scid lnwire.ShortChannelID) (*Channel, bool) {
	if s.promoted != nil {
		ch, ok := s.promoted[scid]
		return ch, ok
	}
	for i := 0; i < s.inlineN; i++ {
		if s.inline[i].SCID == scid {
			return s.inline[i], true
		}
	}
	return nil, false
}

func (s *chanSet) len() int {
	if s.promoted != nil {
		return len(s.promoted)
	}
	return s.inlineN
}

func (s *chanSet) forEach(fn func(*Channel)) {
	if s.promoted != nil {
		for _, ch := range s.promoted {
			fn(ch)
		}
		return
	}
	for i := 0; i < s.inlineN; i++ {
		fn(s.inline[i])
	}
}

// Node is a vertex in the routing graph, identified by its compressed
// public key (§3).
type Node struct {
	ID lnwire.PubKey

	LastUpdate uint32
	Color      lnwire.RGB
	Alias      lnwire.Alias
	Addresses  []net.Addr
	Features   []byte

	// AnnounceStoreIndex is the store index of the most recently
	// accepted node_announcement, or 0 if this node has never
	// self-announced.
	AnnounceStoreIndex uint64

	channels chanSet
}

// NumChannels returns the node's incident channel count.
func (n *Node) NumChannels() int {
	return n.channels.len()
}

// ForEachChannel invokes fn for each channel incident to n.
func (n *Node) ForEachChannel(fn func(*Channel)) {
	n.channels.forEach(fn)
}
