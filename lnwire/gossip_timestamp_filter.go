package lnwire

import "io"

// GossipTimestampFilter restricts (and, on receipt, resets) the window of
// gossip a peer will be sent: messages whose timestamp falls in
// [FirstTimestamp, FirstTimestamp+TimestampRange) are eligible (§4.6).
type GossipTimestampFilter struct {
	ChainHash       ChainHash
	FirstTimestamp  uint32
	TimestampRange  uint32
}

var _ Message = (*GossipTimestampFilter)(nil)

func (g *GossipTimestampFilter) MsgType() MessageType { return MsgGossipTimestampFilter }

func (g *GossipTimestampFilter) Decode(r io.Reader) error {
	return readElements(r, &g.ChainHash, &g.FirstTimestamp, &g.TimestampRange)
}

func (g *GossipTimestampFilter) Encode(w io.Writer) error {
	return writeElements(w, g.ChainHash, g.FirstTimestamp, g.TimestampRange)
}
