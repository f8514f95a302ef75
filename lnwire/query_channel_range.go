package lnwire

import "io"

// QueryChannelRange requests the short_channel_ids of all channels the
// sender knows about whose funding transaction confirmed within the given
// block range, the starting point for a peer catching up on history (§4.3,
// §4.6).
type QueryChannelRange struct {
	ChainHash       ChainHash
	FirstBlockHeight uint32
	NumBlocks        uint32
}

var _ Message = (*QueryChannelRange)(nil)

func (q *QueryChannelRange) MsgType() MessageType { return MsgQueryChannelRange }

func (q *QueryChannelRange) Decode(r io.Reader) error {
	return readElements(r, &q.ChainHash, &q.FirstBlockHeight, &q.NumBlocks)
}

func (q *QueryChannelRange) Encode(w io.Writer) error {
	return writeElements(w, q.ChainHash, q.FirstBlockHeight, q.NumBlocks)
}

// ReplyChannelRange answers a QueryChannelRange with the matching
// short_channel_ids, paginated by the responder as needed; Complete is 0 on
// all but the final reply in a paginated response.
type ReplyChannelRange struct {
	ChainHash        ChainHash
	FirstBlockHeight uint32
	NumBlocks        uint32
	Complete         uint8
	ShortChanIDs     []ShortChannelID
}

var _ Message = (*ReplyChannelRange)(nil)

func (r *ReplyChannelRange) MsgType() MessageType { return MsgReplyChannelRange }

func (r *ReplyChannelRange) Decode(br io.Reader) error {
	if err := readElements(br,
		&r.ChainHash, &r.FirstBlockHeight, &r.NumBlocks, &r.Complete,
	); err != nil {
		return err
	}

	var count uint16
	if err := readElement(br, &count); err != nil {
		return err
	}
	r.ShortChanIDs = make([]ShortChannelID, count)
	for i := range r.ShortChanIDs {
		var id uint64
		if err := readElement(br, &id); err != nil {
			return err
		}
		r.ShortChanIDs[i] = NewShortChanIDFromInt(id)
	}
	return nil
}

func (r *ReplyChannelRange) Encode(w io.Writer) error {
	if err := writeElements(w,
		r.ChainHash, r.FirstBlockHeight, r.NumBlocks, r.Complete,
	); err != nil {
		return err
	}
	if err := writeElement(w, uint16(len(r.ShortChanIDs))); err != nil {
		return err
	}
	for _, id := range r.ShortChanIDs {
		if err := writeElement(w, id.ToUint64()); err != nil {
			return err
		}
	}
	return nil
}
