package lnwire

import "io"

// QueryShortChanIDs asks a peer to resend the latest channel_announcement
// and both channel_update records for the given scids, used after
// ReplyChannelRange identifies a gap in the local graph.
type QueryShortChanIDs struct {
	ChainHash    ChainHash
	ShortChanIDs []ShortChannelID
}

var _ Message = (*QueryShortChanIDs)(nil)

func (q *QueryShortChanIDs) MsgType() MessageType { return MsgQueryShortChanIDs }

func (q *QueryShortChanIDs) Decode(r io.Reader) error {
	if err := readElement(r, &q.ChainHash); err != nil {
		return err
	}

	var count uint16
	if err := readElement(r, &count); err != nil {
		return err
	}
	q.ShortChanIDs = make([]ShortChannelID, count)
	for i := range q.ShortChanIDs {
		var id uint64
		if err := readElement(r, &id); err != nil {
			return err
		}
		q.ShortChanIDs[i] = NewShortChanIDFromInt(id)
	}
	return nil
}

func (q *QueryShortChanIDs) Encode(w io.Writer) error {
	if err := writeElement(w, q.ChainHash); err != nil {
		return err
	}
	if err := writeElement(w, uint16(len(q.ShortChanIDs))); err != nil {
		return err
	}
	for _, id := range q.ShortChanIDs {
		if err := writeElement(w, id.ToUint64()); err != nil {
			return err
		}
	}
	return nil
}

// ReplyShortChanIDsEnd terminates the stream of messages sent in response to
// a QueryShortChanIDs.
type ReplyShortChanIDsEnd struct {
	ChainHash ChainHash
	Complete  uint8
}

var _ Message = (*ReplyShortChanIDsEnd)(nil)

func (r *ReplyShortChanIDsEnd) MsgType() MessageType { return MsgReplyShortChanIDsEnd }

func (r *ReplyShortChanIDsEnd) Decode(br io.Reader) error {
	return readElements(br, &r.ChainHash, &r.Complete)
}

func (r *ReplyShortChanIDsEnd) Encode(w io.Writer) error {
	return writeElements(w, r.ChainHash, r.Complete)
}
