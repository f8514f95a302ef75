package lnwire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// MessageType is the 2-byte big-endian tag that opens every message on the
// wire.
type MessageType uint16

// The gossip-relevant message types. Real deployments carry many more
// (channel establishment, HTLC forwarding, ...); those are out of scope
// here and live with the channel state machine collaborator.
const (
	MsgChannelAnnouncement MessageType = 256
	MsgNodeAnnouncement    MessageType = 257
	MsgChannelUpdate       MessageType = 258

	MsgQueryShortChanIDs     MessageType = 261
	MsgReplyShortChanIDsEnd  MessageType = 262
	MsgQueryChannelRange     MessageType = 263
	MsgReplyChannelRange     MessageType = 264
	MsgGossipTimestampFilter MessageType = 265
)

// IsGossipBroadcast reports whether a message of this type is one of the
// three kinds the gossip store rebroadcasts to peers (§4.1, §4.6). Other
// record kinds may share the store's file format for internal bookkeeping
// but must never be replayed onto the wire.
func (t MessageType) IsGossipBroadcast() bool {
	switch t {
	case MsgChannelAnnouncement, MsgNodeAnnouncement, MsgChannelUpdate:
		return true
	default:
		return false
	}
}

// String gives a human-readable name for logging.
func (t MessageType) String() string {
	switch t {
	case MsgChannelAnnouncement:
		return "channel_announcement"
	case MsgNodeAnnouncement:
		return "node_announcement"
	case MsgChannelUpdate:
		return "channel_update"
	case MsgQueryShortChanIDs:
		return "query_short_chan_ids"
	case MsgReplyShortChanIDsEnd:
		return "reply_short_chan_ids_end"
	case MsgQueryChannelRange:
		return "query_channel_range"
	case MsgReplyChannelRange:
		return "reply_channel_range"
	case MsgGossipTimestampFilter:
		return "gossip_timestamp_filter"
	default:
		return fmt.Sprintf("unknown(%d)", uint16(t))
	}
}

// UnknownMessage is returned when a message tag has no known decoder.
type UnknownMessage struct {
	msgType MessageType
}

func (u *UnknownMessage) Error() string {
	return fmt.Sprintf("unable to parse message of unknown type: %v", u.msgType)
}

// Message is implemented by every decodable gossip wire message.
type Message interface {
	Decode(io.Reader) error
	Encode(io.Writer) error
	MsgType() MessageType
}

func makeEmptyMessage(msgType MessageType) (Message, error) {
	switch msgType {
	case MsgChannelAnnouncement:
		return &ChannelAnnouncement{}, nil
	case MsgNodeAnnouncement:
		return &NodeAnnouncement{}, nil
	case MsgChannelUpdate:
		return &ChannelUpdate{}, nil
	case MsgQueryShortChanIDs:
		return &QueryShortChanIDs{}, nil
	case MsgReplyShortChanIDsEnd:
		return &ReplyShortChanIDsEnd{}, nil
	case MsgQueryChannelRange:
		return &QueryChannelRange{}, nil
	case MsgReplyChannelRange:
		return &ReplyChannelRange{}, nil
	case MsgGossipTimestampFilter:
		return &GossipTimestampFilter{}, nil
	default:
		return nil, &UnknownMessage{msgType}
	}
}

// WriteMessage serializes msg with its 2-byte type header onto w.
func WriteMessage(w io.Writer, msg Message) (int, error) {
	var bw bytes.Buffer
	if err := msg.Encode(&bw); err != nil {
		return 0, err
	}
	payload := bw.Bytes()
	if len(payload) > MaxMessagePayload {
		return 0, fmt.Errorf("message payload is too large - "+
			"encoded %d bytes, but maximum message payload is "+
			"%d bytes", len(payload), MaxMessagePayload)
	}

	var hdr [2]byte
	binary.BigEndian.PutUint16(hdr[:], uint16(msg.MsgType()))

	n, err := w.Write(hdr[:])
	total := n
	if err != nil {
		return total, err
	}
	n, err = w.Write(payload)
	total += n
	return total, err
}

// ReadMessage reads, dispatches, and decodes the next message from r.
func ReadMessage(r io.Reader) (Message, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	msgType := MessageType(binary.BigEndian.Uint16(hdr[:]))

	msg, err := makeEmptyMessage(msgType)
	if err != nil {
		return nil, err
	}
	if err := msg.Decode(r); err != nil {
		return nil, err
	}
	return msg, nil
}

// PeekMessageType returns the 2-byte type tag of an encoded message without
// decoding its body. The gossip store's forwarding loop uses this to skip
// record kinds that are not rebroadcastable without paying for a full
// decode (§4.1).
func PeekMessageType(payload []byte) (MessageType, error) {
	if len(payload) < 2 {
		return 0, fmt.Errorf("payload too short to contain a message type")
	}
	return MessageType(binary.BigEndian.Uint16(payload[:2])), nil
}

// EncodeMessage is a convenience wrapper returning the fully framed
// (type-tagged) encoding of msg, the form appended to the gossip store.
func EncodeMessage(msg Message) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := WriteMessage(&buf, msg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeMessage is the inverse of EncodeMessage.
func DecodeMessage(payload []byte) (Message, error) {
	return ReadMessage(bytes.NewReader(payload))
}
