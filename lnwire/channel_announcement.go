package lnwire

import (
	"bytes"
	"io"
)

// ChannelAnnouncement proves the existence of a channel: it binds a
// short_channel_id to two node identities and two funding keys, authenticated
// by all four of the corresponding private keys (§4.4, §6).
type ChannelAnnouncement struct {
	NodeSig1    Sig
	NodeSig2    Sig
	BitcoinSig1 Sig
	BitcoinSig2 Sig

	Features []byte

	ChainHash ChainHash

	ShortChannelID ShortChannelID

	NodeID1     PubKey
	NodeID2     PubKey
	BitcoinKey1 PubKey
	BitcoinKey2 PubKey
}

var _ Message = (*ChannelAnnouncement)(nil)

func (a *ChannelAnnouncement) MsgType() MessageType { return MsgChannelAnnouncement }

func (a *ChannelAnnouncement) Decode(r io.Reader) error {
	return readElements(r,
		&a.NodeSig1,
		&a.NodeSig2,
		&a.BitcoinSig1,
		&a.BitcoinSig2,
		&a.Features,
		&a.ChainHash,
		&a.ShortChannelID,
		&a.NodeID1,
		&a.NodeID2,
		&a.BitcoinKey1,
		&a.BitcoinKey2,
	)
}

func (a *ChannelAnnouncement) Encode(w io.Writer) error {
	return writeElements(w,
		a.NodeSig1,
		a.NodeSig2,
		a.BitcoinSig1,
		a.BitcoinSig2,
		a.Features,
		a.ChainHash,
		a.ShortChannelID,
		a.NodeID1,
		a.NodeID2,
		a.BitcoinKey1,
		a.BitcoinKey2,
	)
}

// DataToSign returns the portion of the message covered by all four
// signatures: everything after the signature fields.
func (a *ChannelAnnouncement) DataToSign() ([]byte, error) {
	var w bytes.Buffer
	err := writeElements(&w,
		a.Features,
		a.ChainHash,
		a.ShortChannelID,
		a.NodeID1,
		a.NodeID2,
		a.BitcoinKey1,
		a.BitcoinKey2,
	)
	if err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}
