package lnwire

import (
	"bytes"
	"io"
)

// Channel update flags (§6). Bit 0 of ChannelFlags encodes which endpoint of
// the channel's canonical ordering originated the update; bit 1 marks the
// direction disabled.
const (
	ChanUpdateDirection uint8 = 1 << 0
	ChanUpdateDisabled  uint8 = 1 << 1

	// ChanUpdateOptionMaxHtlc is the message_flags bit indicating
	// HtlcMaximumMsat is present on the wire.
	ChanUpdateOptionMaxHtlc uint8 = 1 << 0
)

// ChannelUpdate carries one direction's routing policy for a channel: fees,
// timelock delta, and HTLC size bounds (§3 half-channel, §6).
type ChannelUpdate struct {
	Signature Sig

	ChainHash ChainHash

	ShortChannelID ShortChannelID

	Timestamp uint32

	MessageFlags uint8
	ChannelFlags uint8

	TimeLockDelta uint16

	HtlcMinimumMsat uint64

	BaseFee uint32

	FeeRate uint32

	// HtlcMaximumMsat is present on the wire only when MessageFlags has
	// ChanUpdateOptionMaxHtlc set.
	HtlcMaximumMsat uint64
}

var _ Message = (*ChannelUpdate)(nil)

func (c *ChannelUpdate) MsgType() MessageType { return MsgChannelUpdate }

// Direction returns 0 or 1, indicating which canonically-ordered endpoint
// this update describes the outgoing policy for.
func (c *ChannelUpdate) Direction() uint8 {
	return c.ChannelFlags & ChanUpdateDirection
}

// IsDisabled reports whether the channel_flags disabled bit is set.
func (c *ChannelUpdate) IsDisabled() bool {
	return c.ChannelFlags&ChanUpdateDisabled != 0
}

// HasMaxHtlc reports whether HtlcMaximumMsat was advertised.
func (c *ChannelUpdate) HasMaxHtlc() bool {
	return c.MessageFlags&ChanUpdateOptionMaxHtlc != 0
}

func (c *ChannelUpdate) Decode(r io.Reader) error {
	if err := readElements(r,
		&c.Signature,
		&c.ChainHash,
		&c.ShortChannelID,
		&c.Timestamp,
		&c.MessageFlags,
		&c.ChannelFlags,
		&c.TimeLockDelta,
		&c.HtlcMinimumMsat,
		&c.BaseFee,
		&c.FeeRate,
	); err != nil {
		return err
	}

	if c.HasMaxHtlc() {
		return readElement(r, &c.HtlcMaximumMsat)
	}
	return nil
}

func (c *ChannelUpdate) Encode(w io.Writer) error {
	if err := writeElements(w,
		c.Signature,
		c.ChainHash,
		c.ShortChannelID,
		c.Timestamp,
		c.MessageFlags,
		c.ChannelFlags,
		c.TimeLockDelta,
		c.HtlcMinimumMsat,
		c.BaseFee,
		c.FeeRate,
	); err != nil {
		return err
	}

	if c.HasMaxHtlc() {
		return writeElement(w, c.HtlcMaximumMsat)
	}
	return nil
}

// DataToSign returns the portion of the message covered by Signature.
func (c *ChannelUpdate) DataToSign() ([]byte, error) {
	var w bytes.Buffer
	if err := writeElements(&w,
		c.ChainHash,
		c.ShortChannelID,
		c.Timestamp,
		c.MessageFlags,
		c.ChannelFlags,
		c.TimeLockDelta,
		c.HtlcMinimumMsat,
		c.BaseFee,
		c.FeeRate,
	); err != nil {
		return nil, err
	}
	if c.HasMaxHtlc() {
		if err := writeElement(&w, c.HtlcMaximumMsat); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}
