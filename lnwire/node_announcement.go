package lnwire

import (
	"bytes"
	"io"
	"net"
)

const aliasSpecLen = 32

// RGB is the node's preferred display color.
type RGB struct {
	Red   uint8
	Green uint8
	Blue  uint8
}

// Alias is a 32-byte, NUL-padded UTF-8 label operators may set for their
// node. Aliases are not unique and carry no trust weight.
type Alias [aliasSpecLen]byte

// NewAlias truncates or NUL-pads s into the fixed-size wire alias.
func NewAlias(s string) Alias {
	var a Alias
	copy(a[:], s)
	return a
}

// String trims the trailing NUL padding.
func (a Alias) String() string {
	end := len(a)
	for end > 0 && a[end-1] == 0 {
		end--
	}
	return string(a[:end])
}

// NodeAnnouncement advertises a node's identity, appearance, and reachable
// addresses (§3 Node, §6).
type NodeAnnouncement struct {
	Signature Sig

	Features []byte

	Timestamp uint32

	NodeID PubKey

	RGBColor RGB

	Alias Alias

	Addresses []net.Addr
}

var _ Message = (*NodeAnnouncement)(nil)

func (a *NodeAnnouncement) MsgType() MessageType { return MsgNodeAnnouncement }

func (a *NodeAnnouncement) Decode(r io.Reader) error {
	if err := readElements(r,
		&a.Signature,
		&a.Features,
		&a.Timestamp,
		&a.NodeID,
		&a.RGBColor.Red,
		&a.RGBColor.Green,
		&a.RGBColor.Blue,
	); err != nil {
		return err
	}
	if _, err := io.ReadFull(r, a.Alias[:]); err != nil {
		return err
	}

	addrs, err := readAddresses(r)
	if err != nil {
		return err
	}
	a.Addresses = addrs
	return nil
}

func (a *NodeAnnouncement) Encode(w io.Writer) error {
	if err := writeElements(w,
		a.Signature,
		a.Features,
		a.Timestamp,
		a.NodeID,
		a.RGBColor.Red,
		a.RGBColor.Green,
		a.RGBColor.Blue,
	); err != nil {
		return err
	}
	if _, err := w.Write(a.Alias[:]); err != nil {
		return err
	}
	return writeAddresses(w, a.Addresses)
}

// DataToSign returns the portion of the message covered by Signature.
func (a *NodeAnnouncement) DataToSign() ([]byte, error) {
	var w bytes.Buffer
	if err := writeElements(&w,
		a.Features,
		a.Timestamp,
		a.NodeID,
		a.RGBColor.Red,
		a.RGBColor.Green,
		a.RGBColor.Blue,
	); err != nil {
		return nil, err
	}
	if _, err := w.Write(a.Alias[:]); err != nil {
		return nil, err
	}
	if err := writeAddresses(&w, a.Addresses); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}
