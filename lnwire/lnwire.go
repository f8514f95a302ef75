// Package lnwire implements the wire codec for the gossip subset of the
// payment-channel overlay protocol: channel announcements, channel updates,
// node announcements, and the query messages used to catch a peer up on
// history it missed.
package lnwire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// MaxMessagePayload is the maximum bytes a message can be, mirroring the
// ceiling the transport enforces regardless of any individual message's own
// limit.
const MaxMessagePayload = 65535

// ShortChannelID encodes the block height, transaction index, and output
// index of a channel's funding transaction into a single 64-bit value:
// height:24 | tx_index:24 | output_index:16.
type ShortChannelID struct {
	BlockHeight uint32
	TxIndex     uint32
	TxPosition  uint16
}

// ToUint64 packs the ShortChannelID into its wire representation.
func (c ShortChannelID) ToUint64() uint64 {
	return ((uint64(c.BlockHeight) & 0xFFFFFF) << 40) |
		((uint64(c.TxIndex) & 0xFFFFFF) << 16) |
		uint64(c.TxPosition)
}

// NewShortChanIDFromInt unpacks a wire-format scid into its components.
func NewShortChanIDFromInt(id uint64) ShortChannelID {
	return ShortChannelID{
		BlockHeight: uint32(id >> 40),
		TxIndex:     uint32(id>>16) & 0xFFFFFF,
		TxPosition:  uint16(id),
	}
}

// String returns the canonical human-readable scid form.
func (c ShortChannelID) String() string {
	return fmt.Sprintf("%dx%dx%d", c.BlockHeight, c.TxIndex, c.TxPosition)
}

// Sig is a fixed 64-byte compact (R||S) signature, the on-wire signature
// format used by every gossip message. Unlike a DER signature it has no
// internal length prefix, so it round-trips byte for byte.
type Sig [64]byte

// NewSigFromSignature converts a parsed ECDSA signature into its compact
// wire form.
func NewSigFromSignature(sig *ecdsa.Signature) (Sig, error) {
	if sig == nil {
		return Sig{}, fmt.Errorf("cannot encode nil signature")
	}

	var s Sig

	rBytes := sig.R().Bytes()
	sBytes := sig.S().Bytes()

	copy(s[32-len(rBytes):32], rBytes)
	copy(s[64-len(sBytes):64], sBytes)

	return s, nil
}

// ToSignature parses the compact wire form back into an ECDSA signature
// usable for verification.
func (s Sig) ToSignature() (*ecdsa.Signature, error) {
	var rBytes, sBytes [32]byte
	copy(rBytes[:], s[:32])
	copy(sBytes[:], s[32:])

	var modR, modS btcec.ModNScalar
	modR.SetBytes(&rBytes)
	modS.SetBytes(&sBytes)

	return ecdsa.NewSignature(&modR, &modS), nil
}

// PubKey is a 33-byte compressed secp256k1 public key, the wire encoding
// used for node ids and funding keys alike.
type PubKey [33]byte

// NewPubKey compresses a parsed public key into its wire form.
func NewPubKey(pub *btcec.PublicKey) PubKey {
	var p PubKey
	copy(p[:], pub.SerializeCompressed())
	return p
}

// ToPubKey parses the wire-form key back into a usable public key.
func (p PubKey) ToPubKey() (*btcec.PublicKey, error) {
	return btcec.ParsePubKey(p[:])
}

// Less reports whether p sorts before other under the big-endian byte-wise
// comparison the canonical node ordering is defined over (invariant 1 of
// the data model).
func (p PubKey) Less(other PubKey) bool {
	for i := range p {
		if p[i] != other[i] {
			return p[i] < other[i]
		}
	}
	return false
}

// ChainHash identifies the blockchain the channel's funding transaction was
// confirmed on.
type ChainHash = chainhash.Hash

func readElement(r io.Reader, element interface{}) error {
	switch e := element.(type) {
	case *uint8:
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		*e = b[0]
	case *uint16:
		var b [2]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		*e = binary.BigEndian.Uint16(b[:])
	case *uint32:
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		*e = binary.BigEndian.Uint32(b[:])
	case *uint64:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		*e = binary.BigEndian.Uint64(b[:])
	case *ShortChannelID:
		var id uint64
		if err := readElement(r, &id); err != nil {
			return err
		}
		*e = NewShortChanIDFromInt(id)
	case *Sig:
		if _, err := io.ReadFull(r, e[:]); err != nil {
			return err
		}
	case *PubKey:
		if _, err := io.ReadFull(r, e[:]); err != nil {
			return err
		}
	case *ChainHash:
		if _, err := io.ReadFull(r, e[:]); err != nil {
			return err
		}
	case *[]byte:
		var l uint16
		if err := readElement(r, &l); err != nil {
			return err
		}
		buf := make([]byte, l)
		if _, err := io.ReadFull(r, buf); err != nil {
			return err
		}
		*e = buf
	default:
		return fmt.Errorf("unknown type %T in readElement", e)
	}
	return nil
}

func readElements(r io.Reader, elements ...interface{}) error {
	for _, e := range elements {
		if err := readElement(r, e); err != nil {
			return err
		}
	}
	return nil
}

func writeElement(w io.Writer, element interface{}) error {
	switch e := element.(type) {
	case uint8:
		_, err := w.Write([]byte{e})
		return err
	case uint16:
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], e)
		_, err := w.Write(b[:])
		return err
	case uint32:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], e)
		_, err := w.Write(b[:])
		return err
	case uint64:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], e)
		_, err := w.Write(b[:])
		return err
	case ShortChannelID:
		return writeElement(w, e.ToUint64())
	case Sig:
		_, err := w.Write(e[:])
		return err
	case PubKey:
		_, err := w.Write(e[:])
		return err
	case ChainHash:
		_, err := w.Write(e[:])
		return err
	case []byte:
		if err := writeElement(w, uint16(len(e))); err != nil {
			return err
		}
		_, err := w.Write(e)
		return err
	default:
		return fmt.Errorf("unknown type %T in writeElement", e)
	}
}

func writeElements(w io.Writer, elements ...interface{}) error {
	for _, e := range elements {
		if err := writeElement(w, e); err != nil {
			return err
		}
	}
	return nil
}
