package routing

import (
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lnoverlay/gossipd/lnwire"
)

// verifySig checks that sig is a valid signature over data's double-SHA256
// digest under pub, mirroring the digest convention every gossip message in
// this protocol uses.
func verifySig(sig lnwire.Sig, pub lnwire.PubKey, data []byte) bool {
	parsedSig, err := sig.ToSignature()
	if err != nil {
		return false
	}
	parsedPub, err := pub.ToPubKey()
	if err != nil {
		return false
	}
	digest := chainhash.DoubleHashB(data)
	return ecdsa.Verify(parsedSig, digest, parsedPub)
}

// validateChannelAnnouncement checks all four signatures over a
// channel_announcement (§4.4 step 1).
func validateChannelAnnouncement(a *lnwire.ChannelAnnouncement) error {
	data, err := a.DataToSign()
	if err != nil {
		return ErrMalformedMessage
	}

	if !verifySig(a.BitcoinSig1, a.BitcoinKey1, data) ||
		!verifySig(a.BitcoinSig2, a.BitcoinKey2, data) ||
		!verifySig(a.NodeSig1, a.NodeID1, data) ||
		!verifySig(a.NodeSig2, a.NodeID2, data) {
		return ErrBadSignature
	}
	return nil
}

// validateChannelUpdate checks the update's signature against the node id
// known to own the claimed direction (§4.4 step 4).
func validateChannelUpdate(u *lnwire.ChannelUpdate, signer lnwire.PubKey) error {
	data, err := u.DataToSign()
	if err != nil {
		return ErrMalformedMessage
	}
	if !verifySig(u.Signature, signer, data) {
		return ErrBadSignature
	}
	return nil
}

// validateNodeAnnouncement checks the announcement's self-signature (§4.4
// node_announcement step 3).
func validateNodeAnnouncement(a *lnwire.NodeAnnouncement) error {
	data, err := a.DataToSign()
	if err != nil {
		return ErrMalformedMessage
	}
	if !verifySig(a.Signature, a.NodeID, data) {
		return ErrBadSignature
	}
	return nil
}
