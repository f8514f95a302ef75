package routing

import (
	"context"
	"crypto/sha256"

	"github.com/btcsuite/btcd/txscript"
	"github.com/lnoverlay/gossipd/lnwire"
)

// FundingOutputResolver looks up the on-chain funding output a
// channel_announcement claims to spend. Implementations talk to a chain
// backend; the routing table only needs the amount and script, never the
// backend itself (§4.3, §4.4 step 2).
type FundingOutputResolver interface {
	// ResolveFundingOutput returns the value and scriptPubKey of the
	// funding transaction output named by scid. It returns
	// ErrTxoutUnknown if the transaction or output isn't found (not yet
	// confirmed, or the node hasn't reached that block), and does not
	// wrap other backend errors into the routing package's taxonomy.
	ResolveFundingOutput(ctx context.Context, scid lnwire.ShortChannelID) (amountSat int64, scriptPubKey []byte, err error)
}

// expectedFundingScript derives the canonical 2-of-2 P2WSH witness program
// for a channel funding output from the two bitcoin keys carried in a
// channel_announcement, the same OP_2/pubkey/pubkey/OP_2/OP_CHECKMULTISIG
// construction as the teacher's genMultiSigScript in lnwallet/script_utils.go,
// wrapped in a P2WSH program the way its funding-output callers do.
func expectedFundingScript(key1, key2 lnwire.PubKey) ([]byte, error) {
	a, b := key1, key2
	// BOLT 7 multisig witness scripts order pubkeys lexicographically,
	// independent of the node ordering used elsewhere.
	if !lessBytes(a[:], b[:]) {
		a, b = b, a
	}

	builder := txscript.NewScriptBuilder()
	builder.AddOp(txscript.OP_2)
	builder.AddData(a[:])
	builder.AddData(b[:])
	builder.AddOp(txscript.OP_2)
	builder.AddOp(txscript.OP_CHECKMULTISIG)
	witnessScript, err := builder.Script()
	if err != nil {
		return nil, err
	}

	hash := sha256.Sum256(witnessScript)

	program := txscript.NewScriptBuilder()
	program.AddOp(txscript.OP_0)
	program.AddData(hash[:])
	return program.Script()
}

func lessBytes(a, b []byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// verifyFundingOutput checks a resolved funding output against the
// announcement's claimed keys and returns the channel capacity, per §4.4
// step 2's txout match requirement.
func verifyFundingOutput(key1, key2 lnwire.PubKey, amountSat int64, scriptPubKey []byte) (int64, error) {
	want, err := expectedFundingScript(key1, key2)
	if err != nil {
		return 0, err
	}
	if len(scriptPubKey) != len(want) {
		return 0, ErrTxoutMismatch
	}
	for i := range want {
		if scriptPubKey[i] != want[i] {
			return 0, ErrTxoutMismatch
		}
	}
	return amountSat, nil
}
