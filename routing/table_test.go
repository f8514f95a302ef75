package routing

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lnoverlay/gossipd/gossipstore"
	"github.com/lnoverlay/gossipd/lnwire"
	"github.com/stretchr/testify/require"
)

type testIdentity struct {
	priv *btcec.PrivateKey
	pub  lnwire.PubKey
}

func newTestIdentity(t *testing.T) testIdentity {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return testIdentity{priv: priv, pub: lnwire.NewPubKey(priv.PubKey())}
}

func (id testIdentity) sign(t *testing.T, data []byte) lnwire.Sig {
	t.Helper()
	digest := chainhash.DoubleHashB(data)
	sig := ecdsa.Sign(id.priv, digest)
	wireSig, err := lnwire.NewSigFromSignature(sig)
	require.NoError(t, err)
	return wireSig
}

// fakeResolver answers funding-output lookups from a canned table, modeling
// the on-chain collaborator named in §6.
type fakeResolver struct {
	outputs map[lnwire.ShortChannelID]struct {
		amountSat int64
		script    []byte
	}
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{outputs: make(map[lnwire.ShortChannelID]struct {
		amountSat int64
		script    []byte
	})}
}

func (f *fakeResolver) put(scid lnwire.ShortChannelID, amountSat int64, script []byte) {
	f.outputs[scid] = struct {
		amountSat int64
		script    []byte
	}{amountSat, script}
}

func (f *fakeResolver) ResolveFundingOutput(ctx context.Context, scid lnwire.ShortChannelID) (int64, []byte, error) {
	out, ok := f.outputs[scid]
	if !ok {
		return 0, nil, ErrTxoutUnknown
	}
	return out.amountSat, out.script, nil
}

func openTestTable(t *testing.T, resolver *fakeResolver, clk clock.Clock) (*Table, *gossipstore.Store) {
	t.Helper()
	dir := t.TempDir()
	store, err := gossipstore.Open(filepath.Join(dir, "gossip_store"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	table := NewTable(store, resolver, clk, 14*24*time.Hour)
	return table, store
}

// buildAnnouncement constructs a fully self-consistent, correctly signed
// channel_announcement over a fresh pair of node/funding identities and
// registers its funding output with resolver so ingest will admit it.
func buildAnnouncement(t *testing.T, resolver *fakeResolver, scid lnwire.ShortChannelID) (*lnwire.ChannelAnnouncement, testIdentity, testIdentity) {
	t.Helper()

	nodeA := newTestIdentity(t)
	nodeB := newTestIdentity(t)
	fundA := newTestIdentity(t)
	fundB := newTestIdentity(t)

	ann := &lnwire.ChannelAnnouncement{
		ChainHash:      chainhash.Hash{},
		ShortChannelID: scid,
		NodeID1:        nodeA.pub,
		NodeID2:        nodeB.pub,
		BitcoinKey1:    fundA.pub,
		BitcoinKey2:    fundB.pub,
	}
	data, err := ann.DataToSign()
	require.NoError(t, err)

	ann.NodeSig1 = nodeA.sign(t, data)
	ann.NodeSig2 = nodeB.sign(t, data)
	ann.BitcoinSig1 = fundA.sign(t, data)
	ann.BitcoinSig2 = fundB.sign(t, data)

	script, err := expectedFundingScript(fundA.pub, fundB.pub)
	require.NoError(t, err)
	resolver.put(scid, 1_000_000, script)

	if nodeA.pub.Less(nodeB.pub) {
		return ann, nodeA, nodeB
	}
	return ann, nodeB, nodeA
}

func buildUpdate(t *testing.T, signer testIdentity, scid lnwire.ShortChannelID, dir uint8, ts uint32) *lnwire.ChannelUpdate {
	t.Helper()
	u := &lnwire.ChannelUpdate{
		ShortChannelID: scid,
		Timestamp:      ts,
		ChannelFlags:   dir,
		TimeLockDelta:  9,
	}
	data, err := u.DataToSign()
	require.NoError(t, err)
	u.Signature = signer.sign(t, data)
	return u
}

func fixedClock(t time.Time) clock.Clock {
	return clock.NewTestClock(t)
}

// TestOrphanUpdateThenAnnouncement mirrors §8 scenario 1. Peers retransmit
// gossip they believe the recipient hasn't yet applied, so the dir=0 update
// that arrived before the announcement is redelivered once the channel is
// known; this table's ingest pipeline only buffers updates that arrive
// while an announcement is already pending (suspended on its funding
// lookup), so an update that predates the announcement entirely is dropped
// the first time and takes effect on redelivery.
func TestOrphanUpdateThenAnnouncement(t *testing.T) {
	resolver := newFakeResolver()
	clk := fixedClock(time.Unix(1000, 0))
	table, _ := openTestTable(t, resolver, clk)

	scid := lnwire.ShortChannelID{BlockHeight: 100, TxIndex: 1, TxPosition: 0}

	ann, first, second := buildAnnouncement(t, resolver, scid)

	orphan := buildUpdate(t, first, scid, 0, 100)
	require.NoError(t, table.AddChannelUpdate(orphan))

	_, ok := table.Channel(scid)
	require.False(t, ok)

	require.NoError(t, table.AddChannelAnnouncement(context.Background(), ann))

	require.NoError(t, table.AddChannelUpdate(orphan))

	update2 := buildUpdate(t, second, scid, 1, 50)
	require.NoError(t, table.AddChannelUpdate(update2))

	ch, ok := table.Channel(scid)
	require.True(t, ok)
	require.True(t, ch.Halves[0].Defined())
	require.True(t, ch.Halves[1].Defined())
	require.Equal(t, uint32(100), ch.Halves[0].Timestamp)
	require.Equal(t, uint32(50), ch.Halves[1].Timestamp)
}

// TestStaleUpdateDropped mirrors §8 scenario 2.
func TestStaleUpdateDropped(t *testing.T) {
	resolver := newFakeResolver()
	clk := fixedClock(time.Unix(1000, 0))
	table, _ := openTestTable(t, resolver, clk)

	scid := lnwire.ShortChannelID{BlockHeight: 200, TxIndex: 2, TxPosition: 0}
	ann, first, _ := buildAnnouncement(t, resolver, scid)
	require.NoError(t, table.AddChannelAnnouncement(context.Background(), ann))

	u200 := buildUpdate(t, first, scid, 0, 200)
	require.NoError(t, table.AddChannelUpdate(u200))

	u199 := buildUpdate(t, first, scid, 0, 199)
	require.NoError(t, table.AddChannelUpdate(u199))

	ch, ok := table.Channel(scid)
	require.True(t, ok)
	require.Equal(t, uint32(200), ch.Halves[0].Timestamp)
}

func TestChannelAnnouncementIdempotentDrop(t *testing.T) {
	resolver := newFakeResolver()
	clk := fixedClock(time.Unix(1000, 0))
	table, _ := openTestTable(t, resolver, clk)

	scid := lnwire.ShortChannelID{BlockHeight: 300, TxIndex: 1, TxPosition: 0}
	ann, _, _ := buildAnnouncement(t, resolver, scid)
	require.NoError(t, table.AddChannelAnnouncement(context.Background(), ann))
	require.NoError(t, table.AddChannelAnnouncement(context.Background(), ann))
}

func TestBadSignatureRejected(t *testing.T) {
	resolver := newFakeResolver()
	clk := fixedClock(time.Unix(1000, 0))
	table, _ := openTestTable(t, resolver, clk)

	scid := lnwire.ShortChannelID{BlockHeight: 400, TxIndex: 1, TxPosition: 0}
	ann, _, _ := buildAnnouncement(t, resolver, scid)
	ann.NodeSig1[0] ^= 0xFF

	err := table.AddChannelAnnouncement(context.Background(), ann)
	require.ErrorIs(t, err, ErrBadSignature)
}

// TestPruning mirrors §8 scenario 4.
func TestPruning(t *testing.T) {
	resolver := newFakeResolver()
	now := time.Unix(2_000_000, 0)
	clk := fixedClock(now)
	table, _ := openTestTable(t, resolver, clk)

	scid := lnwire.ShortChannelID{BlockHeight: 500, TxIndex: 1, TxPosition: 0}
	ann, first, _ := buildAnnouncement(t, resolver, scid)
	require.NoError(t, table.AddChannelAnnouncement(context.Background(), ann))

	staleTs := uint32(now.Add(-(14*24*time.Hour + time.Hour)).Unix())
	update := buildUpdate(t, first, scid, 0, staleTs)
	require.NoError(t, table.AddChannelUpdate(update))

	_, ok := table.Channel(scid)
	require.True(t, ok)

	table.Prune()

	_, ok = table.Channel(scid)
	require.False(t, ok)

	_, nodeOk := table.Node(first.pub)
	require.False(t, nodeOk)
}
