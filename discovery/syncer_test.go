package discovery

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/lnoverlay/gossipd/gossipstore"
	"github.com/lnoverlay/gossipd/lnwire"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *gossipstore.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := gossipstore.Open(filepath.Join(dir, "gossip_store"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func appendUpdate(t *testing.T, store *gossipstore.Store, scid uint64, ts uint32) {
	t.Helper()
	u := &lnwire.ChannelUpdate{
		ShortChannelID: lnwire.NewShortChanIDFromInt(scid),
		Timestamp:      ts,
	}
	payload, err := lnwire.EncodeMessage(u)
	require.NoError(t, err)
	_, err = store.Append(payload, ts)
	require.NoError(t, err)
}

// TestSyncerWindowFiltersByTimestamp checks that only records whose
// timestamp falls in the filter's window are forwarded, matching §4.6's
// forwarding loop.
func TestSyncerWindowFiltersByTimestamp(t *testing.T) {
	store := openTestStore(t)

	appendUpdate(t, store, 1, 50)
	appendUpdate(t, store, 2, 150)
	appendUpdate(t, store, 3, 250)

	syncer := NewPeerSyncer(store)
	syncer.Start()
	defer syncer.Stop()

	syncer.SetFilter(&lnwire.GossipTimestampFilter{
		FirstTimestamp: 100,
		TimestampRange: 100, // window is [100, 199]
	})

	select {
	case payload := <-syncer.Outbound():
		msgType, err := lnwire.PeekMessageType(payload.([]byte))
		require.NoError(t, err)
		require.Equal(t, lnwire.MsgChannelUpdate, msgType)

		msg, err := lnwire.DecodeMessage(payload.([]byte))
		require.NoError(t, err)
		update := msg.(*lnwire.ChannelUpdate)
		require.Equal(t, uint32(150), update.Timestamp)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for windowed record")
	}

	select {
	case payload := <-syncer.Outbound():
		t.Fatalf("unexpected second record forwarded: %v", payload)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestSyncerSkipsTombstonedRecords(t *testing.T) {
	store := openTestStore(t)

	appendUpdate(t, store, 1, 100)
	appendUpdate(t, store, 2, 100)
	require.NoError(t, store.Tombstone(1))

	syncer := NewPeerSyncer(store)
	syncer.Start()
	defer syncer.Stop()

	syncer.SetFilter(&lnwire.GossipTimestampFilter{
		FirstTimestamp: 0,
		TimestampRange: 0xFFFFFFFF,
	})

	select {
	case payload := <-syncer.Outbound():
		msg, err := lnwire.DecodeMessage(payload.([]byte))
		require.NoError(t, err)
		update := msg.(*lnwire.ChannelUpdate)
		require.Equal(t, lnwire.NewShortChanIDFromInt(2), update.ShortChannelID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the live record")
	}

	select {
	case payload := <-syncer.Outbound():
		t.Fatalf("tombstoned record was forwarded: %v", payload)
	case <-time.After(300 * time.Millisecond):
	}
}
