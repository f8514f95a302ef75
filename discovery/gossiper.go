package discovery

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/lnoverlay/gossipd/gossipstore"
	"github.com/lnoverlay/gossipd/lnwire"
	"github.com/lnoverlay/gossipd/routing"
)

// PeerHandle is the minimal surface the gossiper needs from a connected
// peer's transport to send and receive framed gossip messages. The
// transport itself — encryption, framing, reconnection — is an external
// collaborator (§1).
type PeerHandle interface {
	ID() lnwire.PubKey
	Send(payload []byte) error
	Recv() ([]byte, error)
}

// Gossiper is the orchestrator owning the routing table, the gossip store,
// and one PeerSyncer per connected peer (§2 data flow). It has no
// internal lock of its own beyond the peer map: all graph mutation is
// delegated to the single-writer Table.
type Gossiper struct {
	store *gossipstore.Store
	table *routing.Table

	mu      sync.Mutex
	syncers map[lnwire.PubKey]*PeerSyncer
}

// NewGossiper wires a store and routing table into an orchestrator ready
// to accept peers.
func NewGossiper(store *gossipstore.Store, table *routing.Table) *Gossiper {
	return &Gossiper{
		store:   store,
		table:   table,
		syncers: make(map[lnwire.PubKey]*PeerSyncer),
	}
}

// AddPeer registers a connected peer and starts its inbound/outbound gossip
// loops under an errgroup so a fatal error on either side tears down both
// (§5: crossing the peer-pipe boundary is the suspension point).
func (g *Gossiper) AddPeer(ctx context.Context, peer PeerHandle) error {
	syncer := NewPeerSyncer(g.store)
	syncer.Start()

	g.mu.Lock()
	g.syncers[peer.ID()] = syncer
	g.mu.Unlock()

	grp, ctx := errgroup.WithContext(ctx)

	grp.Go(func() error {
		return g.readLoop(ctx, peer, syncer)
	})
	grp.Go(func() error {
		return g.writeLoop(ctx, peer, syncer)
	})

	err := grp.Wait()

	syncer.Stop()
	g.mu.Lock()
	delete(g.syncers, peer.ID())
	g.mu.Unlock()

	return err
}

func (g *Gossiper) readLoop(ctx context.Context, peer PeerHandle, syncer *PeerSyncer) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		payload, err := peer.Recv()
		if err != nil {
			return err
		}

		msg, err := lnwire.DecodeMessage(payload)
		if err != nil {
			log.Debugf("gossiper: malformed message from %x: %v", peer.ID(), err)
			continue
		}

		if err := g.ingest(ctx, msg); err != nil {
			log.Debugf("gossiper: dropping message from %x: %v", peer.ID(), err)
		}

		if filter, ok := msg.(*lnwire.GossipTimestampFilter); ok {
			syncer.SetFilter(filter)
		}
	}
}

func (g *Gossiper) writeLoop(ctx context.Context, peer PeerHandle, syncer *PeerSyncer) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-syncer.Outbound():
			if !ok {
				return nil
			}
			if err := peer.Send(payload.([]byte)); err != nil {
				return err
			}
		}
	}
}

// ingest dispatches a decoded message to the routing table's validation
// pipeline by message kind (§4.4). Orphan and stale-update outcomes are
// not propagated as errors to the caller's logging path beyond debug
// level (§7).
func (g *Gossiper) ingest(ctx context.Context, msg lnwire.Message) error {
	switch m := msg.(type) {
	case *lnwire.ChannelAnnouncement:
		return g.table.AddChannelAnnouncement(ctx, m)
	case *lnwire.ChannelUpdate:
		return g.table.AddChannelUpdate(m)
	case *lnwire.NodeAnnouncement:
		return g.table.AddNodeAnnouncement(m)
	default:
		return nil
	}
}
