package routing

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lnoverlay/gossipd/gossipstore"
	"github.com/lnoverlay/gossipd/lnwire"
	"github.com/lnoverlay/gossipd/metrics"
)

// defaultStaleUpdateCutoff is the value NewTable gives Table.staleUpdateCutoff,
// which bounds how old an update for an unknown channel may be before it is
// dropped outright rather than buffered against a pending announcement
// (§4.4 step 2, §9 open question: kept as a field rather than a constant).
const defaultStaleUpdateCutoff = 14 * 24 * time.Hour

// failedLookupCacheSize bounds the LRU of short channel ids whose funding
// txout lookup recently failed, so a spamming peer can't force unbounded
// on-chain lookups (§4.4).
const failedLookupCacheSize = 10000

// deferredUpdate is a channel_update buffered against a pending or
// unupdated announcement, keeping only the newest timestamp per direction
// (§3 Pending channel announcement, §4.4 step 2).
type deferredUpdate struct {
	update    *lnwire.ChannelUpdate
	timestamp uint32
}

// pendingChannelAnnouncement is a channel_announcement awaiting its
// funding-output resolution (§3).
type pendingChannelAnnouncement struct {
	ann         *lnwire.ChannelAnnouncement
	nodeID1     lnwire.PubKey
	nodeID2     lnwire.PubKey
	bitcoinKey1 lnwire.PubKey
	bitcoinKey2 lnwire.PubKey
	deferred    [2]*deferredUpdate
}

// Notification describes a change to the graph, consumed by an optional
// hook layer (§6 Outputs to collaborators).
type Notification struct {
	Kind    NotificationKind
	SCID    lnwire.ShortChannelID
	NodeID  lnwire.PubKey
}

// NotificationKind enumerates the graph-change events a Table emits.
type NotificationKind int

const (
	ChannelAdded NotificationKind = iota
	ChannelRemoved
	ChannelRefreshed
	NodeRemoved
)

// Table is the in-memory routing graph: nodes, channels, and the
// deferral/pruning bookkeeping that sits between raw gossip ingest and a
// queryable topology (§4.4). Its exported methods serialize on an internal
// mutex; all mutation happens inline within those ingest calls (§5).
type Table struct {
	mu sync.Mutex

	store    *gossipstore.Store
	resolver FundingOutputResolver
	clock    clock.Clock

	nodes    map[lnwire.PubKey]*Node
	channels map[lnwire.ShortChannelID]*Channel

	pending    map[lnwire.ShortChannelID]*pendingChannelAnnouncement
	unupdated  map[lnwire.ShortChannelID]*Channel
	pendingNode map[lnwire.PubKey][]*lnwire.NodeAnnouncement

	disabled map[disabledKey]time.Time

	failedLookup *lru.Cache

	staleUpdateCutoff time.Duration
	pruneTimeout      time.Duration

	notify func(Notification)
}

type disabledKey struct {
	scid lnwire.ShortChannelID
	dir  uint8
}

// NewTable constructs an empty routing table. pruneTimeout is the age past
// which an un-refreshed public channel is reaped (§4.4 Pruning); the
// staleness cutoff for buffering orphaned updates defaults to two weeks but
// is a field, not a constant, per the open question in §9.
func NewTable(store *gossipstore.Store, resolver FundingOutputResolver, clk clock.Clock, pruneTimeout time.Duration) *Table {
	cache, _ := lru.New(failedLookupCacheSize)
	return &Table{
		store:             store,
		resolver:          resolver,
		clock:             clk,
		nodes:             make(map[lnwire.PubKey]*Node),
		channels:          make(map[lnwire.ShortChannelID]*Channel),
		pending:           make(map[lnwire.ShortChannelID]*pendingChannelAnnouncement),
		unupdated:         make(map[lnwire.ShortChannelID]*Channel),
		pendingNode:       make(map[lnwire.PubKey][]*lnwire.NodeAnnouncement),
		disabled:          make(map[disabledKey]time.Time),
		failedLookup:      cache,
		staleUpdateCutoff: defaultStaleUpdateCutoff,
		pruneTimeout:      pruneTimeout,
	}
}

// SetNotifier installs a callback invoked on graph changes. Calls happen
// synchronously within the ingest call that caused them.
func (t *Table) SetNotifier(fn func(Notification)) {
	t.notify = fn
}

func (t *Table) emit(n Notification) {
	if t.notify != nil {
		t.notify(n)
	}
	metrics.GraphNodes.Set(float64(len(t.nodes)))
	metrics.GraphChannels.Set(float64(len(t.channels)))
}

func (t *Table) getOrCreateNode(id lnwire.PubKey) *Node {
	n, ok := t.nodes[id]
	if !ok {
		n = &Node{ID: id}
		t.nodes[id] = n
	}
	return n
}

// removeNodeIfOrphaned deletes a node with no remaining channels and no
// in-flight pending self-announcement (Invariant 6).
func (t *Table) removeNodeIfOrphaned(id lnwire.PubKey) {
	n, ok := t.nodes[id]
	if !ok {
		return
	}
	if n.NumChannels() > 0 {
		return
	}
	if len(t.pendingNode[id]) > 0 {
		return
	}
	if n.AnnounceStoreIndex != 0 {
		t.store.Tombstone(n.AnnounceStoreIndex)
	}
	delete(t.nodes, id)
	t.emit(Notification{Kind: NodeRemoved, NodeID: id})
}

// AddChannelAnnouncement runs the §4.4 channel_announcement ingest
// pipeline. Funding-output resolution is synchronous in this
// implementation's single-writer model: the call blocks on the resolver,
// mirroring the suspension point named in §5.
func (t *Table) AddChannelAnnouncement(ctx context.Context, ann *lnwire.ChannelAnnouncement) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Step 1: parse already happened at the wire layer; verify
	// signatures.
	if err := validateChannelAnnouncement(ann); err != nil {
		return err
	}

	scid := ann.ShortChannelID

	// Step 2: idempotent drop if already known.
	if _, ok := t.channels[scid]; ok {
		return nil
	}
	if _, ok := t.unupdated[scid]; ok {
		return nil
	}

	// Step 3: drop if on the failed-lookup list.
	if _, ok := t.failedLookup.Get(scid); ok {
		return nil
	}

	// Step 4: place into pending map and resolve the funding output. An
	// announcement already pending keeps its entry (and any deferred
	// updates) and its funding lookup is retried.
	if _, ok := t.pending[scid]; !ok {
		t.pending[scid] = &pendingChannelAnnouncement{
			ann:         ann,
			nodeID1:     ann.NodeID1,
			nodeID2:     ann.NodeID2,
			bitcoinKey1: ann.BitcoinKey1,
			bitcoinKey2: ann.BitcoinKey2,
		}
	}

	amountSat, scriptPubKey, err := t.resolver.ResolveFundingOutput(ctx, scid)
	if err != nil {
		if err == ErrTxoutUnknown {
			// Leave it pending; a later announcement re-arrival
			// or retry policy outside this table may retry.
			return nil
		}
		delete(t.pending, scid)
		return err
	}

	return t.admitPendingAnnouncement(scid, amountSat, scriptPubKey)
}

// admitPendingAnnouncement completes step 5 once a funding lookup
// resolves: validates the output, writes the announcement to the store,
// and replays any buffered updates.
func (t *Table) admitPendingAnnouncement(scid lnwire.ShortChannelID, amountSat int64, scriptPubKey []byte) error {
	pending, ok := t.pending[scid]
	if !ok {
		return ErrUnknownChannel
	}

	capacity, err := verifyFundingOutput(pending.bitcoinKey1, pending.bitcoinKey2, amountSat, scriptPubKey)
	if err != nil {
		t.failedLookup.Add(scid, struct{}{})
		delete(t.pending, scid)
		return err
	}

	payload, err := lnwire.EncodeMessage(pending.ann)
	if err != nil {
		delete(t.pending, scid)
		return ErrMalformedMessage
	}

	index, err := t.store.Append(payload, 0)
	if err != nil {
		return err
	}

	node1, node2 := pending.nodeID1, pending.nodeID2
	if !node1.Less(node2) {
		node1, node2 = node2, node1
	}

	ch := &Channel{
		SCID:               scid,
		Nodes:              [2]lnwire.PubKey{node1, node2},
		CapacitySat:        capacity,
		AnnounceStoreIndex: index,
	}
	t.unupdated[scid] = ch
	delete(t.pending, scid)

	// Replay deferred updates, newest-first doesn't matter: the update
	// pipeline itself enforces newest-timestamp-wins.
	for _, def := range pending.deferred {
		if def == nil {
			continue
		}
		t.applyChannelUpdateLocked(def.update)
	}

	return nil
}

// AddChannelUpdate runs the §4.4 channel_update ingest pipeline.
func (t *Table) AddChannelUpdate(update *lnwire.ChannelUpdate) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.applyChannelUpdateLocked(update)
}

func (t *Table) applyChannelUpdateLocked(update *lnwire.ChannelUpdate) error {
	scid := update.ShortChannelID
	dir := update.Direction()

	ch, isFull := t.channels[scid]
	unupdatedCh, isUnupdated := t.unupdated[scid]
	pending, isPending := t.pending[scid]

	if !isFull && !isUnupdated {
		// Step 2: unknown channel. Buffer against a pending
		// announcement if one exists; otherwise drop. Updates older
		// than the staleness cutoff are dropped outright.
		if t.clock.Now().Sub(time.Unix(int64(update.Timestamp), 0)) > t.staleUpdateCutoff {
			return nil
		}
		if !isPending {
			return nil
		}
		def := &deferredUpdate{update: update, timestamp: update.Timestamp}
		if existing := pending.deferred[dir]; existing == nil || update.Timestamp > existing.timestamp {
			pending.deferred[dir] = def
		}
		return nil
	}

	var target *Channel
	if isFull {
		target = ch
	} else {
		target = unupdatedCh
	}

	half := &target.Halves[dir]

	// Step 3: idempotent replay / stale update.
	if half.Defined() && half.Timestamp >= update.Timestamp {
		return nil
	}

	// Step 4: verify the signature against the announcement-proven node
	// id for this direction.
	signer := target.Nodes[dir]
	if err := validateChannelUpdate(update, signer); err != nil {
		return err
	}

	// Step 5: tombstone any previous record for this direction.
	if half.StoreIndex != 0 {
		t.store.Tombstone(half.StoreIndex)
	}

	// Step 6: append and set fields.
	payload, err := lnwire.EncodeMessage(update)
	if err != nil {
		return ErrMalformedMessage
	}
	index, err := t.store.Append(payload, update.Timestamp)
	if err != nil {
		return err
	}

	*half = HalfChannel{
		BaseFeeMsat:     update.BaseFee,
		FeeProportional: update.FeeRate,
		Delay:           update.TimeLockDelta,
		MinHTLCMsat:     update.HtlcMinimumMsat,
		MaxHTLCMsat:     update.HtlcMaximumMsat,
		HasMaxHTLC:      update.HasMaxHtlc(),
		MessageFlags:    update.MessageFlags,
		ChannelFlags:    update.ChannelFlags,
		Timestamp:       update.Timestamp,
		StoreIndex:      index,
	}
	if target.BcastTimestamp == 0 {
		target.BcastTimestamp = update.Timestamp
	}

	// Step 7: first update promotes an unupdated channel to full.
	if !isFull {
		delete(t.unupdated, scid)
		t.channels[scid] = target

		n1 := t.getOrCreateNode(target.Nodes[0])
		n2 := t.getOrCreateNode(target.Nodes[1])
		n1.channels.add(target)
		n2.channels.add(target)

		t.emit(Notification{Kind: ChannelAdded, SCID: scid})

		for _, id := range target.Nodes {
			for _, na := range t.pendingNode[id] {
				t.applyNodeAnnouncementLocked(na)
			}
			delete(t.pendingNode, id)
		}
	} else {
		t.emit(Notification{Kind: ChannelRefreshed, SCID: scid})
	}

	return nil
}

// AddNodeAnnouncement runs the §4.4 node_announcement ingest pipeline.
func (t *Table) AddNodeAnnouncement(ann *lnwire.NodeAnnouncement) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.applyNodeAnnouncementLocked(ann)
}

func (t *Table) applyNodeAnnouncementLocked(ann *lnwire.NodeAnnouncement) error {
	n, hasNode := t.nodes[ann.NodeID]

	hasPublicChannels := hasNode && n.NumChannels() > 0
	if !hasPublicChannels {
		// Step 1: buffer if it's an endpoint of a pending or
		// unupdated channel, else drop.
		if t.nodeIsPendingEndpoint(ann.NodeID) {
			t.pendingNode[ann.NodeID] = append(t.pendingNode[ann.NodeID], ann)
		}
		return nil
	}

	// Step 2: drop if not newer.
	if n.AnnounceStoreIndex != 0 && n.LastUpdate >= ann.Timestamp {
		return nil
	}

	// Step 3: verify signature.
	if err := validateNodeAnnouncement(ann); err != nil {
		return err
	}

	// Step 4: tombstone prior, append, update entry.
	if n.AnnounceStoreIndex != 0 {
		t.store.Tombstone(n.AnnounceStoreIndex)
	}
	payload, err := lnwire.EncodeMessage(ann)
	if err != nil {
		return ErrMalformedMessage
	}
	index, err := t.store.Append(payload, ann.Timestamp)
	if err != nil {
		return err
	}

	n.LastUpdate = ann.Timestamp
	n.Color = ann.RGBColor
	n.Alias = ann.Alias
	n.Addresses = ann.Addresses
	n.Features = ann.Features
	n.AnnounceStoreIndex = index

	return nil
}

func (t *Table) nodeIsPendingEndpoint(id lnwire.PubKey) bool {
	for _, p := range t.pending {
		if p.nodeID1 == id || p.nodeID2 == id {
			return true
		}
	}
	for _, ch := range t.unupdated {
		if ch.Nodes[0] == id || ch.Nodes[1] == id {
			return true
		}
	}
	return false
}

// Channel returns the channel known for scid, if any.
func (t *Table) Channel(scid lnwire.ShortChannelID) (*Channel, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch, ok := t.channels[scid]
	return ch, ok
}

// Node returns the node known for id, if any.
func (t *Table) Node(id lnwire.PubKey) (*Node, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[id]
	return n, ok
}

// AddLocalChannel inserts a local-only channel: it participates in path
// finding but is never gossiped or persisted to the store (§4.4 Local
// channels).
func (t *Table) AddLocalChannel(scid lnwire.ShortChannelID, nodeA, nodeB lnwire.PubKey, capacitySat int64, halfAB, halfBA HalfChannel) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n1, n2 := nodeA, nodeB
	h0, h1 := halfAB, halfBA
	if !n1.Less(n2) {
		n1, n2 = n2, n1
		h0, h1 = h1, h0
	}

	ch := &Channel{
		SCID:        scid,
		Nodes:       [2]lnwire.PubKey{n1, n2},
		CapacitySat: capacitySat,
		Halves:      [2]HalfChannel{h0, h1},
		// BcastTimestamp left at 0: Invariant 2 makes this local-only.
	}
	t.channels[scid] = ch
	t.getOrCreateNode(n1).channels.add(ch)
	t.getOrCreateNode(n2).channels.add(ch)
}

// DisableLocally marks a direction locally disabled for the given cool-off
// duration (§4.7). It does not touch the gossiped half-channel state.
func (t *Table) DisableLocally(scid lnwire.ShortChannelID, dir uint8, until time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disabled[disabledKey{scid, dir}] = until
}

func (t *Table) isLocallyDisabled(scid lnwire.ShortChannelID, dir uint8) bool {
	until, ok := t.disabled[disabledKey{scid, dir}]
	if !ok {
		return false
	}
	if t.clock.Now().After(until) {
		delete(t.disabled, disabledKey{scid, dir})
		return false
	}
	return true
}

// RemoveChannel tombstones a channel's records and detaches it from both
// endpoints, pruning either node left with no remaining edges (§4.4
// Pruning, §4.7 permanent failures).
func (t *Table) RemoveChannel(scid lnwire.ShortChannelID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeChannelLocked(scid)
}

func (t *Table) removeChannelLocked(scid lnwire.ShortChannelID) {
	ch, ok := t.channels[scid]
	if !ok {
		return
	}
	delete(t.channels, scid)

	if ch.AnnounceStoreIndex != 0 {
		t.store.Tombstone(ch.AnnounceStoreIndex)
	}
	for i := range ch.Halves {
		if ch.Halves[i].StoreIndex != 0 {
			t.store.Tombstone(ch.Halves[i].StoreIndex)
		}
	}

	for _, id := range ch.Nodes {
		if n, ok := t.nodes[id]; ok {
			n.channels.remove(scid)
			t.removeNodeIfOrphaned(id)
		}
	}

	t.emit(Notification{Kind: ChannelRemoved, SCID: scid})
}

// RemoveNodeChannels removes every channel incident to id (§4.7 permanent
// node failure).
func (t *Table) RemoveNodeChannels(id lnwire.PubKey) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.nodes[id]
	if !ok {
		return
	}
	var scids []lnwire.ShortChannelID
	n.ForEachChannel(func(ch *Channel) { scids = append(scids, ch.SCID) })
	for _, scid := range scids {
		t.removeChannelLocked(scid)
	}
}

// Prune reaps public channels whose refreshed directions have all gone
// stale past the prune timeout (§4.4 Pruning). Local channels (bcast
// timestamp zero) are exempt.
func (t *Table) Prune() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	var toRemove []lnwire.ShortChannelID

	for scid, ch := range t.channels {
		if !ch.IsPublic() {
			continue
		}

		stale := true
		for i := range ch.Halves {
			h := &ch.Halves[i]
			if !h.Defined() {
				continue
			}
			age := now.Sub(time.Unix(int64(h.Timestamp), 0))
			if age <= t.pruneTimeout {
				stale = false
				break
			}
		}
		if stale {
			toRemove = append(toRemove, scid)
		}
	}

	for _, scid := range toRemove {
		t.removeChannelLocked(scid)
	}
}
