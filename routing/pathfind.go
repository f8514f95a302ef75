package routing

import (
	"container/heap"

	"github.com/lnoverlay/gossipd/lnwire"
	"github.com/lnoverlay/gossipd/metrics"
)

// MaxHops is the protocol-wide cap on route length (§4.5).
const MaxHops = 20

// Hop describes one forwarding step of a computed route.
type Hop struct {
	ShortChannelID   lnwire.ShortChannelID
	Direction        uint8
	NextNodeID       lnwire.PubKey
	AmountToForward  uint64
	CLTVDelta        uint16
}

// EdgeExclusion identifies a direction to exclude from a search, keyed by
// the caller (e.g. a previous failed attempt over the same channel).
type EdgeExclusion struct {
	SCID lnwire.ShortChannelID
	Dir  uint8
}

// RouteRequest parameterizes a single path-finding call (§4.5).
type RouteRequest struct {
	Source      lnwire.PubKey
	Destination lnwire.PubKey
	AmountMsat  uint64
	RiskFactor  float64
	FinalCLTV   uint16
	MaxHops     int

	// FuzzFactor in [0,1] perturbs edge weights by up to this fraction;
	// zero disables fuzzing.
	FuzzFactor float64
	// FuzzSeed drives the perturbation's PRNG so retries can reproduce
	// an earlier search's randomization.
	FuzzSeed int64

	Exclude map[EdgeExclusion]struct{}
}

func feeForAmount(h *HalfChannel, amt uint64) uint64 {
	prop := (uint64(amt)*uint64(h.FeeProportional) + 999999) / 1000000
	return uint64(h.BaseFeeMsat) + prop
}

// dijkstraEntry is one node's state during the backward search.
type dijkstraEntry struct {
	node       lnwire.PubKey
	amount     uint64 // amount that must arrive at this node's outgoing edge
	cltvDelta  uint16
	dist       float64
	nextHop    *Hop // the hop this node will use to reach the destination side
	nextNode   lnwire.PubKey
	visited    bool
}

type pqItem struct {
	node  lnwire.PubKey
	dist  float64
	index int
}

type priorityQueue []*pqItem

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool  { return pq[i].dist < pq[j].dist }
func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index, pq[j].index = i, j
}
func (pq *priorityQueue) Push(x interface{}) {
	item := x.(*pqItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return item
}

// fuzzMultiplier returns 1 + f*(2*rand(seed,scid,dir)-1), deterministic in
// (seed, scid, dir) so repeated calls with the same seed reproduce the same
// perturbation (§4.5 Fuzz).
func fuzzMultiplier(seed int64, scid lnwire.ShortChannelID, dir uint8, f float64) float64 {
	if f == 0 {
		return 1
	}
	h := uint64(seed)
	h = h*1000003 ^ scid.ToUint64()
	h = h*1000003 ^ uint64(dir)
	// xorshift-style mix for a cheap, reproducible pseudo-random unit
	// interval value.
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	r := float64(h%1000000) / 1000000.0
	return 1 + f*(2*r-1)
}

// GetRoute computes a source-to-destination route per §4.5: single-source
// shortest path run backward from the destination so that amounts and fees
// accumulate correctly against the downstream forwarding amount.
func (t *Table) GetRoute(req RouteRequest) ([]Hop, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	metrics.RouteRequests.Inc()

	maxHops := req.MaxHops
	if maxHops <= 0 || maxHops > MaxHops {
		maxHops = MaxHops
	}

	dist := make(map[lnwire.PubKey]*dijkstraEntry)
	dist[req.Destination] = &dijkstraEntry{
		node:      req.Destination,
		amount:    req.AmountMsat,
		cltvDelta: req.FinalCLTV,
		dist:      0,
	}

	pq := &priorityQueue{}
	heap.Init(pq)
	heap.Push(pq, &pqItem{node: req.Destination, dist: 0})

	hopCount := map[lnwire.PubKey]int{req.Destination: 0}

	for pq.Len() > 0 {
		item := heap.Pop(pq).(*pqItem)
		cur := dist[item.node]
		if cur.visited {
			continue
		}
		cur.visited = true

		if cur.node == req.Source {
			break
		}
		if hopCount[cur.node] >= maxHops {
			continue
		}

		node, ok := t.nodes[cur.node]
		if !ok {
			continue
		}

		node.ForEachChannel(func(ch *Channel) {
			neighbor := ch.OtherNode(cur.node)
			half, dir := ch.DirectionFrom(neighbor)

			if _, excluded := req.Exclude[EdgeExclusion{ch.SCID, dir}]; excluded {
				return
			}
			if !half.Enabled() {
				return
			}
			if t.isLocallyDisabled(ch.SCID, dir) {
				return
			}
			if cur.amount < half.MinHTLCMsat {
				return
			}
			if half.HasMaxHTLC && cur.amount > half.MaxHTLCMsat {
				return
			}
			if ch.IsPublic() && ch.CapacitySat >= 0 &&
				uint64(ch.CapacitySat)*1000 < cur.amount {
				return
			}

			fee := feeForAmount(half, cur.amount)
			amountAtEntry := cur.amount + fee
			weight := float64(fee) + float64(cur.amount)*float64(half.Delay)*req.RiskFactor
			weight *= fuzzMultiplier(req.FuzzSeed, ch.SCID, dir, req.FuzzFactor)

			candidateDist := cur.dist + weight

			existing, seen := dist[neighbor]
			if seen && (existing.visited || existing.dist <= candidateDist) {
				return
			}

			entry := &dijkstraEntry{
				node:      neighbor,
				amount:    amountAtEntry,
				cltvDelta: cur.cltvDelta + half.Delay,
				dist:      candidateDist,
				nextNode:  cur.node,
				nextHop: &Hop{
					ShortChannelID:  ch.SCID,
					Direction:       dir,
					NextNodeID:      cur.node,
					AmountToForward: cur.amount,
					CLTVDelta:       cur.cltvDelta,
				},
			}
			dist[neighbor] = entry
			hopCount[neighbor] = hopCount[cur.node] + 1
			heap.Push(pq, &pqItem{node: neighbor, dist: candidateDist})
		})
	}

	if req.Source == req.Destination {
		metrics.RouteFailures.WithLabelValues("self").Inc()
		return nil, ErrNoRoute
	}

	srcEntry, ok := dist[req.Source]
	if !ok || !srcEntry.visited || srcEntry.nextHop == nil {
		metrics.RouteFailures.WithLabelValues("unreachable").Inc()
		return nil, ErrNoRoute
	}

	var hops []Hop
	cur := req.Source
	for {
		entry := dist[cur]
		if entry == nil || entry.nextHop == nil {
			break
		}
		hops = append(hops, *entry.nextHop)
		cur = entry.nextNode
		if cur == req.Destination {
			break
		}
	}

	if len(hops) == 0 || len(hops) > maxHops {
		metrics.RouteFailures.WithLabelValues("hop_cap").Inc()
		return nil, ErrNoRoute
	}

	return hops, nil
}
