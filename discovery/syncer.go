package discovery

import (
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/queue"
	"github.com/lightningnetwork/lnd/ticker"
	"github.com/lnoverlay/gossipd/gossipstore"
	"github.com/lnoverlay/gossipd/lnwire"
)

// defaultPaceInterval is how often the syncer's forwarding loop wakes to
// push newly readable gossip to its peer (§4.6).
const defaultPaceInterval = 100 * time.Millisecond

// defaultOutboundQueueSize is the buffer size given to the outbound
// ConcurrentQueue; messages beyond it are held in the queue's unbounded
// overflow list rather than blocking the forwarding loop.
const defaultOutboundQueueSize = 1000

// PeerSyncer owns one connected peer's view into the gossip store: its
// timestamp filter window, its cursor, and the pacing that governs how
// quickly backlog is drained to the wire (§4.6).
type PeerSyncer struct {
	mu sync.Mutex

	store *gossipstore.Store
	pace  ticker.Ticker
	out   *queue.ConcurrentQueue

	cursor  int64
	minTS   uint32
	maxTS   uint32
	started bool

	quit chan struct{}
	wg   sync.WaitGroup
}

// NewPeerSyncer constructs a syncer with an empty (closed) timestamp
// window; nothing is sent until SetFilter arms it.
func NewPeerSyncer(store *gossipstore.Store) *PeerSyncer {
	return &PeerSyncer{
		store: store,
		pace:  ticker.New(defaultPaceInterval),
		out:   queue.NewConcurrentQueue(defaultOutboundQueueSize),
		quit:  make(chan struct{}),
	}
}

// Outbound returns the channel the peer connection should drain framed
// gossip payloads from.
func (s *PeerSyncer) Outbound() <-chan interface{} {
	return s.out.ChanOut()
}

// Start launches the forwarding loop goroutine. The pace ticker runs from
// here on; the loop sends nothing until SetFilter arms the window.
func (s *PeerSyncer) Start() {
	s.out.Start()
	s.pace.Resume()
	s.wg.Add(1)
	go s.forwardingLoop()
}

// Stop tears down the syncer; the underlying store is untouched (§5
// Cancellation).
func (s *PeerSyncer) Stop() {
	close(s.quit)
	s.wg.Wait()
	s.pace.Stop()
	s.out.Stop()
}

// SetFilter applies a gossip_timestamp_filter message: the window becomes
// [first, first+rangeSecs-1] saturating at u32 max (empty when rangeSecs is
// 0), the cursor resets to just past the store header, and the forwarding
// loop starts sending from there on its next pace tick (§4.6).
func (s *PeerSyncer) SetFilter(filter *lnwire.GossipTimestampFilter) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.minTS = filter.FirstTimestamp
	end := uint64(filter.FirstTimestamp) + uint64(filter.TimestampRange)
	if end > 0xFFFFFFFF {
		end = 0xFFFFFFFF
	} else if filter.TimestampRange > 0 {
		end--
	}
	s.maxTS = uint32(end)

	s.cursor = 1
	s.started = filter.TimestampRange > 0
	s.pace.Resume()
}

func (s *PeerSyncer) windowed(ts uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return false
	}
	return ts >= s.minTS && ts <= s.maxTS
}

// forwardingLoop implements §4.6's read-filter-emit cycle: at each pace
// tick it drains the store from the cursor, skipping tombstoned records,
// non-broadcast message kinds, and records outside the window, until
// end-of-store is reached; the pace ticker keeps running, so records
// appended later are picked up on a later tick.
func (s *PeerSyncer) forwardingLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.quit:
			return
		case <-s.pace.Ticks():
		}

		for {
			s.mu.Lock()
			started := s.started
			cursor := s.cursor
			s.mu.Unlock()

			if !started {
				break
			}
			if cursor >= s.store.Size() {
				break
			}

			rec, next, err := s.store.ReadAt(cursor)
			if err != nil {
				log.Errorf("syncer: fatal read error at offset %d: %v", cursor, err)
				return
			}

			s.mu.Lock()
			s.cursor = next
			s.mu.Unlock()

			if rec.Deleted {
				continue
			}

			msgType, err := lnwire.PeekMessageType(rec.Payload)
			if err != nil || !msgType.IsGossipBroadcast() {
				continue
			}

			if !s.windowed(rec.Timestamp) {
				continue
			}

			select {
			case s.out.ChanIn() <- rec.Payload:
			case <-s.quit:
				return
			}
		}
	}
}
