package routing

import (
	"context"
	"time"

	"github.com/lnoverlay/gossipd/lnwire"
)

// FailureCode enumerates the BOLT-style routing failure categories a
// payment attempt can report (§4.7).
type FailureCode int

const (
	TemporaryChannelFailure FailureCode = iota
	FeeInsufficient
	ExpiryTooSoon
	ExpiryTooFar
	AmountBelowMinimum
	PermanentChannelFailure
	UnknownChannelFailure
	UnknownNextPeer
	PermanentNodeFailure
)

// defaultDisableCooldown is how long a half-channel stays locally disabled
// after a transient failure with no attached update (§4.7).
const defaultDisableCooldown = 20 * time.Minute

// RouteFailure is the report a payment attempt supplies when a hop fails
// (§4.7). ErringChannel and Direction are optional: some failure codes
// (permanent node failure) only name a node.
type RouteFailure struct {
	ErringNode    lnwire.PubKey
	ErringChannel lnwire.ShortChannelID
	HasChannel    bool
	Direction     uint8
	Code          FailureCode
	Update        *lnwire.ChannelUpdate
}

// ApplyFailure shapes the routing table in response to a reported payment
// failure (§4.7). The mutation is entirely local: it never touches the
// gossip store's broadcast contents beyond the normal update-ingest and
// removal paths those pipelines already drive.
func (t *Table) ApplyFailure(ctx context.Context, f RouteFailure) error {
	switch f.Code {
	case TemporaryChannelFailure, FeeInsufficient, ExpiryTooSoon, ExpiryTooFar, AmountBelowMinimum:
		if f.Update != nil {
			return t.AddChannelUpdate(f.Update)
		}
		if f.HasChannel {
			t.DisableLocally(f.ErringChannel, f.Direction, t.clock.Now().Add(defaultDisableCooldown))
		}
		return nil

	case PermanentChannelFailure, UnknownChannelFailure, UnknownNextPeer:
		if f.HasChannel {
			t.RemoveChannel(f.ErringChannel)
		}
		return nil

	case PermanentNodeFailure:
		t.RemoveNodeChannels(f.ErringNode)
		return nil

	default:
		return nil
	}
}
