package routing

import "github.com/go-errors/errors"

// Error taxonomy for the ingest and routing pipelines (spec §7). Parse and
// signature failures are local and never crash the node; store corruption
// and I/O errors propagate from gossipstore unwrapped and are fatal.
var (
	// ErrMalformedMessage mirrors lnwire.ErrMalformedMessage for
	// failures discovered above the wire codec (missing fields,
	// inconsistent flags).
	ErrMalformedMessage = errors.New("routing: malformed message")

	// ErrBadSignature means a signature over a gossip message did not
	// verify under the claimed key.
	ErrBadSignature = errors.New("routing: invalid signature")

	// ErrStaleUpdate means a channel_update's timestamp was not strictly
	// newer than what's already stored for that direction.
	ErrStaleUpdate = errors.New("routing: stale update")

	// ErrUnknownChannel means an update or node announcement referenced
	// a channel the table has no record of (and none pending).
	ErrUnknownChannel = errors.New("routing: unknown channel")

	// ErrChannelExists is returned when a channel_announcement duplicates
	// a channel already present; ingest treats this as an idempotent
	// drop, not a caller-visible failure.
	ErrChannelExists = errors.New("routing: channel already exists")

	// ErrTxoutUnknown means the funding output lookup reports the
	// output doesn't exist yet; a later announcement may retry.
	ErrTxoutUnknown = errors.New("routing: funding output not found")

	// ErrTxoutMismatch means the funding output is spent or its script
	// does not match the announced keys' 2-of-2 witness program.
	ErrTxoutMismatch = errors.New("routing: funding output mismatch")

	// ErrNoRoute means the path finder found no path honoring the
	// requested constraints.
	ErrNoRoute = errors.New("routing: no path found")

	// ErrSelfNotSet means no source node has been configured for path
	// finding.
	ErrSelfNotSet = errors.New("routing: source node not set")
)
