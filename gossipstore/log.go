package gossipstore

import "github.com/btcsuite/btclog"

// log is the package-wide logger, disabled until the caller wires one in
// with UseLogger (the same pattern lnd uses for every subsystem logger).
var log = btclog.Disabled

// UseLogger sets the subsystem logger used by this package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
