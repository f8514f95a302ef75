// Command gossipd runs the gossip store and routing table standalone,
// accepting no peer connections (it serves only Prometheus metrics on
// :9090) and serving as the wiring point for the pieces
// this repository actually owns. A real deployment embeds this process
// behind the peer transport, wallet, and chain-backend collaborators named
// in §1 of the design; none of those are implemented here.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/btcsuite/btclog"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lnoverlay/gossipd/config"
	"github.com/lnoverlay/gossipd/discovery"
	"github.com/lnoverlay/gossipd/gossipstore"
	"github.com/lnoverlay/gossipd/lnwire"
	"github.com/lnoverlay/gossipd/routing"
)

// unconfiguredResolver is the placeholder funding-output collaborator: a
// real build wires in an on-chain watcher here, per §1's scope boundary.
type unconfiguredResolver struct{}

func (unconfiguredResolver) ResolveFundingOutput(ctx context.Context, scid lnwire.ShortChannelID) (int64, []byte, error) {
	return 0, nil, routing.ErrTxoutUnknown
}

func main() {
	backend := btclog.NewBackend(os.Stdout)
	logger := backend.Logger("GSPD")
	logger.SetLevel(btclog.LevelInfo)
	gossipstore.UseLogger(logger)
	routing.UseLogger(logger)
	discovery.UseLogger(logger)

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	store, err := gossipstore.Open(cfg.StorePath)
	if err != nil {
		logger.Errorf("unable to open gossip store: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	table := routing.NewTable(store, unconfiguredResolver{}, clock.NewDefaultClock(), cfg.PruneTimeout)
	_ = discovery.NewGossiper(store, table)

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		logger.Infof("metrics listening on :9090")
		if err := http.ListenAndServe(":9090", nil); err != nil {
			logger.Errorf("metrics server stopped: %v", err)
		}
	}()

	logger.Infof("gossipd running, store=%s", cfg.StorePath)
	select {}
}
