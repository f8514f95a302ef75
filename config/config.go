// Package config defines the gossipd process's static configuration,
// parsed from command-line flags and an optional config file via
// jessevdk/go-flags.
package config

import (
	"time"

	"github.com/jessevdk/go-flags"
)

const (
	defaultStorePath        = "gossip_store"
	defaultPruneTimeout     = 14 * 24 * time.Hour
	defaultStaleUpdateCutoff = 14 * 24 * time.Hour
	defaultMaxHops          = 20
	defaultRiskFactor       = 15.0
	defaultPaceInterval     = 100 * time.Millisecond
)

// Config holds every tunable named in the spec's component design: store
// location, the prune timeout and staleness cutoff (§9's open question
// makes the latter a field rather than a baked-in constant), path-finding
// defaults, and gossip pacing.
type Config struct {
	StorePath string `long:"storepath" description:"path to the gossip store file"`

	PruneTimeout     time.Duration `long:"prunetimeout" description:"age past which an un-refreshed public channel is reaped"`
	StaleUpdateCutoff time.Duration `long:"staleupdatecutoff" description:"age past which a buffered orphan update is dropped instead of held"`

	MaxHops    int     `long:"maxhops" description:"hop cap for path finding, capped at the protocol maximum of 20"`
	RiskFactor float64 `long:"riskfactor" description:"default msat-per-(msat*block) cost of HTLC lock-up time"`

	GossipPaceInterval time.Duration `long:"gossippaceinterval" description:"minimum interval between outbound gossip flushes to a peer"`
}

// Default returns a Config populated with the protocol's stated defaults.
func Default() *Config {
	return &Config{
		StorePath:          defaultStorePath,
		PruneTimeout:       defaultPruneTimeout,
		StaleUpdateCutoff:  defaultStaleUpdateCutoff,
		MaxHops:            defaultMaxHops,
		RiskFactor:         defaultRiskFactor,
		GossipPaceInterval: defaultPaceInterval,
	}
}

// Load parses command-line arguments over the defaults, returning the
// resulting configuration.
func Load(args []string) (*Config, error) {
	cfg := Default()
	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}
	if cfg.MaxHops > 20 {
		cfg.MaxHops = 20
	}
	return cfg, nil
}
