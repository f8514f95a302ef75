// Package metrics exposes Prometheus instrumentation for the gossip store
// and routing table, following the teacher's habit of a package-level
// registry of named collectors rather than threading a registry through
// every component.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	StoreSizeBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gossipd",
		Subsystem: "store",
		Name:      "size_bytes",
		Help:      "Current size of the gossip store file in bytes.",
	})

	RecordsAppended = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gossipd",
		Subsystem: "store",
		Name:      "records_appended_total",
		Help:      "Total records appended to the gossip store.",
	})

	RecordsTombstoned = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gossipd",
		Subsystem: "store",
		Name:      "records_tombstoned_total",
		Help:      "Total records tombstoned in the gossip store.",
	})

	CompactionsRun = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gossipd",
		Subsystem: "store",
		Name:      "compactions_total",
		Help:      "Total compactions run against the gossip store.",
	})

	BytesShrunk = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gossipd",
		Subsystem: "store",
		Name:      "compaction_shrinkage_bytes_total",
		Help:      "Cumulative bytes reclaimed by compaction.",
	})

	GraphNodes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gossipd",
		Subsystem: "graph",
		Name:      "nodes",
		Help:      "Current node count in the routing table.",
	})

	GraphChannels = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gossipd",
		Subsystem: "graph",
		Name:      "channels",
		Help:      "Current channel count in the routing table.",
	})

	RouteRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gossipd",
		Subsystem: "routing",
		Name:      "route_requests_total",
		Help:      "Total path-finding requests served.",
	})

	RouteFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gossipd",
		Subsystem: "routing",
		Name:      "route_failures_total",
		Help:      "Path-finding requests that returned no route, by reason.",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(
		StoreSizeBytes,
		RecordsAppended,
		RecordsTombstoned,
		CompactionsRun,
		BytesShrunk,
		GraphNodes,
		GraphChannels,
		RouteRequests,
		RouteFailures,
	)
}
