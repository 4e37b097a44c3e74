// Package metrics exposes Prometheus counters and histograms for the
// translator's data path: packets translated/dropped per direction,
// path-cache hit/miss counts, and control-plane RPC latency.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "scitun"
	subsystem = "translator"
)

const (
	labelDirection = "direction" // "egress" or "ingress"
	labelReason    = "reason"
)

// Collector holds all translator Prometheus metrics.
type Collector struct {
	// PacketsTranslated counts packets successfully translated, per direction.
	PacketsTranslated *prometheus.CounterVec

	// PacketsDropped counts packets dropped during translation, labeled
	// with direction and a short drop reason (e.g. "not_mapped",
	// "no_path", "unsupported_proto").
	PacketsDropped *prometheus.CounterVec

	// CacheHits counts path-cache lookups served from memoized state.
	CacheHits prometheus.Counter

	// CacheMisses counts path-cache lookups that issued a daemon RPC.
	CacheMisses prometheus.Counter

	// RPCLatency observes control-plane RPC call duration in seconds.
	RPCLatency prometheus.Histogram
}

// NewCollector creates a Collector with all metrics registered against
// reg. If reg is nil, prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.PacketsTranslated,
		c.PacketsDropped,
		c.CacheHits,
		c.CacheMisses,
		c.RPCLatency,
	)

	return c
}

func newMetrics() *Collector {
	return &Collector{
		PacketsTranslated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_translated_total",
			Help:      "Total packets successfully translated, by direction.",
		}, []string{labelDirection}),

		PacketsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_dropped_total",
			Help:      "Total packets dropped during translation, by direction and reason.",
		}, []string{labelDirection, labelReason}),

		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "path_cache_hits_total",
			Help:      "Total path-cache lookups served from memoized state.",
		}),

		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "path_cache_misses_total",
			Help:      "Total path-cache lookups that issued a control-plane RPC.",
		}),

		RPCLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "daemon_rpc_latency_seconds",
			Help:      "Control-plane daemon RPC call duration.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Direction labels for PacketsTranslated/PacketsDropped.
const (
	DirectionEgress  = "egress"
	DirectionIngress = "ingress"
)

// Drop reasons used as the labelReason value.
const (
	ReasonNotMapped        = "not_mapped"
	ReasonNoPath           = "no_path"
	ReasonUnsupportedProto = "unsupported_proto"
	ReasonAddressFamily    = "address_family_mismatch"
	ReasonWrongDestination = "wrong_destination"
	ReasonUnsupportedAddr  = "unsupported_address_type"
	ReasonMalformed        = "malformed_packet"
	// ReasonUnspecified covers translator drop conditions that don't
	// distinguish their cause at the boundary the caller observes it
	// (translator.Egress/Ingress return a single ok=false for several
	// distinct internal drop checks).
	ReasonUnspecified = "unspecified"
)

// IncTranslated increments the translated-packet counter for direction.
func (c *Collector) IncTranslated(direction string) {
	c.PacketsTranslated.WithLabelValues(direction).Inc()
}

// IncDropped increments the dropped-packet counter for direction/reason.
func (c *Collector) IncDropped(direction, reason string) {
	c.PacketsDropped.WithLabelValues(direction, reason).Inc()
}

// ObserveCacheLookup records a single path-cache lookup's outcome.
func (c *Collector) ObserveCacheLookup(hit bool) {
	if hit {
		c.CacheHits.Inc()
	} else {
		c.CacheMisses.Inc()
	}
}

// ObserveRPCLatency records the duration, in seconds, of a single
// control-plane RPC call.
func (c *Collector) ObserveRPCLatency(seconds float64) {
	c.RPCLatency.Observe(seconds)
}
