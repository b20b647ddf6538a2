// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Stream metrics
	NotificationsReceived prometheus.Counter
	WSReconnects          prometheus.Counter
	TransactionsFetched   prometheus.Counter
	TransactionFetchFails prometheus.Counter

	// Decode metrics
	EventsDecoded *prometheus.CounterVec
	PoolsSeen     *prometheus.CounterVec
	DecodeErrors  *prometheus.CounterVec

	// Normalization metrics
	TradesNormalized prometheus.Counter
	EventsDropped    *prometheus.CounterVec

	// Registry metrics
	PoolResolves      *prometheus.CounterVec
	PoolsUnresolvable prometheus.Counter

	// Dedup and writer metrics
	DedupHits      prometheus.Counter
	TradesWritten  prometheus.Counter
	WriteConflicts prometheus.Counter
	WriteRetries   prometheus.Counter

	// Progress metrics
	HighestSlotSeen  prometheus.Gauge
	WriterQueueDepth prometheus.Gauge

	// Latency metrics
	RPCCallLatency *prometheus.HistogramVec
	FlushDuration  prometheus.Histogram
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_dex_ledger"
	}

	return &Metrics{
		NotificationsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "notifications_received_total",
			Help:      "Total number of log notifications received over WebSocket",
		}),
		WSReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "ws_reconnects_total",
			Help:      "Total number of WebSocket reconnections",
		}),
		TransactionsFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "transactions_fetched_total",
			Help:      "Total number of transactions fetched over RPC",
		}),
		TransactionFetchFails: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "transaction_fetch_failures_total",
			Help:      "Total number of transactions dropped after exhausting fetch retries",
		}),

		EventsDecoded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decode",
			Name:      "events_decoded_total",
			Help:      "Total number of swap events decoded by dex",
		}, []string{"dex"}),
		PoolsSeen: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decode",
			Name:      "pool_creations_decoded_total",
			Help:      "Total number of pool creation events decoded by dex",
		}, []string{"dex"}),
		DecodeErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decode",
			Name:      "decode_errors_total",
			Help:      "Total number of malformed events skipped by dex",
		}, []string{"dex"}),

		TradesNormalized: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "normalize",
			Name:      "trades_total",
			Help:      "Total number of swap events normalized into trades",
		}),
		EventsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "normalize",
			Name:      "events_dropped_total",
			Help:      "Total number of swap events dropped by reason",
		}, []string{"reason"}),

		PoolResolves: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "pool_resolves_total",
			Help:      "Total number of pool resolutions by source",
		}, []string{"source"}),
		PoolsUnresolvable: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "pools_unresolvable_total",
			Help:      "Total number of pools whose metadata could not be resolved",
		}),

		DedupHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sequencer",
			Name:      "dedup_hits_total",
			Help:      "Total number of trades filtered by the recent window",
		}),
		TradesWritten: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "writer",
			Name:      "trades_written_total",
			Help:      "Total number of trade rows inserted",
		}),
		WriteConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "writer",
			Name:      "write_conflicts_total",
			Help:      "Total number of trades skipped as already present",
		}),
		WriteRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "writer",
			Name:      "write_retries_total",
			Help:      "Total number of retried batch inserts",
		}),

		HighestSlotSeen: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "highest_slot_seen",
			Help:      "Highest slot observed in the stream",
		}),
		WriterQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "writer",
			Name:      "queue_depth",
			Help:      "Current number of trades waiting to be flushed",
		}),

		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_duration_seconds",
			Help:      "RPC call latency by method",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		FlushDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "writer",
			Name:      "flush_duration_seconds",
			Help:      "Time spent persisting a batch",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordNotification increments the notifications received counter and
// tracks stream progress.
func RecordNotification(slot int64) {
	DefaultMetrics.NotificationsReceived.Inc()
	DefaultMetrics.HighestSlotSeen.Set(float64(slot))
}

// RecordReconnect increments the WebSocket reconnect counter.
func RecordReconnect() {
	DefaultMetrics.WSReconnects.Inc()
}

// RecordTransactionFetch records the outcome of a transaction fetch.
func RecordTransactionFetch(ok bool) {
	if ok {
		DefaultMetrics.TransactionsFetched.Inc()
	} else {
		DefaultMetrics.TransactionFetchFails.Inc()
	}
}

// RecordEventDecoded increments the decoded events counter for a dex.
func RecordEventDecoded(dex string) {
	DefaultMetrics.EventsDecoded.WithLabelValues(dex).Inc()
}

// RecordPoolCreation increments the decoded pool creations counter for a dex.
func RecordPoolCreation(dex string) {
	DefaultMetrics.PoolsSeen.WithLabelValues(dex).Inc()
}

// RecordDecodeError increments the decode error counter for a dex.
func RecordDecodeError(dex string) {
	DefaultMetrics.DecodeErrors.WithLabelValues(dex).Inc()
}

// RecordTradeNormalized increments the normalized trades counter.
func RecordTradeNormalized() {
	DefaultMetrics.TradesNormalized.Inc()
}

// RecordEventDropped increments the dropped events counter for a reason.
func RecordEventDropped(reason string) {
	DefaultMetrics.EventsDropped.WithLabelValues(reason).Inc()
}

// RecordPoolResolve increments the pool resolve counter for a source.
func RecordPoolResolve(source string) {
	DefaultMetrics.PoolResolves.WithLabelValues(source).Inc()
}

// RecordPoolUnresolvable increments the unresolvable pools counter.
func RecordPoolUnresolvable() {
	DefaultMetrics.PoolsUnresolvable.Inc()
}

// RecordDedupHits adds to the recent-window filter counter.
func RecordDedupHits(n int) {
	DefaultMetrics.DedupHits.Add(float64(n))
}

// RecordWrite records the outcome of a persisted batch.
func RecordWrite(written, conflicts int64, seconds float64) {
	DefaultMetrics.TradesWritten.Add(float64(written))
	DefaultMetrics.WriteConflicts.Add(float64(conflicts))
	DefaultMetrics.FlushDuration.Observe(seconds)
}

// RecordWriteRetry increments the write retry counter.
func RecordWriteRetry() {
	DefaultMetrics.WriteRetries.Inc()
}

// UpdateWriterQueueDepth updates the writer queue depth gauge.
func UpdateWriterQueueDepth(depth int) {
	DefaultMetrics.WriterQueueDepth.Set(float64(depth))
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}
