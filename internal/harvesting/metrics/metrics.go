package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RPCCallsTotal tracks remote call attempts per operation
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_rpc_calls_total",
			Help: "Total number of remote call attempts",
		},
		[]string{"operation"},
	)

	// RPCErrorsTotal tracks failed remote call attempts per operation
	RPCErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_rpc_errors_total",
			Help: "Total number of failed remote call attempts",
		},
		[]string{"operation"},
	)

	// RPCRetriesExhausted tracks calls that failed on every attempt
	RPCRetriesExhausted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_rpc_retries_exhausted_total",
			Help: "Total number of remote calls that exhausted their retries",
		},
		[]string{"operation"},
	)

	// RPCLatency tracks remote call latency
	RPCLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harvester_rpc_latency_seconds",
			Help:    "Remote call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// PagesFetched tracks pages fetched per paginated operation
	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_pages_fetched_total",
			Help: "Total number of pages fetched",
		},
		[]string{"operation"},
	)

	// RepliesResolved tracks threads whose replies had to be re-fetched
	RepliesResolved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harvester_replies_resolved_total",
			Help: "Total number of threads whose replies were fetched separately",
		},
	)

	// RootRestarts tracks harvest restarts after transient upstream failures
	RootRestarts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harvester_root_restarts_total",
			Help: "Total number of root harvests restarted after a processing failure",
		},
	)

	// RootsProcessed tracks finished roots by outcome: ok, empty or failed
	RootsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_roots_processed_total",
			Help: "Total number of roots processed",
		},
		[]string{"outcome"},
	)

	// ThreadsHarvested tracks harvested top-level threads
	ThreadsHarvested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harvester_threads_harvested_total",
			Help: "Total number of top-level threads harvested",
		},
	)

	// BatchesWritten tracks batches handed to the sink
	BatchesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harvester_batches_written_total",
			Help: "Total number of batches written to storage",
		},
	)

	// DBConnectionPoolUsage tracks the percentage of open SQL connections
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "harvester_db_connection_pool_usage_percent",
			Help: "Percentage of database connection pool in use",
		},
	)
)
