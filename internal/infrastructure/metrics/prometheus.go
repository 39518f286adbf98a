// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dashstream"

var (
	// JobsSubmittedTotal counts jobs accepted by the encode service.
	// Labels:
	//   - dispatch: local, queue
	JobsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_submitted_total",
			Help:      "Total number of encode jobs accepted",
		},
		[]string{"dispatch"},
	)

	// JobsFinishedTotal counts terminal job outcomes reported by the supervisor.
	// Labels:
	//   - status: Complete, Failed
	JobsFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Total number of encode jobs that reached a terminal state",
		},
		[]string{"status"},
	)

	// EncodeDurationSeconds observes wall time from spawn to exit per job.
	EncodeDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "encode_duration_seconds",
			Help:      "Duration of transcoder runs",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		},
		[]string{"status"},
	)

	// ActiveEncodes is the number of transcoder processes currently running.
	ActiveEncodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_encodes",
			Help:      "Number of transcoder processes currently running",
		},
	)

	// AudioProbesTotal tracks audio probe results.
	// Labels:
	//   - result: audio, no_audio, error
	AudioProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_probes_total",
			Help:      "Total number of audio probes",
		},
		[]string{"result"},
	)

	// RegistryOperationsTotal tracks job registry operations.
	// Labels:
	//   - operation: set, get, evict, sweep
	//   - status: success, not_found, rejected, error
	//   - backend: memory, redis
	RegistryOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_operations_total",
			Help:      "Total number of job registry operations",
		},
		[]string{"operation", "status", "backend"},
	)

	// RegistryEvictionsTotal counts entries removed after their retention window.
	RegistryEvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_evictions_total",
			Help:      "Total number of job registry entries evicted on expiry",
		},
		[]string{"backend"},
	)

	// StreamLockOperationsTotal tracks cluster-wide stream locks.
	// Labels:
	//   - operation: acquire, release
	//   - status: success, locked, error
	StreamLockOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_lock_operations_total",
			Help:      "Total number of stream lock operations",
		},
		[]string{"operation", "status"},
	)

	// DBQueriesTotal tracks job history queries.
	// Labels:
	//   - query_type: select, insert, update
	//   - table: encode_jobs
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_queries_total",
			Help:      "Total number of database queries",
		},
		[]string{"query_type", "table"},
	)
)

// Probe result constants.
const (
	ProbeResultAudio   = "audio"
	ProbeResultNoAudio = "no_audio"
	ProbeResultError   = "error"
)

// Registry operation constants.
const (
	RegistryOpSet   = "set"
	RegistryOpGet   = "get"
	RegistryOpEvict = "evict"
	RegistryOpSweep = "sweep"
)

// Registry status constants.
const (
	RegistryStatusSuccess  = "success"
	RegistryStatusNotFound = "not_found"
	RegistryStatusRejected = "rejected"
	RegistryStatusError    = "error"
)

// Registry backend constants.
const (
	RegistryBackendMemory = "memory"
	RegistryBackendRedis  = "redis"
)

// Stream lock constants.
const (
	StreamLockOpAcquire = "acquire"
	StreamLockOpRelease = "release"

	StreamLockStatusSuccess = "success"
	StreamLockStatusLocked  = "locked"
	StreamLockStatusError   = "error"
)

// Dispatch mode constants.
const (
	DispatchLocal = "local"
	DispatchQueue = "queue"
)

// DB query type constants.
const (
	DBQuerySelect = "select"
	DBQueryInsert = "insert"
	DBQueryUpdate = "update"
)

// Table name constants.
const (
	TableEncodeJobs = "encode_jobs"
)
