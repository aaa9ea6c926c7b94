package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Global collectors, registered with the default registry through promauto.
// Every label set is (backend, op) where backend is "memory" or "disk" and
// op names the datastore call, e.g. "create_vertex" or "get_edges".

var (
	// OperationsTotal counts datastore calls, successful or not.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kektorgraph_operations_total",
			Help: "Total number of datastore operations",
		},
		[]string{"backend", "op"},
	)

	// OperationErrorsTotal counts calls that returned an error, including
	// not-found and validation errors.
	OperationErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kektorgraph_operation_errors_total",
			Help: "Total number of datastore operations that returned an error",
		},
		[]string{"backend", "op"},
	)

	// OperationDuration measures how long a call took. For queries only the
	// planning part is timed; consuming the results is up to the caller.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "kektorgraph_operation_duration_seconds",
			Help: "Duration of datastore operations in seconds",
			// From single-key lookups to large cascading deletes on disk.
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"backend", "op"},
	)

	// SnapshotsTotal counts snapshots taken by the memory backend, labeled
	// by result ("ok" or "error").
	SnapshotsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kektorgraph_snapshots_total",
			Help: "Total number of snapshots written",
		},
		[]string{"result"},
	)
)
