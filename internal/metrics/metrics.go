// ABOUTME: Prometheus collectors for joins, abstractions and concretizations
// ABOUTME: Registered on the default registry so the CLI can dump them after a run

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values
const (
	OutcomeDefined   = "defined"
	OutcomeUndefined = "undefined"
	OutcomeError     = "error"
)

var (
	// Joins counts join invocations.
	// Labels: outcome (defined, undefined, error), status (join status or "none")
	Joins = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "heapshape",
		Subsystem: "join",
		Name:      "total",
		Help:      "Total joins by outcome and resulting status",
	}, []string{"outcome", "status"})

	// JoinDuration measures the wall time of a join
	JoinDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "heapshape",
		Subsystem: "join",
		Name:      "duration_seconds",
		Help:      "Join latency in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
	})

	// Abstractions counts abstracted candidates.
	// Labels: kind (list, tree)
	Abstractions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "heapshape",
		Subsystem: "shape",
		Name:      "abstractions_total",
		Help:      "Total shape candidates folded into abstract objects",
	}, []string{"kind"})

	// Concretizations counts concretized abstract objects.
	// Labels: kind (list, tree)
	Concretizations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "heapshape",
		Subsystem: "shape",
		Name:      "concretizations_total",
		Help:      "Total abstract objects materialised",
	}, []string{"kind"})

	// ConcretizationResults observes how many graphs one concretization produced
	ConcretizationResults = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "heapshape",
		Subsystem: "shape",
		Name:      "concretization_results",
		Help:      "Number of graphs produced per concretization",
		Buckets:   []float64{1, 2, 4},
	})
)
