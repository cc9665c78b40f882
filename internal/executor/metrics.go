package executor

import "github.com/prometheus/client_golang/prometheus"

var (
	executeRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "assessment",
			Subsystem: "executor",
			Name:      "execute_requests_total",
			Help:      "Execute calls sent to the execution service.",
		},
		[]string{"language", "outcome"},
	)
	executeDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "assessment",
			Subsystem: "executor",
			Name:      "execute_duration_seconds",
			Help:      "Execute call duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"language"},
	)
	testCasesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "assessment",
			Subsystem: "executor",
			Name:      "test_cases_total",
			Help:      "Test cases evaluated, by status.",
		},
		[]string{"language", "status"},
	)
	runsStoppedEarlyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "assessment",
			Subsystem: "executor",
			Name:      "runs_stopped_early_total",
			Help:      "Runs that stopped before the last test case because of an error.",
		},
		[]string{"language"},
	)
)

func init() {
	prometheus.MustRegister(
		executeRequestsTotal,
		executeDurationSeconds,
		testCasesTotal,
		runsStoppedEarlyTotal,
	)
}
