package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AnswersTotal counts completed queries.
	// Labels: source (store, live)
	AnswersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finsight",
			Subsystem: "pipeline",
			Name:      "answers_total",
			Help:      "Total number of answered queries by source",
		},
		[]string{"source"},
	)

	// RoutesTotal counts interpreter route decisions.
	RoutesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finsight",
			Subsystem: "pipeline",
			Name:      "routes_total",
			Help:      "Total number of route decisions",
		},
		[]string{"route"},
	)

	// GateVerdictsTotal counts relevance gate outcomes.
	// Labels: verdict (sufficient, insufficient)
	GateVerdictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finsight",
			Subsystem: "pipeline",
			Name:      "gate_verdicts_total",
			Help:      "Total number of relevance gate verdicts",
		},
		[]string{"verdict"},
	)

	// FailuresTotal counts requests that ended in an error.
	FailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "finsight",
			Subsystem: "pipeline",
			Name:      "failures_total",
			Help:      "Total number of queries that failed with a retrieval error",
		},
	)

	// StageDuration tracks time spent in each state.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "finsight",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)
)
