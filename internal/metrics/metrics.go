package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrbuddy_turns_total",
			Help: "Total number of conversation turns processed",
		},
		[]string{"intent", "status"},
	)

	OracleCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrbuddy_oracle_calls_total",
			Help: "Total number of NLU oracle calls by outcome",
		},
		[]string{"outcome"},
	)

	OracleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hrbuddy_oracle_duration_seconds",
			Help:    "Duration of NLU oracle calls in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
		},
	)

	StateConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hrbuddy_state_conflicts_total",
			Help: "Total number of conversation state write conflicts",
		},
	)

	FallbackFills = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrbuddy_fallback_fills_total",
			Help: "Total number of slots filled by deterministic extractors",
		},
		[]string{"extractor"},
	)

	IntentOverrides = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrbuddy_intent_overrides_total",
			Help: "Total number of oracle intents overridden by a pre-filter policy",
		},
		[]string{"policy"},
	)
)

// Oracle call outcomes
const (
	OutcomeOK      = "ok"
	OutcomeTimeout = "timeout"
	OutcomeFailed  = "failed"
	OutcomeParse   = "parse_error"
)
