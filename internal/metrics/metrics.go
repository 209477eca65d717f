package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels successful scoring runs.
	OutcomeSuccess = "success"
	// OutcomeError labels failed scoring runs (bad input or artifacts).
	OutcomeError = "error"

	// StrategyGenerated labels strategies produced by a live generator call.
	StrategyGenerated = "generated"
	// StrategyCached labels strategies served from cache.
	StrategyCached = "cached"
	// StrategyError labels failed strategy requests.
	StrategyError = "error"
)

var (
	scoringRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "churn_triage",
			Name:      "scoring_runs_total",
			Help:      "Total number of scoring runs, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	scoringDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "churn_triage",
			Name:      "scoring_seconds",
			Help:      "End-to-end scoring latency in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)

	customersScoredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "churn_triage",
			Name:      "customers_scored_total",
			Help:      "Customers scored, partitioned by risk tier.",
		},
		[]string{"tier"},
	)

	strategyRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "churn_triage",
			Name:      "strategy_requests_total",
			Help:      "Strategy generation requests, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	artifactLoadSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "churn_triage",
			Name:      "artifact_load_seconds",
			Help:      "Time spent loading the classifier and threshold artifacts.",
		},
	)
)

// Register attaches churn-triage collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		scoringRunsTotal,
		scoringDurationSeconds,
		customersScoredTotal,
		strategyRequestsTotal,
		artifactLoadSeconds,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveScoring records a scoring run duration and outcome label.
func ObserveScoring(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	scoringRunsTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	scoringDurationSeconds.Observe(duration.Seconds())
}

// ObserveTiers adds per-tier customer counts.
func ObserveTiers(counts map[string]int) {
	for tier, n := range counts {
		customersScoredTotal.WithLabelValues(tier).Add(float64(n))
	}
}

// ObserveStrategy counts a strategy request outcome.
func ObserveStrategy(outcome string) {
	switch outcome {
	case StrategyGenerated, StrategyCached:
	default:
		outcome = StrategyError
	}
	strategyRequestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveArtifactLoad records how long the one-time artifact load took.
func ObserveArtifactLoad(duration time.Duration) {
	artifactLoadSeconds.Set(duration.Seconds())
}
