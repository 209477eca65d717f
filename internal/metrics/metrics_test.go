package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterTwiceIsTolerated(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register: %v", err)
	}
}

func TestObserveScoringNormalisesOutcome(t *testing.T) {
	before := testutil.ToFloat64(scoringRunsTotal.WithLabelValues(OutcomeSuccess))
	ObserveScoring(-time.Second, "weird")
	after := testutil.ToFloat64(scoringRunsTotal.WithLabelValues(OutcomeSuccess))
	if after-before != 1 {
		t.Fatalf("expected success counter to increase by 1, got %v", after-before)
	}
}

func TestObserveStrategyUnknownIsError(t *testing.T) {
	before := testutil.ToFloat64(strategyRequestsTotal.WithLabelValues(StrategyError))
	ObserveStrategy("timeout")
	if got := testutil.ToFloat64(strategyRequestsTotal.WithLabelValues(StrategyError)) - before; got != 1 {
		t.Fatalf("expected error counter increment, got %v", got)
	}
}

func TestObserveTiers(t *testing.T) {
	before := testutil.ToFloat64(customersScoredTotal.WithLabelValues("Tier 1"))
	ObserveTiers(map[string]int{"Tier 1": 3})
	if got := testutil.ToFloat64(customersScoredTotal.WithLabelValues("Tier 1")) - before; got != 3 {
		t.Fatalf("expected +3, got %v", got)
	}
}
