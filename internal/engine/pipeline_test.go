package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/miradorstack/churn-triage/internal/classifier"
	"github.com/miradorstack/churn-triage/internal/config"
	"github.com/miradorstack/churn-triage/internal/features"
	"github.com/miradorstack/churn-triage/internal/risk"
	"github.com/miradorstack/churn-triage/internal/utils"
)

type fakeEstimator struct {
	proba [][]float64
	seen  [][]float64
}

func (f *fakeEstimator) PredictProba(rows [][]float64) ([][]float64, error) {
	f.seen = rows
	return f.proba, nil
}

type fakeArtifacts struct {
	artifacts classifier.Artifacts
	err       error
	calls     int
}

func (f *fakeArtifacts) Load() (classifier.Artifacts, error) {
	f.calls++
	return f.artifacts, f.err
}

var defaultThresholds = risk.Thresholds{T90: 0.5, T95: 0.8, T99: 0.95}

func newTestPipeline(est *fakeEstimator, schema []string) (*Pipeline, *fakeArtifacts) {
	src := &fakeArtifacts{artifacts: classifier.Artifacts{
		Classifier:    est,
		Thresholds:    defaultThresholds,
		FeatureSchema: schema,
	}}
	fs := features.NewSchema(config.DefaultNumericFeatures, config.DefaultCategoricalFeatures)
	return NewPipeline(nil, src, fs), src
}

func loadTable(t *testing.T, records [][]string) dataframe.DataFrame {
	t.Helper()
	df := dataframe.LoadRecords(records,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.HasHeader(true),
	)
	if df.Err != nil {
		t.Fatalf("load records: %v", df.Err)
	}
	return df
}

func TestPipelineRoundTrip(t *testing.T) {
	raw := loadTable(t, [][]string{
		{"customer_id", "spent_m1", "spent_m2", "spent_m3", "spent_m4", "spent_m5", "spent_m6", "gender", "region", "income_band", "card_grade"},
		{"A", "10", "10", "10", "10", "10", "10", "M", "Seoul", "high", "gold"},
		{"B", "0", "0", "0", "0", "0", "0", "F", "Busan", "low", "basic"},
	})
	est := &fakeEstimator{proba: [][]float64{{0.08, 0.92}, {0.60, 0.40}}}
	pipeline, _ := newTestPipeline(est, []string{"spent_change_ratio", "gender_M", "region_Jeju"})

	table, err := pipeline.Run(context.Background(), raw, "customer_id")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(table.Customers) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(table.Customers))
	}
	first, second := table.Customers[0], table.Customers[1]
	if first.CustomerID != "A" || second.CustomerID != "B" {
		t.Fatalf("expected A before B, got %s, %s", first.CustomerID, second.CustomerID)
	}
	if first.RiskTier != "Tier 2" || first.RiskGroup != "고위험" {
		t.Fatalf("unexpected tier for A: %+v", first)
	}
	if second.RiskTier != "Tier 4" || second.RiskGroup != "안정" {
		t.Fatalf("unexpected tier for B: %+v", second)
	}
	if table.Thresholds != defaultThresholds {
		t.Fatalf("unexpected thresholds: %+v", table.Thresholds)
	}

	// the scorer sees exactly the model schema
	want := [][]float64{{30.0 / 31.0, 1, 0}, {0, 0, 0}}
	for i := range want {
		for j := range want[i] {
			if est.seen[i][j] != want[i][j] {
				t.Fatalf("matrix[%d][%d] = %v, want %v", i, j, est.seen[i][j], want[i][j])
			}
		}
	}
}

func TestPipelineSortIsStable(t *testing.T) {
	raw := loadTable(t, [][]string{{"customer_id"}, {"a"}, {"b"}, {"c"}, {"d"}})
	est := &fakeEstimator{proba: [][]float64{{0.3}, {0.7}, {0.3}, {0.7}}}
	pipeline, _ := newTestPipeline(est, []string{"age"})

	table, err := pipeline.Run(context.Background(), raw, "customer_id")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	order := ""
	for _, c := range table.Customers {
		order += c.CustomerID
	}
	if order != "bdac" {
		t.Fatalf("expected stable order bdac, got %s", order)
	}
}

func TestPipelineRoundsAfterThresholding(t *testing.T) {
	raw := loadTable(t, [][]string{{"customer_id"}, {"x"}, {"y"}})
	est := &fakeEstimator{proba: [][]float64{{0.49999994}, {0.123456789}}}
	pipeline, src := newTestPipeline(est, []string{"age"})
	src.artifacts.Thresholds = risk.Thresholds{T90: 0.49999995, T95: 0.8, T99: 0.95}

	table, err := pipeline.Run(context.Background(), raw, "customer_id")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	top := table.Customers[0]
	if top.ChurnProba != 0.5 {
		t.Fatalf("expected rounded 0.5, got %v", top.ChurnProba)
	}
	if top.RiskTier != "Tier 4" {
		t.Fatalf("expected thresholding on full precision (Tier 4), got %s", top.RiskTier)
	}
	if table.Customers[1].ChurnProba != 0.123457 {
		t.Fatalf("expected 0.123457, got %v", table.Customers[1].ChurnProba)
	}
}

func TestPipelineValidation(t *testing.T) {
	est := &fakeEstimator{proba: [][]float64{{0.1}, {0.2}}}
	pipeline, src := newTestPipeline(est, []string{"age"})

	tests := []struct {
		name    string
		records [][]string
		id      string
	}{
		{"missing id column", [][]string{{"spent_m1"}, {"1"}}, "customer_id"},
		{"empty table", [][]string{{"customer_id"}}, "customer_id"},
		{"blank id", [][]string{{"customer_id"}, {"A"}, {" "}}, "customer_id"},
		{"duplicate id", [][]string{{"customer_id"}, {"A"}, {"A"}}, "customer_id"},
		{"empty id name", [][]string{{"customer_id"}, {"A"}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			df := dataframe.LoadRecords(tt.records, dataframe.DetectTypes(false), dataframe.DefaultType(series.String))
			table, err := pipeline.Run(context.Background(), df, tt.id)
			if !errors.Is(err, utils.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if len(table.Customers) != 0 {
				t.Fatalf("expected no rows on failure")
			}
		})
	}
	if src.calls != 0 {
		t.Fatalf("expected artifacts untouched for invalid input, got %d loads", src.calls)
	}
}

func TestPipelinePropagatesArtifactErrors(t *testing.T) {
	pipeline, src := newTestPipeline(&fakeEstimator{}, nil)
	src.err = utils.Artifact("classifier.Load", "broken", nil)

	_, err := pipeline.Run(context.Background(), loadTable(t, [][]string{{"customer_id"}, {"A"}}), "customer_id")
	if !errors.Is(err, utils.ErrArtifact) {
		t.Fatalf("expected artifact error, got %v", err)
	}
}

func TestPipelineStopsOnCancelledContext(t *testing.T) {
	est := &fakeEstimator{proba: [][]float64{{0.1, 0.9}}}
	pipeline, _ := newTestPipeline(est, []string{"age"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pipeline.Run(ctx, loadTable(t, [][]string{{"customer_id", "age"}, {"A", "30"}}), "customer_id")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if est.seen != nil {
		t.Fatalf("estimator should not run after cancellation, saw %v", est.seen)
	}
}
