package services

import (
	"context"
	"errors"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/miradorstack/churn-triage/internal/classifier"
	"github.com/miradorstack/churn-triage/internal/models"
	"github.com/miradorstack/churn-triage/internal/repo"
	"github.com/miradorstack/churn-triage/internal/risk"
	"github.com/miradorstack/churn-triage/internal/strategy"
	"github.com/miradorstack/churn-triage/internal/utils"
)

var testThresholds = risk.Thresholds{T90: 0.5, T95: 0.8, T99: 0.95}

type scorerStub struct {
	table    models.ScoredTable
	err      error
	idColumn string
}

func (s *scorerStub) Run(_ context.Context, _ dataframe.DataFrame, idColumn string) (models.ScoredTable, error) {
	s.idColumn = idColumn
	return s.table, s.err
}

type artifactsStub struct {
	ready bool
}

func (a *artifactsStub) Load() (classifier.Artifacts, error) {
	return classifier.Artifacts{Thresholds: testThresholds, ThresholdStrategy: risk.StrategyLabeled}, nil
}

func (a *artifactsStub) Ready() bool { return a.ready }

type publisherStub struct {
	published []models.RunSummary
	err       error
}

func (p *publisherStub) PublishRunScored(_ context.Context, summary models.RunSummary) error {
	p.published = append(p.published, summary)
	return p.err
}

func (p *publisherStub) Close() error { return nil }

type generatorStub struct {
	last strategy.Request
}

func (g *generatorStub) Generate(_ context.Context, req strategy.Request) (strategy.Response, error) {
	g.last = req
	return strategy.Response{Model: "gpt-4.1-mini"}, nil
}

func (g *generatorStub) Models() []string { return []string{"gpt-4.1-mini"} }

func uploadFrame(t *testing.T) dataframe.DataFrame {
	t.Helper()
	df := dataframe.LoadRecords([][]string{
		{"customer_id", "age", "region"},
		{"A", "41", "Seoul"},
		{"B", "29", "Busan"},
		{"C", "35", ""},
	}, dataframe.DetectTypes(false), dataframe.DefaultType(series.String), dataframe.HasHeader(true))
	if df.Err != nil {
		t.Fatalf("load records: %v", df.Err)
	}
	return df
}

func scoredTable() models.ScoredTable {
	return models.ScoredTable{
		IDColumn:   "customer_id",
		Thresholds: testThresholds,
		Customers: []models.ScoredCustomer{
			{CustomerID: "A", ChurnProba: 0.97, RiskTier: "Tier 1", RiskGroup: risk.TierImminent.Label()},
			{CustomerID: "C", ChurnProba: 0.96, RiskTier: "Tier 1", RiskGroup: risk.TierImminent.Label()},
			{CustomerID: "B", ChurnProba: 0.2, RiskTier: "Tier 4", RiskGroup: risk.TierStable.Label()},
		},
	}
}

func newTestService(scorer Scorer, publisher *publisherStub, generator StrategyGenerator) (*TriageService, *repo.MemoryStore) {
	store := repo.NewMemoryStore()
	svc := NewTriageService(nil, scorer, &artifactsStub{ready: true}, store, publisher, generator, Options{IDColumn: "customer_id"})
	svc.newID = func() string { return "run-1" }
	return svc, store
}

func TestScoreUploadStoresAndPublishes(t *testing.T) {
	scorer := &scorerStub{table: scoredTable()}
	pub := &publisherStub{}
	svc, store := newTestService(scorer, pub, nil)

	run, err := svc.ScoreUpload(context.Background(), uploadFrame(t), "", "march.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scorer.idColumn != "customer_id" {
		t.Fatalf("expected default id column, got %q", scorer.idColumn)
	}
	if run.ID != "run-1" || len(run.Results) != 3 || len(run.Raw) != 3 {
		t.Fatalf("unexpected run: %+v", run)
	}

	stored, err := store.LatestRun(context.Background())
	if err != nil || stored.ID != "run-1" {
		t.Fatalf("expected stored run, got %+v (%v)", stored, err)
	}
	if len(pub.published) != 1 || pub.published[0].TierCounts["Tier 1"] != 2 {
		t.Fatalf("expected one event with two Tier 1 customers, got %+v", pub.published)
	}
}

func TestScoreUploadSurvivesPublishFailure(t *testing.T) {
	pub := &publisherStub{err: errors.New("broker down")}
	svc, _ := newTestService(&scorerStub{table: scoredTable()}, pub, nil)

	if _, err := svc.ScoreUpload(context.Background(), uploadFrame(t), "customer_id", ""); err != nil {
		t.Fatalf("publish failure must not fail the run: %v", err)
	}
}

func TestScoreUploadPropagatesScoringErrors(t *testing.T) {
	scorer := &scorerStub{err: utils.Validation("engine.Run", "empty table")}
	svc, store := newTestService(scorer, &publisherStub{}, nil)

	_, err := svc.ScoreUpload(context.Background(), uploadFrame(t), "customer_id", "")
	if !errors.Is(err, utils.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := store.LatestRun(context.Background()); !errors.Is(err, utils.ErrNotFound) {
		t.Fatalf("expected nothing stored, got %v", err)
	}
}

func TestSegment(t *testing.T) {
	svc, _ := newTestService(&scorerStub{table: scoredTable()}, &publisherStub{}, nil)
	if _, err := svc.ScoreUpload(context.Background(), uploadFrame(t), "", ""); err != nil {
		t.Fatalf("score: %v", err)
	}

	view, err := svc.Segment(context.Background(), "run-1", "Tier 1", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(view.Customers) != 1 || view.Customers[0].CustomerID != "A" {
		t.Fatalf("expected top customer A, got %+v", view.Customers)
	}
	if view.Customers[0].Attributes["region"] != "Seoul" {
		t.Fatalf("expected raw attributes merged, got %+v", view.Customers[0].Attributes)
	}

	if _, err := svc.Segment(context.Background(), "run-1", "저위험", 0); !errors.Is(err, utils.ErrValidation) {
		t.Fatalf("expected validation error for unknown group, got %v", err)
	}
	if _, err := svc.Segment(context.Background(), "missing", "Tier 1", 0); !errors.Is(err, utils.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStrategyUsesCustomerProfileAndSegment(t *testing.T) {
	gen := &generatorStub{}
	svc, _ := newTestService(&scorerStub{table: scoredTable()}, &publisherStub{}, gen)
	if _, err := svc.ScoreUpload(context.Background(), uploadFrame(t), "", ""); err != nil {
		t.Fatalf("score: %v", err)
	}

	if _, err := svc.Strategy(context.Background(), StrategyInput{RunID: "run-1", CustomerID: "C", Constraints: "no discounts"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen.last.CustomerID != "C" || gen.last.Group != risk.TierImminent.Label() {
		t.Fatalf("unexpected request: %+v", gen.last)
	}
	if gen.last.Segment.Count != 2 {
		t.Fatalf("expected segment of 2, got %+v", gen.last.Segment)
	}
	if gen.last.Customer["region"] != nil {
		t.Fatalf("expected blank region to be nil, got %v", gen.last.Customer["region"])
	}
	if gen.last.Customer["age"] != 35.0 {
		t.Fatalf("expected numeric age, got %v", gen.last.Customer["age"])
	}

	if _, err := svc.Strategy(context.Background(), StrategyInput{RunID: "run-1", CustomerID: "Z"}); !errors.Is(err, utils.ErrNotFound) {
		t.Fatalf("expected not found for unknown customer, got %v", err)
	}
}

func TestThresholdsAndReady(t *testing.T) {
	svc, _ := newTestService(&scorerStub{}, &publisherStub{}, nil)

	info, err := svc.Thresholds()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Thresholds != testThresholds || len(info.Tiers) != 4 {
		t.Fatalf("unexpected thresholds: %+v", info)
	}
	if err := svc.Ready(context.Background()); err != nil {
		t.Fatalf("expected ready, got %v", err)
	}

	svc.artifacts = &artifactsStub{ready: false}
	if err := svc.Ready(context.Background()); !errors.Is(err, utils.ErrArtifact) {
		t.Fatalf("expected artifact error, got %v", err)
	}
}
