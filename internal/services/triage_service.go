package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/google/uuid"

	"github.com/miradorstack/churn-triage/internal/classifier"
	"github.com/miradorstack/churn-triage/internal/events"
	"github.com/miradorstack/churn-triage/internal/ingest"
	"github.com/miradorstack/churn-triage/internal/metrics"
	"github.com/miradorstack/churn-triage/internal/models"
	"github.com/miradorstack/churn-triage/internal/repo"
	"github.com/miradorstack/churn-triage/internal/risk"
	"github.com/miradorstack/churn-triage/internal/segments"
	"github.com/miradorstack/churn-triage/internal/strategy"
	"github.com/miradorstack/churn-triage/internal/utils"
)

// Scorer runs the scoring pipeline.
type Scorer interface {
	Run(ctx context.Context, raw dataframe.DataFrame, idColumn string) (models.ScoredTable, error)
}

// ArtifactHolder exposes the loaded artifacts and their readiness.
type ArtifactHolder interface {
	Load() (classifier.Artifacts, error)
	Ready() bool
}

// StrategyGenerator produces retention strategies.
type StrategyGenerator interface {
	Generate(ctx context.Context, req strategy.Request) (strategy.Response, error)
	Models() []string
}

// Options carries the service tunables taken from config.
type Options struct {
	IDColumn     string
	TopN         int
	StrategyTopN int
}

// ThresholdInfo describes the active tier boundaries.
type ThresholdInfo struct {
	Thresholds risk.Thresholds `json:"thresholds"`
	Strategy   risk.Strategy   `json:"strategy"`
	Tiers      []TierInfo      `json:"tiers"`
}

// TierInfo names one tier.
type TierInfo struct {
	Tier  string `json:"tier"`
	Label string `json:"label"`
}

// StrategyInput is a strategy request against a stored run.
type StrategyInput struct {
	RunID       string `json:"run_id"`
	CustomerID  string `json:"customer_id"`
	Group       string `json:"group"`
	Model       string `json:"model"`
	Constraints string `json:"constraints"`
}

// TriageService ties scoring, persistence, segmentation and strategy generation together.
type TriageService struct {
	logger    *slog.Logger
	scorer    Scorer
	artifacts ArtifactHolder
	store     repo.Store
	publisher events.Publisher
	generator StrategyGenerator
	segments  *segments.Builder
	opts      Options
	latencies *utils.LatencyTracker
	now       func() time.Time
	newID     func() string
}

// NewTriageService constructs the service facade. A nil publisher disables events.
func NewTriageService(
	logger *slog.Logger,
	scorer Scorer,
	artifacts ArtifactHolder,
	store repo.Store,
	publisher events.Publisher,
	generator StrategyGenerator,
	opts Options,
) *TriageService {
	if logger == nil {
		logger = slog.Default()
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if opts.IDColumn == "" {
		opts.IDColumn = "customer_id"
	}
	if opts.StrategyTopN <= 0 {
		opts.StrategyTopN = 300
	}
	return &TriageService{
		logger:    logger,
		scorer:    scorer,
		artifacts: artifacts,
		store:     store,
		publisher: publisher,
		generator: generator,
		segments:  segments.NewBuilder(logger, opts.TopN),
		opts:      opts,
		latencies: utils.NewLatencyTracker(1024),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// ScoreUpload scores df, persists the run and announces it.
// An empty idColumn falls back to the configured default.
func (s *TriageService) ScoreUpload(ctx context.Context, df dataframe.DataFrame, idColumn, sourceName string) (models.Run, error) {
	if idColumn = strings.TrimSpace(idColumn); idColumn == "" {
		idColumn = s.opts.IDColumn
	}

	start := time.Now()
	table, err := s.scorer.Run(ctx, df, idColumn)
	duration := time.Since(start)
	if err != nil {
		metrics.ObserveScoring(duration, metrics.OutcomeError)
		s.logger.Warn("scoring failed", slog.String("id_column", idColumn), slog.Any("error", err))
		return models.Run{}, err
	}
	metrics.ObserveScoring(duration, metrics.OutcomeSuccess)
	counts := table.TierCounts()
	metrics.ObserveTiers(counts)

	s.latencies.Observe(duration)
	if total := s.latencies.Total(); total%20 == 0 {
		s.logger.Info("scoring latency",
			slog.Duration("p95", s.latencies.Percentile(95)),
			slog.Int("samples", s.latencies.Count()),
		)
	}

	run := models.Run{
		ID:         s.newID(),
		CreatedAt:  s.now().UTC(),
		SourceName: sourceName,
		IDColumn:   idColumn,
		Thresholds: table.Thresholds,
		Results:    table.Customers,
		Raw:        ingest.Rows(df),
	}
	if err := s.store.SaveRun(ctx, run); err != nil {
		return models.Run{}, err
	}

	summary := run.Summary()
	if err := s.publisher.PublishRunScored(ctx, summary); err != nil {
		s.logger.Warn("publish run event failed", slog.String("run_id", run.ID), slog.Any("error", err))
	}

	s.logger.Info("run scored",
		slog.String("run_id", run.ID),
		slog.Int("rows", len(run.Results)),
		slog.Any("tiers", counts),
		slog.Duration("took", duration),
	)
	return run, nil
}

// Run returns a stored run.
func (s *TriageService) Run(ctx context.Context, id string) (models.Run, error) {
	if strings.TrimSpace(id) == "" {
		return models.Run{}, utils.Validation("services.Run", "run id is required")
	}
	return s.store.GetRun(ctx, id)
}

// LatestRun returns the most recently stored run.
func (s *TriageService) LatestRun(ctx context.Context) (models.Run, error) {
	return s.store.LatestRun(ctx)
}

// ListRuns returns summaries of recent runs, newest first.
func (s *TriageService) ListRuns(ctx context.Context, limit int) ([]models.RunSummary, error) {
	return s.store.ListRuns(ctx, limit)
}

// Segment returns the customers of one risk group in a stored run.
func (s *TriageService) Segment(ctx context.Context, runID, group string, topN int) (models.SegmentView, error) {
	run, err := s.Run(ctx, runID)
	if err != nil {
		return models.SegmentView{}, err
	}
	return s.segments.Segment(run, group, topN)
}

// Strategy generates a retention strategy for one customer of a stored run.
// The group defaults to the customer's own risk group.
func (s *TriageService) Strategy(ctx context.Context, in StrategyInput) (strategy.Response, error) {
	if s.generator == nil {
		return strategy.Response{}, utils.External("services.Strategy", "strategy generation is not configured", nil)
	}
	run, err := s.Run(ctx, in.RunID)
	if err != nil {
		return strategy.Response{}, err
	}
	customerID := strings.TrimSpace(in.CustomerID)
	if customerID == "" {
		return strategy.Response{}, utils.Validation("services.Strategy", "customer id is required")
	}

	var view *models.CustomerView
	views := segments.Merge(run)
	for i := range views {
		if views[i].CustomerID == customerID {
			view = &views[i]
			break
		}
	}
	if view == nil {
		return strategy.Response{}, utils.NotFound("services.Strategy", "customer "+customerID+" is not in run "+run.ID)
	}

	group := strings.TrimSpace(in.Group)
	if group == "" {
		group = view.RiskGroup
	}
	seg, err := s.segments.Segment(run, group, s.opts.StrategyTopN)
	if err != nil {
		return strategy.Response{}, err
	}

	return s.generator.Generate(ctx, strategy.Request{
		Customer:    segments.Profile(*view),
		CustomerID:  customerID,
		Group:       seg.Group,
		Model:       in.Model,
		Constraints: in.Constraints,
		Segment:     seg.Summary,
	})
}

// Models lists the text-generation models a strategy request may name.
func (s *TriageService) Models() []string {
	if s.generator == nil {
		return nil
	}
	return s.generator.Models()
}

// Thresholds returns the active tier boundaries, loading artifacts if needed.
func (s *TriageService) Thresholds() (ThresholdInfo, error) {
	a, err := s.artifacts.Load()
	if err != nil {
		return ThresholdInfo{}, err
	}
	tiers := make([]TierInfo, 0, len(risk.Tiers))
	for _, t := range risk.Tiers {
		tiers = append(tiers, TierInfo{Tier: t.String(), Label: t.Label()})
	}
	return ThresholdInfo{Thresholds: a.Thresholds, Strategy: a.ThresholdStrategy, Tiers: tiers}, nil
}

// Ready reports whether artifacts are loaded and the store answers.
func (s *TriageService) Ready(ctx context.Context) error {
	if !s.artifacts.Ready() {
		return utils.Artifact("services.Ready", "artifacts not loaded", nil)
	}
	return s.store.Ping(ctx)
}

// LatencyP95 exposes the recent p95 scoring latency.
func (s *TriageService) LatencyP95() time.Duration {
	return s.latencies.Percentile(95)
}
