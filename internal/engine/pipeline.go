package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/miradorstack/churn-triage/internal/classifier"
	"github.com/miradorstack/churn-triage/internal/features"
	"github.com/miradorstack/churn-triage/internal/models"
	"github.com/miradorstack/churn-triage/internal/risk"
	"github.com/miradorstack/churn-triage/internal/utils"
)

// probabilityPlaces is the number of decimals kept in published probabilities.
const probabilityPlaces = 6

// ArtifactSource supplies the loaded classifier bundle.
type ArtifactSource interface {
	Load() (classifier.Artifacts, error)
}

// Pipeline turns a raw customer table into a scored, tiered, sorted result table.
type Pipeline struct {
	logger    *slog.Logger
	artifacts ArtifactSource
	schema    features.Schema
	tracer    trace.Tracer
}

// NewPipeline constructs a scoring pipeline.
func NewPipeline(logger *slog.Logger, artifacts ArtifactSource, schema features.Schema) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		logger:    logger,
		artifacts: artifacts,
		schema:    schema,
		tracer:    otel.Tracer("github.com/miradorstack/churn-triage/internal/engine"),
	}
}

// Run scores every row of raw. It fails with a validation error on an empty
// table, a missing identifier column, or blank or duplicate identifiers.
func (p *Pipeline) Run(ctx context.Context, raw dataframe.DataFrame, idColumn string) (models.ScoredTable, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.Run", trace.WithAttributes(
		attribute.String("id_column", idColumn),
		attribute.Int("rows", raw.Nrow()),
	))
	defer span.End()

	table, err := p.run(ctx, raw, idColumn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return models.ScoredTable{}, err
	}
	span.SetAttributes(attribute.Int("scored", len(table.Customers)))
	return table, nil
}

func (p *Pipeline) run(ctx context.Context, raw dataframe.DataFrame, idColumn string) (models.ScoredTable, error) {
	if err := validateInput(raw, idColumn); err != nil {
		return models.ScoredTable{}, err
	}
	if err := validateIDs(raw.Col(idColumn).Records(), idColumn); err != nil {
		return models.ScoredTable{}, err
	}
	if p.artifacts == nil {
		return models.ScoredTable{}, utils.Artifact("engine.Run", "artifact source not configured", nil)
	}
	artifacts, err := p.artifacts.Load()
	if err != nil {
		return models.ScoredTable{}, err
	}

	var (
		reconciled, derived, encoded dataframe.DataFrame
		matrix                       features.Matrix
		probabilities                []float64
	)
	err = p.stage(ctx, "reconcile", func() (err error) {
		reconciled, err = features.Reconcile(raw, p.schema, idColumn)
		return err
	})
	if err != nil {
		return models.ScoredTable{}, err
	}
	ids := reconciled.Col(idColumn).Records()

	if err = p.stage(ctx, "derive", func() (err error) {
		derived, err = features.Derive(reconciled)
		return err
	}); err != nil {
		return models.ScoredTable{}, err
	}
	if err = p.stage(ctx, "encode", func() (err error) {
		encoded, err = features.Encode(derived, p.schema.Categorical)
		return err
	}); err != nil {
		return models.ScoredTable{}, err
	}
	if err = p.stage(ctx, "align", func() error {
		matrix = features.Align(encoded, artifacts.FeatureSchema)
		return nil
	}); err != nil {
		return models.ScoredTable{}, err
	}
	if err = p.stage(ctx, "score", func() (err error) {
		probabilities, err = classifier.Score(artifacts.Classifier, matrix)
		return err
	}); err != nil {
		return models.ScoredTable{}, err
	}

	customers := make([]models.ScoredCustomer, len(ids))
	for i, id := range ids {
		tier := risk.Classify(probabilities[i], artifacts.Thresholds)
		customers[i] = models.ScoredCustomer{
			CustomerID: id,
			ChurnProba: round(probabilities[i]),
			RiskTier:   tier.String(),
			RiskGroup:  tier.Label(),
		}
	}
	sort.SliceStable(customers, func(i, j int) bool {
		return customers[i].ChurnProba > customers[j].ChurnProba
	})

	table := models.ScoredTable{
		IDColumn:   idColumn,
		Thresholds: artifacts.Thresholds,
		Customers:  customers,
	}
	p.logger.Debug("pipeline complete",
		slog.Int("rows", len(customers)),
		slog.Int("encoded_columns", encoded.Ncol()),
		slog.Int("model_features", len(matrix.Columns)),
	)
	return table, nil
}

func (p *Pipeline) stage(ctx context.Context, name string, fn func() error) error {
	_, span := p.tracer.Start(ctx, "pipeline."+name)
	defer span.End()
	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		return err
	}
	if err := fn(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func validateInput(raw dataframe.DataFrame, idColumn string) error {
	if raw.Err != nil {
		return utils.NewAppError(utils.ErrValidation, "engine.Run", "invalid input table", raw.Err)
	}
	if strings.TrimSpace(idColumn) == "" {
		return utils.Validation("engine.Run", "identifier column name is empty")
	}
	if raw.Nrow() == 0 {
		return utils.Validation("engine.Run", "input table has no rows")
	}
	for _, name := range raw.Names() {
		if name == idColumn {
			return nil
		}
	}
	return utils.Validation("engine.Run", fmt.Sprintf("identifier column %q is missing", idColumn))
}

func validateIDs(ids []string, idColumn string) error {
	seen := make(map[string]int, len(ids))
	for i, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || id == "NaN" {
			return utils.Validation("engine.Run", fmt.Sprintf("row %d has an empty %s", i+1, idColumn))
		}
		if first, dup := seen[id]; dup {
			return utils.Validation("engine.Run", fmt.Sprintf("%s %q appears in rows %d and %d", idColumn, id, first+1, i+1))
		}
		seen[id] = i
	}
	return nil
}

func round(p float64) float64 {
	return decimal.NewFromFloat(p).Round(probabilityPlaces).InexactFloat64()
}
