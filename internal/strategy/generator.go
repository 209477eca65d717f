// Package strategy generates per-customer retention strategies through an
// external text-generation model.
package strategy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/miradorstack/churn-triage/internal/cache"
	"github.com/miradorstack/churn-triage/internal/metrics"
	"github.com/miradorstack/churn-triage/internal/models"
	"github.com/miradorstack/churn-triage/internal/utils"
)

// Request describes one strategy generation.
type Request struct {
	Customer    map[string]any
	CustomerID  string
	Group       string
	Model       string
	Constraints string
	Segment     models.SegmentSummary
}

// Response carries the strategy and whether it came from cache.
type Response struct {
	Result Result `json:"result"`
	Model  string `json:"model"`
	Cached bool   `json:"cached"`
}

// Generator builds prompts, calls the model, and caches parsed strategies.
type Generator struct {
	logger *slog.Logger
	client Completer
	cache  cache.Provider
	ttl    time.Duration
	models []string
	tracer trace.Tracer
}

// NewGenerator constructs a Generator. The first entry of models is the default.
func NewGenerator(logger *slog.Logger, client Completer, provider cache.Provider, ttl time.Duration, models []string) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if provider == nil {
		provider = cache.NoopProvider{}
	}
	return &Generator{
		logger: logger,
		client: client,
		cache:  provider,
		ttl:    ttl,
		models: append([]string(nil), models...),
		tracer: otel.Tracer("github.com/miradorstack/churn-triage/internal/strategy"),
	}
}

// Models returns the allowed model names.
func (g *Generator) Models() []string {
	return append([]string(nil), g.models...)
}

// CacheKey identifies a request: customer, group, model and constraints text.
func CacheKey(req Request) string {
	return cache.StrategyPrefix + strings.Join([]string{req.CustomerID, req.Group, req.Model, req.Constraints}, "|")
}

// Generate returns a strategy for req, serving identical earlier requests from cache.
func (g *Generator) Generate(ctx context.Context, req Request) (Response, error) {
	if req.Model == "" && len(g.models) > 0 {
		req.Model = g.models[0]
	}
	if !slices.Contains(g.models, req.Model) {
		metrics.ObserveStrategy(metrics.StrategyError)
		return Response{}, utils.Validation("strategy.Generate", fmt.Sprintf("model %q is not allowed", req.Model))
	}
	if req.CustomerID == "" {
		metrics.ObserveStrategy(metrics.StrategyError)
		return Response{}, utils.Validation("strategy.Generate", "customer id is required")
	}

	ctx, span := g.tracer.Start(ctx, "strategy.Generate", trace.WithAttributes(
		attribute.String("model", req.Model),
		attribute.String("group", req.Group),
	))
	defer span.End()

	key := CacheKey(req)
	if cached, ok := g.lookup(ctx, key); ok {
		metrics.ObserveStrategy(metrics.StrategyCached)
		span.SetAttributes(attribute.Bool("cached", true))
		return Response{Result: cached, Model: req.Model, Cached: true}, nil
	}

	result, err := g.generate(ctx, req)
	if err != nil {
		metrics.ObserveStrategy(metrics.StrategyError)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Response{}, err
	}
	metrics.ObserveStrategy(metrics.StrategyGenerated)
	g.store(ctx, key, result)
	return Response{Result: result, Model: req.Model}, nil
}

func (g *Generator) generate(ctx context.Context, req Request) (Result, error) {
	if g.client == nil {
		return Result{}, utils.External("strategy.Generate", "no generator client configured", nil)
	}
	prompt := BuildPrompt(req.Customer, req.Constraints, req.Segment)
	start := time.Now()
	text, err := g.client.Complete(ctx, req.Model, prompt)
	if err != nil {
		if !errors.Is(err, utils.ErrExternalService) {
			err = utils.External("strategy.Generate", "call generator", err)
		}
		return Result{}, err
	}
	result, err := Parse(text)
	if err != nil {
		g.logger.Warn("unparseable strategy output",
			slog.String("customer_id", req.CustomerID),
			slog.String("model", req.Model),
			slog.Int("length", len(text)),
		)
		return Result{}, err
	}
	g.logger.Info("strategy generated",
		slog.String("customer_id", req.CustomerID),
		slog.String("model", req.Model),
		slog.Duration("took", time.Since(start)),
	)
	return result, nil
}

func (g *Generator) lookup(ctx context.Context, key string) (Result, bool) {
	data, err := g.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			g.logger.Warn("strategy cache read failed", slog.Any("error", err))
		}
		return Result{}, false
	}
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		g.logger.Warn("discarding corrupt strategy cache entry", slog.Any("error", err))
		_ = g.cache.Del(ctx, key)
		return Result{}, false
	}
	return result, true
}

func (g *Generator) store(ctx context.Context, key string, result Result) {
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := g.cache.Set(ctx, key, data, g.ttl); err != nil {
		g.logger.Warn("strategy cache write failed", slog.Any("error", err))
	}
}
