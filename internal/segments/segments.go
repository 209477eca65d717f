// Package segments merges scored customers back onto their raw upload rows and
// slices them into risk-group views.
package segments

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/miradorstack/churn-triage/internal/models"
	"github.com/miradorstack/churn-triage/internal/risk"
)

// ProfileFields are the attributes forwarded to strategy generation, when present.
var ProfileFields = []string{
	"customer_id", "churn_proba", "risk_tier", "risk_group",
	"age", "gender", "region", "tenure_months", "income_band", "card_grade",
	"contract_cancelled", "complaints_6m", "marketing_open_rate_6m",
	"spent_change_ratio", "recent_3m_spent", "past_3m_spent",
	"total_spent_6m", "total_txn_6m", "total_login_6m",
	"points_balance", "revolving_usage", "cash_service_usage",
}

// Builder produces segment views for a run.
type Builder struct {
	logger *slog.Logger
	topN   int
}

// NewBuilder constructs a Builder; topN bounds views when callers pass no limit.
func NewBuilder(logger *slog.Logger, topN int) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	if topN <= 0 {
		topN = 50
	}
	return &Builder{logger: logger, topN: topN}
}

// Segment returns the customers of run in group (a tier label or "Tier N"),
// highest probability first and truncated to topN, with a summary of the
// returned customers.
func (b *Builder) Segment(run models.Run, group string, topN int) (models.SegmentView, error) {
	tier, err := risk.ParseGroup(group)
	if err != nil {
		return models.SegmentView{}, err
	}
	if topN <= 0 {
		topN = b.topN
	}
	views := Filter(Merge(run), tier, topN)
	b.logger.Debug("segment built",
		slog.String("run_id", run.ID),
		slog.String("tier", tier.String()),
		slog.Int("customers", len(views)),
	)
	return models.SegmentView{
		RunID:     run.ID,
		Group:     tier.Label(),
		Tier:      tier.String(),
		Customers: views,
		Summary:   Summarize(views),
	}, nil
}

// Merge left-joins the run's scored customers with its raw rows on the id column.
// Customers without a raw row keep empty attributes.
func Merge(run models.Run) []models.CustomerView {
	raw := make(map[string]map[string]string, len(run.Raw))
	for _, row := range run.Raw {
		id := strings.TrimSpace(row[run.IDColumn])
		if _, exists := raw[id]; !exists {
			raw[id] = row
		}
	}
	out := make([]models.CustomerView, len(run.Results))
	for i, c := range run.Results {
		attrs := make(map[string]string, len(raw[c.CustomerID]))
		for k, v := range raw[c.CustomerID] {
			attrs[k] = v
		}
		out[i] = models.CustomerView{ScoredCustomer: c, Attributes: attrs}
	}
	return out
}

// Filter keeps views in tier, sorted by probability descending (stable), capped at topN.
func Filter(views []models.CustomerView, tier risk.Tier, topN int) []models.CustomerView {
	out := make([]models.CustomerView, 0, len(views))
	for _, v := range views {
		if v.RiskTier == tier.String() {
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ChurnProba > out[j].ChurnProba })
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

// Summarize counts the views and averages their probabilities to six places.
func Summarize(views []models.CustomerView) models.SegmentSummary {
	if len(views) == 0 {
		return models.SegmentSummary{}
	}
	sum := decimal.Zero
	for _, v := range views {
		sum = sum.Add(decimal.NewFromFloat(v.ChurnProba))
	}
	avg := sum.Div(decimal.NewFromInt(int64(len(views)))).Round(6).InexactFloat64()
	return models.SegmentSummary{Count: len(views), AvgChurnProba: &avg}
}

// Profile selects ProfileFields from a view. Numeric attributes become numbers
// and blank attributes become nil.
func Profile(v models.CustomerView) map[string]any {
	values := make(map[string]string, len(v.Attributes)+4)
	for k, val := range v.Attributes {
		values[k] = val
	}
	values["customer_id"] = v.CustomerID
	values["risk_tier"] = v.RiskTier
	values["risk_group"] = v.RiskGroup

	out := make(map[string]any, len(ProfileFields))
	for _, field := range ProfileFields {
		if field == "churn_proba" {
			out[field] = v.ChurnProba
			continue
		}
		raw, ok := values[field]
		if !ok {
			continue
		}
		out[field] = typed(raw)
	}
	return out
}

func typed(raw string) any {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "NaN" {
		return nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}
