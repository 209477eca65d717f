package models

import (
	"time"

	"github.com/miradorstack/churn-triage/internal/risk"
)

// ScoredCustomer is one row of a scored result table.
type ScoredCustomer struct {
	CustomerID string  `json:"customer_id"`
	ChurnProba float64 `json:"churn_proba"`
	RiskTier   string  `json:"risk_tier"`
	RiskGroup  string  `json:"risk_group"`
}

// ScoredTable is the pipeline's output: customers sorted by churn probability, highest first.
type ScoredTable struct {
	IDColumn   string           `json:"id_column"`
	Thresholds risk.Thresholds  `json:"thresholds"`
	Customers  []ScoredCustomer `json:"customers"`
}

// TierCounts counts customers per tier name.
func (t ScoredTable) TierCounts() map[string]int {
	counts := make(map[string]int, len(risk.Tiers))
	for _, tier := range risk.Tiers {
		counts[tier.String()] = 0
	}
	for _, c := range t.Customers {
		counts[c.RiskTier]++
	}
	return counts
}

// Run is a persisted scoring run: the scored table plus the raw upload rows.
type Run struct {
	ID         string              `json:"id"`
	CreatedAt  time.Time           `json:"created_at"`
	SourceName string              `json:"source_name,omitempty"`
	IDColumn   string              `json:"id_column"`
	Thresholds risk.Thresholds     `json:"thresholds"`
	Results    []ScoredCustomer    `json:"results"`
	Raw        []map[string]string `json:"-"`
}

// RunSummary is the compact view of a run used in listings and events.
type RunSummary struct {
	ID         string          `json:"id"`
	CreatedAt  time.Time       `json:"created_at"`
	SourceName string          `json:"source_name,omitempty"`
	RowCount   int             `json:"row_count"`
	Thresholds risk.Thresholds `json:"thresholds"`
	TierCounts map[string]int  `json:"tier_counts"`
}

// Summary condenses the run.
func (r Run) Summary() RunSummary {
	table := ScoredTable{Customers: r.Results}
	return RunSummary{
		ID:         r.ID,
		CreatedAt:  r.CreatedAt,
		SourceName: r.SourceName,
		RowCount:   len(r.Results),
		Thresholds: r.Thresholds,
		TierCounts: table.TierCounts(),
	}
}

// Customer looks up a scored customer by id.
func (r Run) Customer(id string) (ScoredCustomer, bool) {
	for _, c := range r.Results {
		if c.CustomerID == id {
			return c, true
		}
	}
	return ScoredCustomer{}, false
}
