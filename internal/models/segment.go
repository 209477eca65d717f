package models

// CustomerView is a scored customer merged with its raw upload attributes.
type CustomerView struct {
	ScoredCustomer
	Attributes map[string]string `json:"attributes"`
}

// SegmentSummary aggregates a filtered segment. AvgChurnProba is nil for an empty segment.
type SegmentSummary struct {
	Count         int      `json:"count"`
	AvgChurnProba *float64 `json:"avg_churn_proba"`
}

// SegmentView is the payload returned when browsing a risk group.
type SegmentView struct {
	RunID     string         `json:"run_id"`
	Group     string         `json:"group"`
	Tier      string         `json:"tier"`
	Customers []CustomerView `json:"customers"`
	Summary   SegmentSummary `json:"summary"`
}
