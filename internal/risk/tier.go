package risk

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/miradorstack/churn-triage/internal/utils"
)

// Tier is an ordinal churn severity bucket. Tier 1 is the most severe.
type Tier int

const (
	TierImminent Tier = iota + 1
	TierHigh
	TierMedium
	TierStable
)

// Tiers lists every tier from most to least severe.
var Tiers = []Tier{TierImminent, TierHigh, TierMedium, TierStable}

var labels = map[Tier]string{
	TierImminent: "즉시 이탈 위험",
	TierHigh:     "고위험",
	TierMedium:   "중위험",
	TierStable:   "안정",
}

// String returns the tier name, e.g. "Tier 2".
func (t Tier) String() string {
	return "Tier " + strconv.Itoa(int(t))
}

// Label returns the human-readable risk group for the tier.
func (t Tier) Label() string {
	return labels[t]
}

// Valid reports whether t is one of the four known tiers.
func (t Tier) Valid() bool {
	return t >= TierImminent && t <= TierStable
}

// Thresholds are the three ascending cut points separating the tiers.
type Thresholds struct {
	T90 float64 `json:"T90"`
	T95 float64 `json:"T95"`
	T99 float64 `json:"T99"`
}

// Ordered reports whether T90 <= T95 <= T99.
func (t Thresholds) Ordered() bool {
	return t.T90 <= t.T95 && t.T95 <= t.T99
}

// Classify maps a probability to a tier. Boundary values belong to the more severe tier.
func Classify(p float64, t Thresholds) Tier {
	switch {
	case p >= t.T99:
		return TierImminent
	case p >= t.T95:
		return TierHigh
	case p >= t.T90:
		return TierMedium
	default:
		return TierStable
	}
}

// ParseGroup resolves a risk group given either as a label ("고위험") or a tier name ("Tier 2").
func ParseGroup(group string) (Tier, error) {
	group = strings.TrimSpace(group)
	for _, tier := range Tiers {
		if group == tier.Label() || strings.EqualFold(group, tier.String()) {
			return tier, nil
		}
	}
	return 0, utils.Validation("risk.ParseGroup", fmt.Sprintf("unknown risk group %q", group))
}
