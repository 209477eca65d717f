package features

import (
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/miradorstack/churn-triage/internal/utils"
)

// Derived feature column names.
const (
	RecentSpent      = "recent_3m_spent"
	PastSpent        = "past_3m_spent"
	SpentChangeRatio = "spent_change_ratio"
)

var (
	recentMonths = []string{"spent_m1", "spent_m2", "spent_m3"}
	pastMonths   = []string{"spent_m4", "spent_m5", "spent_m6"}
)

// Derive adds recent/past three-month spend totals and their ratio.
// The ratio denominator is past+1 so customers with no past spend stay finite.
func Derive(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	rows := df.Nrow()
	recent := make([]float64, rows)
	past := make([]float64, rows)
	for _, name := range recentMonths {
		addInto(recent, Floats(df, name))
	}
	for _, name := range pastMonths {
		addInto(past, Floats(df, name))
	}
	ratio := make([]float64, rows)
	for i := range ratio {
		ratio[i] = recent[i] / (past[i] + 1.0)
	}

	out := df.
		Mutate(series.New(recent, series.Float, RecentSpent)).
		Mutate(series.New(past, series.Float, PastSpent)).
		Mutate(series.New(ratio, series.Float, SpentChangeRatio))
	if out.Err != nil {
		return dataframe.DataFrame{}, utils.NewAppError(utils.ErrValidation, "features.Derive", "add derived columns", out.Err)
	}
	return out, nil
}

// Floats reads a column as float64 values. Missing columns read as zeros and
// non-numeric cells as 0.
func Floats(df dataframe.DataFrame, name string) []float64 {
	for _, n := range df.Names() {
		if n != name {
			continue
		}
		col := df.Col(name)
		if col.Type() == series.Float || col.Type() == series.Int {
			values := col.Float()
			for i, v := range values {
				values[i] = finite(v)
			}
			return values
		}
		return numbers(col.Records())
	}
	return make([]float64, df.Nrow())
}

func addInto(dst, src []float64) {
	for i := range dst {
		dst[i] += src[i]
	}
}
