package features

import (
	"fmt"
	"sort"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/miradorstack/churn-triage/internal/utils"
)

// Encode replaces each named categorical column with one 0/1 indicator column
// per value observed in this table, named "{column}_{value}". Indicators are
// appended after the passthrough columns, sorted by column then value. A
// generated name that matches another column is rejected with ErrSchema.
func Encode(df dataframe.DataFrame, categorical []string) (dataframe.DataFrame, error) {
	targets := set(categorical)
	passthrough := make([]series.Series, 0, df.Ncol())
	var indicators []series.Series

	for _, name := range df.Names() {
		if !contains(targets, name) {
			passthrough = append(passthrough, df.Col(name))
			continue
		}
		indicators = append(indicators, oneHot(name, df.Col(name).Records())...)
	}
	sort.SliceStable(indicators, func(i, j int) bool { return indicators[i].Name < indicators[j].Name })
	taken := make(map[string]struct{}, len(passthrough)+len(indicators))
	for _, s := range passthrough {
		taken[s.Name] = struct{}{}
	}
	for _, s := range indicators {
		if _, dup := taken[s.Name]; dup {
			return dataframe.DataFrame{}, utils.Schema("features.Encode",
				fmt.Sprintf("indicator column %q collides with an uploaded column", s.Name))
		}
		taken[s.Name] = struct{}{}
	}

	out := dataframe.New(append(passthrough, indicators...)...)
	if out.Err != nil {
		return dataframe.DataFrame{}, utils.NewAppError(utils.ErrValidation, "features.Encode", "expand categorical columns", out.Err)
	}
	return out, nil
}

func oneHot(column string, values []string) []series.Series {
	index := make(map[string][]float64)
	for i, v := range values {
		flags, ok := index[v]
		if !ok {
			flags = make([]float64, len(values))
			index[v] = flags
		}
		flags[i] = 1
	}
	out := make([]series.Series, 0, len(index))
	for v, flags := range index {
		out = append(out, series.New(flags, series.Float, column+"_"+v))
	}
	return out
}
