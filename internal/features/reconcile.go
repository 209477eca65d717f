package features

import (
	"fmt"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/miradorstack/churn-triage/internal/utils"
)

// Reconcile returns a copy of df in which every required numeric column exists as
// float64 and every required categorical column exists as text. The id column is
// mandatory and kept as text. df itself is never modified.
func Reconcile(df dataframe.DataFrame, schema Schema, idColumn string) (dataframe.DataFrame, error) {
	if df.Err != nil {
		return dataframe.DataFrame{}, utils.NewAppError(utils.ErrValidation, "features.Reconcile", "invalid input table", df.Err)
	}
	names := df.Names()
	present := set(names)
	if _, ok := present[idColumn]; !ok {
		return dataframe.DataFrame{}, utils.Schema("features.Reconcile", fmt.Sprintf("identifier column %q is missing", idColumn))
	}

	numeric := set(schema.Numeric)
	categorical := set(schema.Categorical)
	rows := df.Nrow()

	columns := make([]series.Series, 0, len(names)+len(schema.Numeric)+len(schema.Categorical))
	for _, name := range names {
		col := df.Col(name)
		switch {
		case name == idColumn:
			columns = append(columns, series.New(trimmed(col.Records()), series.String, name))
		case contains(numeric, name):
			columns = append(columns, series.New(numbers(col.Records()), series.Float, name))
		case contains(categorical, name):
			columns = append(columns, series.New(texts(col.Records(), schema.CategoricalDefault), series.String, name))
		default:
			columns = append(columns, col)
		}
	}
	for _, name := range schema.Numeric {
		if !contains(present, name) {
			columns = append(columns, series.New(filledFloats(rows, schema.NumericDefault), series.Float, name))
		}
	}
	for _, name := range schema.Categorical {
		if !contains(present, name) {
			columns = append(columns, series.New(filledStrings(rows, schema.CategoricalDefault), series.String, name))
		}
	}

	out := dataframe.New(columns...)
	if out.Err != nil {
		return dataframe.DataFrame{}, utils.NewAppError(utils.ErrValidation, "features.Reconcile", "rebuild table", out.Err)
	}
	return out, nil
}

func contains(s map[string]struct{}, name string) bool {
	_, ok := s[name]
	return ok
}

func numbers(records []string) []float64 {
	out := make([]float64, len(records))
	for i, r := range records {
		out[i] = ParseNumber(r)
	}
	return out
}

// texts fills blank cells with fallback (DefaultCategoricalValue), so Encode
// emits "{column}_UNKNOWN" for them. No "{column}_nan" indicator is ever
// produced; a feature schema listing one aligns it to a constant 0.
func texts(records []string, fallback string) []string {
	out := make([]string, len(records))
	for i, r := range records {
		if isBlank(r) {
			out[i] = fallback
			continue
		}
		out[i] = strings.TrimSpace(r)
	}
	return out
}

func trimmed(records []string) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = strings.TrimSpace(r)
	}
	return out
}

func filledFloats(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func filledStrings(n int, v string) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = v
	}
	return out
}
