// Package features turns an uploaded customer table into the exact numeric
// matrix a trained classifier expects.
//
// The stages run in a fixed order: Reconcile guarantees required columns,
// Derive adds spend-trend features, Encode one-hot expands categoricals and
// Align reindexes onto the model's feature schema. Encode's output depends on
// the values seen in a batch, so only Align's Matrix is ever scored.
package features

import (
	"math"
	"strconv"
	"strings"
)

const (
	// DefaultNumericValue fills required numeric columns missing from an upload.
	DefaultNumericValue = 0.0
	// DefaultCategoricalValue fills required categorical columns missing from an upload.
	DefaultCategoricalValue = "UNKNOWN"
)

// Schema lists the columns guaranteed to exist after reconciliation.
type Schema struct {
	Numeric            []string
	Categorical        []string
	NumericDefault     float64
	CategoricalDefault string
}

// NewSchema returns a Schema with the standard defaults.
func NewSchema(numeric, categorical []string) Schema {
	return Schema{
		Numeric:            append([]string(nil), numeric...),
		Categorical:        append([]string(nil), categorical...),
		NumericDefault:     DefaultNumericValue,
		CategoricalDefault: DefaultCategoricalValue,
	}
}

// ParseNumber converts a cell to float64. Blank, unparseable, NaN and infinite values become 0.
func ParseNumber(v string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0
	}
	return finite(f)
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func isBlank(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || v == "NaN" || strings.EqualFold(v, "nan")
}

func set(names []string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out
}
