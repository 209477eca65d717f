package features

import "github.com/go-gota/gota/dataframe"

// Matrix is a row-major numeric feature matrix whose columns exactly match a
// model's feature schema.
type Matrix struct {
	Columns []string
	Rows    [][]float64
}

// Len returns the number of rows.
func (m Matrix) Len() int { return len(m.Rows) }

// Column returns a copy of the named column, or nil when absent.
func (m Matrix) Column(name string) []float64 {
	for j, c := range m.Columns {
		if c != name {
			continue
		}
		out := make([]float64, len(m.Rows))
		for i, row := range m.Rows {
			out[i] = row[j]
		}
		return out
	}
	return nil
}

// Align reindexes df onto target. Columns not in target (the identifier included)
// are dropped, target columns absent from df are zero-filled, and every value is
// coerced to float64.
func Align(df dataframe.DataFrame, target []string) Matrix {
	rows := df.Nrow()
	m := Matrix{
		Columns: append([]string(nil), target...),
		Rows:    make([][]float64, rows),
	}
	for i := range m.Rows {
		m.Rows[i] = make([]float64, len(target))
	}
	for j, name := range target {
		for i, v := range Floats(df, name) {
			m.Rows[i][j] = v
		}
	}
	return m
}
