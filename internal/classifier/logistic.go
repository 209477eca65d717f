package classifier

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// KindLogisticRegression identifies LogisticRegression artifacts.
const KindLogisticRegression = "logistic_regression"

// LogisticRegression is a binary linear classifier. Coefficients follow Features order.
type LogisticRegression struct {
	Features     []string  `yaml:"feature_names"`
	Intercept    float64   `yaml:"intercept"`
	Coefficients []float64 `yaml:"coefficients"`
	// PositiveOnly makes PredictProba return a single positive-class column.
	PositiveOnly bool `yaml:"positive_only"`
}

// FeatureNames implements FeatureNamer.
func (m *LogisticRegression) FeatureNames() []string { return m.Features }

// PredictProba implements ProbabilityEstimator.
func (m *LogisticRegression) PredictProba(rows [][]float64) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		if len(row) != len(m.Coefficients) {
			return nil, fmt.Errorf("row %d has %d features, model expects %d", i, len(row), len(m.Coefficients))
		}
		z := m.Intercept
		for j, x := range row {
			z += m.Coefficients[j] * x
		}
		out[i] = binary(sigmoid(z), m.PositiveOnly)
	}
	return out, nil
}

func decodeLogistic(doc *yaml.Node) (any, error) {
	var m LogisticRegression
	if err := doc.Decode(&m); err != nil {
		return nil, err
	}
	if len(m.Coefficients) != len(m.Features) {
		return nil, errors.New("coefficients and feature_names differ in length")
	}
	return &m, nil
}
