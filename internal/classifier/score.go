package classifier

import (
	"fmt"

	"github.com/miradorstack/churn-triage/internal/features"
	"github.com/miradorstack/churn-triage/internal/utils"
)

// Score returns the positive-class probability for each matrix row, in row order.
// With two or more probability columns the column at index 1 is the positive
// class; a single column is used as-is.
func Score(clf any, m features.Matrix) ([]float64, error) {
	estimator, ok := clf.(ProbabilityEstimator)
	if !ok {
		return nil, utils.Artifact("classifier.Score", fmt.Sprintf("classifier %T exposes no probability estimation", clf), nil)
	}
	proba, err := estimator.PredictProba(m.Rows)
	if err != nil {
		return nil, utils.Artifact("classifier.Score", "predict probabilities", err)
	}
	if len(proba) != m.Len() {
		return nil, utils.Artifact("classifier.Score", fmt.Sprintf("classifier returned %d rows for %d inputs", len(proba), m.Len()), nil)
	}

	out := make([]float64, len(proba))
	for i, row := range proba {
		switch {
		case len(row) >= 2:
			out[i] = row[1]
		case len(row) == 1:
			out[i] = row[0]
		default:
			return nil, utils.Artifact("classifier.Score", fmt.Sprintf("classifier returned no probabilities for row %d", i), nil)
		}
	}
	return out, nil
}
