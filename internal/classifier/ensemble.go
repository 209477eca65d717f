package classifier

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// KindTreeEnsemble identifies TreeEnsemble artifacts.
const KindTreeEnsemble = "tree_ensemble"

// Stump is a depth-one tree contributing a log-odds delta.
type Stump struct {
	Feature   string  `yaml:"feature"`
	Threshold float64 `yaml:"threshold"`
	Left      float64 `yaml:"left"`
	Right     float64 `yaml:"right"`

	index int
}

// TreeEnsemble is a boosted ensemble of stumps over log-odds.
type TreeEnsemble struct {
	Features     []string `yaml:"feature_names"`
	BaseScore    float64  `yaml:"base_score"`
	LearningRate float64  `yaml:"learning_rate"`
	Trees        []Stump  `yaml:"trees"`
}

// FeatureNames implements FeatureNamer.
func (e *TreeEnsemble) FeatureNames() []string { return e.Features }

// PredictProba implements ProbabilityEstimator. Values below a stump's threshold go left.
func (e *TreeEnsemble) PredictProba(rows [][]float64) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		if len(row) != len(e.Features) {
			return nil, fmt.Errorf("row %d has %d features, model expects %d", i, len(row), len(e.Features))
		}
		z := e.BaseScore
		for _, t := range e.Trees {
			if row[t.index] < t.Threshold {
				z += e.LearningRate * t.Left
			} else {
				z += e.LearningRate * t.Right
			}
		}
		out[i] = binary(sigmoid(z), false)
	}
	return out, nil
}

func decodeEnsemble(doc *yaml.Node) (any, error) {
	e := TreeEnsemble{LearningRate: 1}
	if err := doc.Decode(&e); err != nil {
		return nil, err
	}
	index := make(map[string]int, len(e.Features))
	for i, name := range e.Features {
		index[name] = i
	}
	for i := range e.Trees {
		pos, ok := index[e.Trees[i].Feature]
		if !ok {
			return nil, fmt.Errorf("tree %d splits on unknown feature %q", i, e.Trees[i].Feature)
		}
		e.Trees[i].index = pos
	}
	return &e, nil
}
