// Package classifier loads pre-trained churn classifier artifacts and scores
// aligned feature matrices with them.
package classifier

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/miradorstack/churn-triage/internal/utils"
)

// ProbabilityEstimator returns per-row class probabilities for a feature matrix
// whose columns follow the estimator's feature names.
type ProbabilityEstimator interface {
	PredictProba(rows [][]float64) ([][]float64, error)
}

// FeatureNamer exposes the ordered feature names a classifier was fitted on.
type FeatureNamer interface {
	FeatureNames() []string
}

// Decoder builds a classifier from the YAML document of its kind.
type Decoder func(doc *yaml.Node) (any, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Decoder{
		KindLogisticRegression: decodeLogistic,
		KindTreeEnsemble:       decodeEnsemble,
	}
)

// Register adds or replaces the decoder for a classifier kind.
func Register(kind string, d Decoder) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[kind] = d
}

// Kinds lists registered classifier kinds.
func Kinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Decode parses a classifier artifact document. The "kind" field selects the decoder.
func Decode(data []byte) (any, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, utils.Artifact("classifier.Decode", "parse classifier artifact", err)
	}
	var header struct {
		Kind string `yaml:"kind"`
	}
	if err := doc.Decode(&header); err != nil {
		return nil, utils.Artifact("classifier.Decode", "read classifier kind", err)
	}

	registryMu.RLock()
	decode, ok := registry[header.Kind]
	registryMu.RUnlock()
	if !ok {
		return nil, utils.Artifact("classifier.Decode", fmt.Sprintf("unsupported classifier kind %q", header.Kind), nil)
	}
	clf, err := decode(&doc)
	if err != nil {
		return nil, utils.Artifact("classifier.Decode", "decode "+header.Kind, err)
	}
	return clf, nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func binary(p float64, single bool) []float64 {
	if single {
		return []float64{p}
	}
	return []float64{1 - p, p}
}
