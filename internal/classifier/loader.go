package classifier

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/miradorstack/churn-triage/internal/metrics"
	"github.com/miradorstack/churn-triage/internal/risk"
	"github.com/miradorstack/churn-triage/internal/utils"
)

// Artifacts is the immutable bundle produced by a successful load.
type Artifacts struct {
	Classifier        ProbabilityEstimator
	RawThresholds     any
	Thresholds        risk.Thresholds
	ThresholdStrategy risk.Strategy
	FeatureSchema     []string
}

// OpenFunc reads the raw classifier and threshold artifacts from storage.
type OpenFunc func() (classifier any, thresholds any, err error)

// Loader loads artifacts at most once per process and memoizes the outcome,
// including a failed load. Restart the process to pick up new artifacts.
type Loader struct {
	logger *slog.Logger
	open   OpenFunc

	once      sync.Once
	loaded    atomic.Bool
	artifacts Artifacts
	err       error
}

// NewLoader constructs a Loader around open.
func NewLoader(logger *slog.Logger, open OpenFunc) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger, open: open}
}

// NewFileLoader constructs a Loader reading the classifier and thresholds from disk.
func NewFileLoader(logger *slog.Logger, modelPath, thresholdsPath string) *Loader {
	return NewLoader(logger, FileOpener(modelPath, thresholdsPath))
}

// FileOpener reads a classifier artifact and a YAML or JSON threshold artifact.
func FileOpener(modelPath, thresholdsPath string) OpenFunc {
	return func() (any, any, error) {
		data, err := os.ReadFile(modelPath)
		if err != nil {
			return nil, nil, utils.Artifact("classifier.FileOpener", "read classifier artifact "+modelPath, err)
		}
		clf, err := Decode(data)
		if err != nil {
			return nil, nil, err
		}
		data, err = os.ReadFile(thresholdsPath)
		if err != nil {
			return nil, nil, utils.Artifact("classifier.FileOpener", "read threshold artifact "+thresholdsPath, err)
		}
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, nil, utils.Artifact("classifier.FileOpener", "parse threshold artifact", err)
		}
		return clf, raw, nil
	}
}

// Load returns the memoized artifacts, performing the load on first call.
// Concurrent first calls block until the single load finishes.
func (l *Loader) Load() (Artifacts, error) {
	l.once.Do(func() {
		start := time.Now()
		l.artifacts, l.err = l.load()
		metrics.ObserveArtifactLoad(time.Since(start))
		if l.err != nil {
			l.logger.Error("artifact load failed", slog.Any("error", l.err))
			return
		}
		l.loaded.Store(true)
		l.logger.Info("artifacts loaded",
			slog.Int("features", len(l.artifacts.FeatureSchema)),
			slog.String("threshold_strategy", string(l.artifacts.ThresholdStrategy)),
			slog.Float64("t90", l.artifacts.Thresholds.T90),
			slog.Float64("t95", l.artifacts.Thresholds.T95),
			slog.Float64("t99", l.artifacts.Thresholds.T99),
			slog.Duration("took", time.Since(start)),
		)
	})
	if l.err != nil {
		return Artifacts{}, l.err
	}
	a := l.artifacts
	a.FeatureSchema = append([]string(nil), a.FeatureSchema...)
	return a, nil
}

// Ready reports whether a load has completed successfully.
func (l *Loader) Ready() bool {
	return l.loaded.Load()
}

func (l *Loader) load() (Artifacts, error) {
	if l.open == nil {
		return Artifacts{}, utils.Artifact("classifier.Load", "no artifact source configured", nil)
	}
	clf, rawThresholds, err := l.open()
	if err != nil {
		return Artifacts{}, utils.Artifact("classifier.Load", "open artifacts", err)
	}

	namer, ok := clf.(FeatureNamer)
	if !ok {
		return Artifacts{}, utils.Artifact("classifier.Load", fmt.Sprintf("classifier %T exposes no fitted feature names", clf), nil)
	}
	schema := namer.FeatureNames()
	if len(schema) == 0 {
		return Artifacts{}, utils.Artifact("classifier.Load", "classifier feature name list is empty", nil)
	}
	estimator, ok := clf.(ProbabilityEstimator)
	if !ok {
		return Artifacts{}, utils.Artifact("classifier.Load", fmt.Sprintf("classifier %T exposes no probability estimation", clf), nil)
	}

	thresholds, strategy, err := risk.Normalize(rawThresholds)
	if err != nil {
		return Artifacts{}, err
	}

	return Artifacts{
		Classifier:        estimator,
		RawThresholds:     rawThresholds,
		Thresholds:        thresholds,
		ThresholdStrategy: strategy,
		FeatureSchema:     append([]string(nil), schema...),
	}, nil
}
