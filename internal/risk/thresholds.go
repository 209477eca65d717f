package risk

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/miradorstack/churn-triage/internal/utils"
)

// Strategy names the rule that resolved a threshold artifact.
type Strategy string

const (
	StrategyLabeled  Strategy = "labeled"
	StrategyMapping  Strategy = "mapping"
	StrategySequence Strategy = "sequence"
)

// resolver attempts one artifact shape. ok is false when the shape does not apply.
type resolver struct {
	name    Strategy
	resolve func(raw any) (t Thresholds, ok bool, err error)
}

// resolvers are tried in order; the first that applies wins.
var resolvers = []resolver{
	{name: StrategyLabeled, resolve: ResolveLabeled},
	{name: StrategyMapping, resolve: ResolveMapping},
	{name: StrategySequence, resolve: ResolveSequence},
}

// Normalize interprets a raw threshold artifact into ascending cut points.
func Normalize(raw any) (Thresholds, Strategy, error) {
	for _, r := range resolvers {
		t, ok, err := r.resolve(raw)
		if err != nil {
			return Thresholds{}, r.name, err
		}
		if ok {
			return t, r.name, nil
		}
	}
	return Thresholds{}, "", utils.Artifact("risk.Normalize", fmt.Sprintf("unsupported threshold artifact shape %T", raw), nil)
}

// ResolveLabeled applies to mappings carrying the keys T90, T95 and T99.
func ResolveLabeled(raw any) (Thresholds, bool, error) {
	m, ok := asMapping(raw)
	if !ok {
		return Thresholds{}, false, nil
	}
	var values [3]float64
	for i, key := range []string{"T90", "T95", "T99"} {
		v, present := m[key]
		if !present {
			return Thresholds{}, false, nil
		}
		f, err := toFloat(v)
		if err != nil {
			return Thresholds{}, false, utils.Artifact("risk.ResolveLabeled", "threshold "+key+" is not numeric", err)
		}
		values[i] = f
	}
	t := Thresholds{T90: values[0], T95: values[1], T99: values[2]}
	if !t.Ordered() {
		return Thresholds{}, false, utils.Artifact("risk.ResolveLabeled",
			fmt.Sprintf("labeled thresholds are not ascending: T90=%g T95=%g T99=%g", t.T90, t.T95, t.T99), nil)
	}
	return t, true, nil
}

// ResolveMapping applies to mappings with at least three values and takes the three smallest.
func ResolveMapping(raw any) (Thresholds, bool, error) {
	m, ok := asMapping(raw)
	if !ok || len(m) < 3 {
		return Thresholds{}, false, nil
	}
	values := make([]float64, 0, len(m))
	for key, v := range m {
		f, err := toFloat(v)
		if err != nil {
			return Thresholds{}, false, utils.Artifact("risk.ResolveMapping", "threshold "+key+" is not numeric", err)
		}
		values = append(values, f)
	}
	return fromSorted(values), true, nil
}

// ResolveSequence applies to sequences with at least three entries and sorts the first three.
func ResolveSequence(raw any) (Thresholds, bool, error) {
	seq, ok := asSequence(raw)
	if !ok || len(seq) < 3 {
		return Thresholds{}, false, nil
	}
	values := make([]float64, 3)
	for i, v := range seq[:3] {
		f, err := toFloat(v)
		if err != nil {
			return Thresholds{}, false, utils.Artifact("risk.ResolveSequence", fmt.Sprintf("threshold at index %d is not numeric", i), err)
		}
		values[i] = f
	}
	return fromSorted(values), true, nil
}

func fromSorted(values []float64) Thresholds {
	sort.Float64s(values)
	return Thresholds{T90: values[0], T95: values[1], T99: values[2]}
}

func asMapping(raw any) (map[string]any, bool) {
	switch m := raw.(type) {
	case map[string]any:
		return m, true
	case map[string]float64:
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[fmt.Sprint(k)] = v
		}
		return out, true
	}
	return nil, false
}

func asSequence(raw any) ([]any, bool) {
	switch s := raw.(type) {
	case []any:
		return s, true
	case []float64:
		out := make([]any, len(s))
		for i, v := range s {
			out[i] = v
		}
		return out, true
	}
	return nil, false
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		return strconv.ParseFloat(n, 64)
	}
	return 0, fmt.Errorf("unsupported value type %T", v)
}
