package features_test

import (
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/churn-triage/internal/features"
	"github.com/miradorstack/churn-triage/internal/utils"
)

func load(t *testing.T, records [][]string) dataframe.DataFrame {
	t.Helper()
	df := dataframe.LoadRecords(records,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.HasHeader(true),
	)
	require.NoError(t, df.Err)
	return df
}

func column(t *testing.T, df dataframe.DataFrame, name string) []string {
	t.Helper()
	require.Contains(t, df.Names(), name)
	return df.Col(name).Records()
}

func TestReconcileFillsMissingColumns(t *testing.T) {
	raw := load(t, [][]string{
		{"customer_id", "spent_m1", "gender", "note"},
		{" A ", "abc", "", "vip"},
		{"B", "12.5", "F", ""},
	})
	schema := features.NewSchema([]string{"spent_m1", "age"}, []string{"gender", "region"})

	out, err := features.Reconcile(raw, schema, "customer_id")
	require.NoError(t, err)

	assert.Equal(t, 2, out.Nrow())
	for _, name := range []string{"customer_id", "spent_m1", "age", "gender", "region", "note"} {
		assert.Contains(t, out.Names(), name)
	}
	assert.Equal(t, []float64{0, 12.5}, out.Col("spent_m1").Float())
	assert.Equal(t, []float64{0, 0}, out.Col("age").Float())
	assert.Equal(t, []string{"UNKNOWN", "F"}, column(t, out, "gender"))
	assert.Equal(t, []string{"UNKNOWN", "UNKNOWN"}, column(t, out, "region"))
	assert.Equal(t, []string{"A", "B"}, column(t, out, "customer_id"))

	// input is untouched
	assert.Len(t, raw.Names(), 4)
	assert.Equal(t, []string{"abc", "12.5"}, column(t, raw, "spent_m1"))
}

func TestReconcileRequiresIdentifier(t *testing.T) {
	raw := load(t, [][]string{{"spent_m1"}, {"1"}})
	_, err := features.Reconcile(raw, features.NewSchema(nil, nil), "customer_id")
	assert.ErrorIs(t, err, utils.ErrSchema)
}

func TestDeriveSpendRatio(t *testing.T) {
	raw := load(t, [][]string{
		{"customer_id", "spent_m1", "spent_m2", "spent_m3", "spent_m4", "spent_m5", "spent_m6"},
		{"A", "10", "10", "10", "10", "0", "0"},
		{"B", "0", "0", "0", "0", "0", "0"},
	})
	schema := features.NewSchema([]string{"spent_m1", "spent_m2", "spent_m3", "spent_m4", "spent_m5", "spent_m6"}, nil)
	reconciled, err := features.Reconcile(raw, schema, "customer_id")
	require.NoError(t, err)

	out, err := features.Derive(reconciled)
	require.NoError(t, err)

	assert.Equal(t, []float64{30, 0}, out.Col(features.RecentSpent).Float())
	assert.Equal(t, []float64{10, 0}, out.Col(features.PastSpent).Float())
	ratio := out.Col(features.SpentChangeRatio).Float()
	assert.InDelta(t, 2.727273, ratio[0], 1e-6)
	assert.Equal(t, 0.0, ratio[1])
}

func TestDeriveMissingMonthsReadAsZero(t *testing.T) {
	raw := load(t, [][]string{{"customer_id", "spent_m1"}, {"A", "5"}})
	out, err := features.Derive(raw)
	require.NoError(t, err)
	assert.Equal(t, []float64{5}, out.Col(features.SpentChangeRatio).Float())
}

func TestEncodeExpandsObservedValues(t *testing.T) {
	raw := load(t, [][]string{
		{"customer_id", "gender", "age"},
		{"A", "M", "30"},
		{"B", "F", "40"},
		{"C", "M", "50"},
	})
	out, err := features.Encode(raw, []string{"gender", "region"})
	require.NoError(t, err)

	assert.Equal(t, []string{"customer_id", "age", "gender_F", "gender_M"}, out.Names())
	assert.Equal(t, []float64{0, 1, 0}, out.Col("gender_F").Float())
	assert.Equal(t, []float64{1, 0, 1}, out.Col("gender_M").Float())
}

func TestBlankCategoricalEncodesAsUnknown(t *testing.T) {
	raw := load(t, [][]string{
		{"customer_id", "gender"},
		{"A", ""},
		{"B", "F"},
	})
	schema := features.NewSchema(nil, []string{"gender"})
	reconciled, err := features.Reconcile(raw, schema, "customer_id")
	require.NoError(t, err)
	encoded, err := features.Encode(reconciled, schema.Categorical)
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 0}, encoded.Col("gender_UNKNOWN").Float())
	assert.NotContains(t, encoded.Names(), "gender_nan")

	m := features.Align(encoded, []string{"gender_nan", "gender_UNKNOWN"})
	assert.Equal(t, [][]float64{{0, 1}, {0, 0}}, m.Rows)
}

func TestEncodeRejectsIndicatorCollision(t *testing.T) {
	cases := map[string][][]string{
		"uploaded column": {
			{"customer_id", "gender", "gender_M"},
			{"A", "F", "7"},
			{"B", "M", "9"},
		},
		"two categoricals": {
			{"customer_id", "plan", "plan_pro"},
			{"A", "pro_x", "x"},
			{"B", "basic", "y"},
		},
	}
	for name, records := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := features.Encode(load(t, records), []string{"gender", "plan", "plan_pro"})
			assert.ErrorIs(t, err, utils.ErrSchema)
		})
	}
}

func TestEncodeDependsOnBatch(t *testing.T) {
	a, err := features.Encode(load(t, [][]string{{"id", "region"}, {"1", "Seoul"}}), []string{"region"})
	require.NoError(t, err)
	b, err := features.Encode(load(t, [][]string{{"id", "region"}, {"1", "Busan"}}), []string{"region"})
	require.NoError(t, err)
	assert.NotEqual(t, a.Names(), b.Names())
}

func TestAlignMatchesTargetExactly(t *testing.T) {
	encoded := load(t, [][]string{
		{"customer_id", "age", "gender_M", "stray", "label"},
		{"A", "30", "1", "9", "oops"},
		{"B", "40", "0", "9", "7"},
	})
	target := []string{"region_Seoul", "gender_M", "age", "label"}

	m := features.Align(encoded, target)

	assert.Equal(t, target, m.Columns)
	require.Equal(t, 2, m.Len())
	assert.Equal(t, []float64{0, 1, 30, 0}, m.Rows[0])
	assert.Equal(t, []float64{0, 0, 40, 7}, m.Rows[1])
	assert.Nil(t, m.Column("customer_id"))
	assert.Equal(t, []float64{30, 40}, m.Column("age"))
}

func TestAlignEmptyTarget(t *testing.T) {
	m := features.Align(load(t, [][]string{{"customer_id"}, {"A"}}), nil)
	assert.Empty(t, m.Columns)
	require.Equal(t, 1, m.Len())
	assert.Empty(t, m.Rows[0])
}
