package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/churn-triage/internal/utils"
)

func TestReadCSVCleansHeaders(t *testing.T) {
	input := "\ufeffcustomer_id , gender,spent_m1\nA,M,10\nB,,abc\n"
	df, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"customer_id", "gender", "spent_m1"}, df.Names())
	assert.Equal(t, 2, df.Nrow())
	assert.Equal(t, []string{"10", "abc"}, df.Col("spent_m1").Records())
}

func TestReadCSVRejectsBadInput(t *testing.T) {
	tests := map[string]string{
		"empty":            "",
		"header only":      "customer_id,gender\n",
		"duplicate header": "customer_id,customer_id\nA,B\n",
		"ragged rows":      "customer_id,gender\nA,M,extra\n",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(input))
			assert.ErrorIs(t, err, utils.ErrValidation)
		})
	}
}

func TestCleanHeaderNamesBlankColumns(t *testing.T) {
	header, err := CleanHeader([]string{"", "customer_id", " "})
	require.NoError(t, err)
	assert.Equal(t, []string{"unnamed_0", "customer_id", "unnamed_2"}, header)
}

func TestRowsRoundTrip(t *testing.T) {
	df, err := ReadCSV(strings.NewReader("customer_id,region\nA,Seoul\nB,Busan\n"))
	require.NoError(t, err)

	rows := Rows(df)
	require.Len(t, rows, 2)
	assert.Equal(t, map[string]string{"customer_id": "B", "region": "Busan"}, rows[1])

	rebuilt, err := FromRows([]string{"customer_id", "region"}, rows)
	require.NoError(t, err)
	assert.Equal(t, df.Records(), rebuilt.Records())

	_, err = FromRows([]string{"customer_id"}, nil)
	assert.ErrorIs(t, err, utils.ErrValidation)
}
