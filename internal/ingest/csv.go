// Package ingest decodes customer uploads into dataframes.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/miradorstack/churn-triage/internal/utils"
)

const bom = "\ufeff"

// ReadCSV parses a CSV upload. Header names are cleaned of byte-order marks and
// surrounding whitespace, and every column is loaded as text.
func ReadCSV(r io.Reader) (dataframe.DataFrame, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return dataframe.DataFrame{}, utils.NewAppError(utils.ErrValidation, "ingest.ReadCSV", "malformed csv", err)
		}
		return dataframe.DataFrame{}, utils.NewAppError(utils.ErrValidation, "ingest.ReadCSV", "read upload", err)
	}
	if len(records) == 0 {
		return dataframe.DataFrame{}, utils.Validation("ingest.ReadCSV", "upload is empty")
	}
	if len(records) == 1 {
		return dataframe.DataFrame{}, utils.Validation("ingest.ReadCSV", "upload has a header but no rows")
	}

	header, err := CleanHeader(records[0])
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	records[0] = header

	df := dataframe.LoadRecords(records,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.HasHeader(true),
	)
	if df.Err != nil {
		return dataframe.DataFrame{}, utils.NewAppError(utils.ErrValidation, "ingest.ReadCSV", "load table", df.Err)
	}
	return df, nil
}

// CleanHeader strips BOMs and whitespace from column names, names blank
// columns "unnamed_N", and rejects duplicates.
func CleanHeader(header []string) ([]string, error) {
	out := make([]string, len(header))
	seen := make(map[string]struct{}, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.ReplaceAll(name, bom, ""))
		if name == "" {
			name = fmt.Sprintf("unnamed_%d", i)
		}
		if _, dup := seen[name]; dup {
			return nil, utils.Validation("ingest.CleanHeader", fmt.Sprintf("duplicate column %q", name))
		}
		seen[name] = struct{}{}
		out[i] = name
	}
	return out, nil
}

// Rows converts a dataframe into one map per row keyed by column name.
func Rows(df dataframe.DataFrame) []map[string]string {
	records := df.Records()
	if len(records) < 2 {
		return nil
	}
	header := records[0]
	rows := make([]map[string]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(map[string]string, len(header))
		for j, name := range header {
			row[name] = rec[j]
		}
		rows = append(rows, row)
	}
	return rows
}

// FromRows builds a text dataframe from row maps using columns as the column order.
func FromRows(columns []string, rows []map[string]string) (dataframe.DataFrame, error) {
	if len(rows) == 0 {
		return dataframe.DataFrame{}, utils.Validation("ingest.FromRows", "no rows supplied")
	}
	header, err := CleanHeader(columns)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	records := make([][]string, 0, len(rows)+1)
	records = append(records, header)
	for _, row := range rows {
		rec := make([]string, len(columns))
		for j, name := range columns {
			rec[j] = row[name]
		}
		records = append(records, rec)
	}
	df := dataframe.LoadRecords(records,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.HasHeader(true),
	)
	if df.Err != nil {
		return dataframe.DataFrame{}, utils.NewAppError(utils.ErrValidation, "ingest.FromRows", "load table", df.Err)
	}
	return df, nil
}
