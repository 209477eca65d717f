package api

import (
	"sort"

	"github.com/go-gota/gota/dataframe"

	"github.com/miradorstack/churn-triage/internal/ingest"
	"github.com/miradorstack/churn-triage/internal/models"
	"github.com/miradorstack/churn-triage/internal/utils"
)

// ScoreRecordsRequest carries an inline table for scoring over gRPC.
// Columns fixes the column order; when empty the union of row keys is used, sorted.
type ScoreRecordsRequest struct {
	IDColumn   string              `json:"id_column"`
	SourceName string              `json:"source_name,omitempty"`
	Columns    []string            `json:"columns,omitempty"`
	Rows       []map[string]string `json:"rows"`
}

// GetRunRequest selects a run. An empty RunID selects the latest run.
type GetRunRequest struct {
	RunID string `json:"run_id"`
}

// RunReply is a run summary plus its scored customers.
type RunReply struct {
	Run     models.RunSummary       `json:"run"`
	Results []models.ScoredCustomer `json:"results"`
}

func toRunReply(run models.Run) *RunReply {
	results := run.Results
	if results == nil {
		results = []models.ScoredCustomer{}
	}
	return &RunReply{Run: run.Summary(), Results: results}
}

// FromScoreRecordsRequest builds the raw table of a ScoreRecords call.
func FromScoreRecordsRequest(req *ScoreRecordsRequest) (dataframe.DataFrame, error) {
	if req == nil {
		return dataframe.DataFrame{}, utils.Validation("api.FromScoreRecordsRequest", "request is nil")
	}
	if len(req.Rows) == 0 {
		return dataframe.DataFrame{}, utils.Validation("api.FromScoreRecordsRequest", "at least one row is required")
	}
	columns := req.Columns
	if len(columns) == 0 {
		columns = columnUnion(req.Rows)
	}
	return ingest.FromRows(columns, req.Rows)
}

func columnUnion(rows []map[string]string) []string {
	seen := make(map[string]struct{})
	for _, row := range rows {
		for k := range row {
			seen[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
