// Package repo persists scoring runs.
package repo

import (
	"context"

	"github.com/miradorstack/churn-triage/internal/models"
)

// Store saves and retrieves scoring runs. Lookups of unknown runs fail with
// utils.ErrNotFound.
type Store interface {
	SaveRun(ctx context.Context, run models.Run) error
	GetRun(ctx context.Context, id string) (models.Run, error)
	LatestRun(ctx context.Context) (models.Run, error)
	ListRuns(ctx context.Context, limit int) ([]models.RunSummary, error)
	Ping(ctx context.Context) error
	Close()
}
