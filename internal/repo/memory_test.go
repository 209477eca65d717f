package repo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/churn-triage/internal/models"
	"github.com/miradorstack/churn-triage/internal/utils"
)

func run(id string, at time.Time) models.Run {
	return models.Run{
		ID:        id,
		CreatedAt: at,
		IDColumn:  "customer_id",
		Results: []models.ScoredCustomer{
			{CustomerID: "A", ChurnProba: 0.92, RiskTier: "Tier 2", RiskGroup: "고위험"},
		},
		Raw: []map[string]string{{"customer_id": "A", "region": "Seoul"}},
	}
}

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.LatestRun(ctx)
	assert.ErrorIs(t, err, utils.ErrNotFound)

	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveRun(ctx, run("r1", base)))
	require.NoError(t, store.SaveRun(ctx, run("r2", base.Add(time.Minute))))

	latest, err := store.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "r2", latest.ID)

	got, err := store.GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Seoul", got.Raw[0]["region"])

	_, err = store.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, utils.ErrNotFound)

	summaries, err := store.ListRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "r2", summaries[0].ID)
	assert.Equal(t, 1, summaries[0].TierCounts["Tier 2"])
	assert.Equal(t, 0, summaries[0].TierCounts["Tier 1"])

	assert.ErrorIs(t, store.SaveRun(ctx, models.Run{}), utils.ErrValidation)
}
