//go:build integration

package repo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/miradorstack/churn-triage/internal/risk"
	"github.com/miradorstack/churn-triage/internal/utils"
)

func TestPostgresStoreAgainstContainer(t *testing.T) {
	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("churn"),
		postgres.WithUsername("churn"),
		postgres.WithPassword("churn"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, MigrateUp(dsn, "../../migrations"))

	pool, err := NewPool(ctx, dsn, 4)
	require.NoError(t, err)
	store := NewPostgresStore(pool)
	defer store.Close()

	first := run(uuid.NewString(), time.Now().UTC().Add(-time.Hour).Truncate(time.Microsecond))
	first.Thresholds = risk.Thresholds{T90: 0.5, T95: 0.8, T99: 0.95}
	second := run(uuid.NewString(), time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, store.SaveRun(ctx, first))
	require.NoError(t, store.SaveRun(ctx, second))

	got, err := store.GetRun(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Results, got.Results)
	assert.Equal(t, first.Raw, got.Raw)
	assert.Equal(t, first.Thresholds, got.Thresholds)

	latest, err := store.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	summaries, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, second.ID, summaries[0].ID)
	assert.Equal(t, first.ID, summaries[1].ID)
	assert.Equal(t, first.Thresholds, summaries[1].Thresholds)
	assert.Equal(t, first.Summary().TierCounts, summaries[1].TierCounts)
	assert.Equal(t, 1, summaries[1].RowCount)
	assert.Equal(t, 1, summaries[1].TierCounts["Tier 2"])
	assert.Equal(t, 0, summaries[1].TierCounts["Tier 1"])

	_, err = store.GetRun(ctx, uuid.NewString())
	assert.ErrorIs(t, err, utils.ErrNotFound)
	require.NoError(t, MigrateDown(dsn, "../../migrations"))
}
