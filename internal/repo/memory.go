package repo

import (
	"context"
	"sort"
	"sync"

	"github.com/miradorstack/churn-triage/internal/models"
	"github.com/miradorstack/churn-triage/internal/utils"
)

// MemoryStore keeps runs in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	runs   map[string]models.Run
	latest string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]models.Run)}
}

// SaveRun stores run and marks it as the latest.
func (s *MemoryStore) SaveRun(_ context.Context, run models.Run) error {
	if run.ID == "" {
		return utils.Validation("repo.SaveRun", "run id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
	s.latest = run.ID
	return nil
}

// GetRun returns the run with id.
func (s *MemoryStore) GetRun(_ context.Context, id string) (models.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return models.Run{}, utils.NotFound("repo.GetRun", "run "+id+" not found")
	}
	return run, nil
}

// LatestRun returns the most recently saved run.
func (s *MemoryStore) LatestRun(ctx context.Context) (models.Run, error) {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()
	if latest == "" {
		return models.Run{}, utils.NotFound("repo.LatestRun", "no runs recorded")
	}
	return s.GetRun(ctx, latest)
}

// ListRuns returns run summaries, newest first.
func (s *MemoryStore) ListRuns(_ context.Context, limit int) ([]models.RunSummary, error) {
	s.mu.RLock()
	out := make([]models.RunSummary, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run.Summary())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close() {}
