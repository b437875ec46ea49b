package leaderboard

import (
	"context"
	"time"

	"github.com/chaincred/chaincred/internal/database"
	"github.com/chaincred/chaincred/internal/types"
)

// TopSkillsResponse is the payload served by the skills leaderboard
// endpoint.
type TopSkillsResponse struct {
	Skills      []types.TopSkill `json:"skills"`
	Total       int              `json:"total"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// Service serves the detected-skill leaderboard: which skills turn up
// verified across stored analysis runs, how often, and at what average
// score. Results come from the store and sit in a short-lived cache,
// since the underlying aggregation scans every skill row.
type Service struct {
	store *database.Store
	cache *SkillboardCache
}

// NewService creates a new leaderboard service
func NewService(store *database.Store) *Service {
	return &Service{
		store: store,
		cache: NewSkillboardCache(15 * time.Minute),
	}
}

// NewServiceWithCache creates a new leaderboard service with custom cache
func NewServiceWithCache(store *database.Store, cache *SkillboardCache) *Service {
	return &Service{
		store: store,
		cache: cache,
	}
}

// TopSkills returns the most frequently verified skills across all
// stored runs.
func (s *Service) TopSkills(ctx context.Context, limit int) (*TopSkillsResponse, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	if cached, found := s.cache.GetTopSkills(limit); found {
		return cached, nil
	}

	skills, err := s.store.TopSkills(ctx, limit)
	if err != nil {
		return nil, err
	}

	response := &TopSkillsResponse{
		Skills:      skills,
		Total:       len(skills),
		GeneratedAt: time.Now(),
	}

	s.cache.SetTopSkills(limit, response)

	return response, nil
}

// RecentAnalyses returns summaries of the most recent runs, newest first
func (s *Service) RecentAnalyses(ctx context.Context, limit int) ([]database.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	return s.store.ListRecent(ctx, limit)
}

// RecordRun stores a finished analysis and drops stale leaderboard
// entries so the next read reflects the new run.
func (s *Service) RecordRun(ctx context.Context, report *types.AnalysisReport) error {
	if err := s.store.SaveReport(ctx, report); err != nil {
		return err
	}

	s.cache.InvalidateAll()
	return nil
}

// GetCacheStats returns leaderboard cache statistics
func (s *Service) GetCacheStats() map[string]interface{} {
	return s.cache.GetStats()
}

// WarmCache pre-populates the cache with the common query shapes
func (s *Service) WarmCache(ctx context.Context) {
	s.cache.WarmCache(ctx, s)
}

// StartAutoRefresh starts automatic cache refresh
func (s *Service) StartAutoRefresh(ctx context.Context, interval time.Duration) {
	s.cache.AutoRefresh(ctx, s, interval)
}
