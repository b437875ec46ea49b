package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/chaincred/chaincred/internal/cache"
)

// SkillboardCache provides caching for skill leaderboard data
type SkillboardCache struct {
	cache *cache.Cache
}

// NewSkillboardCache creates a new skill leaderboard cache
func NewSkillboardCache(ttl time.Duration) *SkillboardCache {
	return &SkillboardCache{
		cache: cache.NewCache(ttl),
	}
}

// generateCacheKey creates a cache key for leaderboard data
func (sc *SkillboardCache) generateCacheKey(limit int) string {
	return fmt.Sprintf("topskills:%d", limit)
}

// GetTopSkills retrieves cached leaderboard data
func (sc *SkillboardCache) GetTopSkills(limit int) (*TopSkillsResponse, bool) {
	cacheKey := sc.generateCacheKey(limit)

	data, found := sc.cache.Get(cacheKey)
	if !found {
		return nil, false
	}

	var response TopSkillsResponse
	if err := json.Unmarshal(data, &response); err != nil {
		slog.Error("Failed to unmarshal cached leaderboard data", "error", err, "key", cacheKey)
		return nil, false
	}

	slog.Debug("Skill leaderboard cache hit", "limit", limit)
	return &response, true
}

// SetTopSkills caches leaderboard data
func (sc *SkillboardCache) SetTopSkills(limit int, response *TopSkillsResponse) {
	cacheKey := sc.generateCacheKey(limit)

	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal leaderboard data for cache", "error", err, "limit", limit)
		return
	}

	sc.cache.Set(cacheKey, data)
	slog.Debug("Skill leaderboard cached", "limit", limit, "skills", len(response.Skills))
}

// InvalidateAll drops all cached leaderboard entries
func (sc *SkillboardCache) InvalidateAll() {
	sc.cache.Clear()
	slog.Debug("Skill leaderboard cache invalidated")
}

// GetStats returns cache statistics
func (sc *SkillboardCache) GetStats() map[string]interface{} {
	return sc.cache.Stats()
}

// WarmCache pre-populates the cache with the limits the UI asks for
func (sc *SkillboardCache) WarmCache(ctx context.Context, service *Service) {
	popularLimits := []int{10, 25, 50}

	slog.Info("Starting skill leaderboard cache warming")

	for _, limit := range popularLimits {
		response, err := service.TopSkills(ctx, limit)
		if err != nil {
			slog.Error("Failed to warm skill leaderboard cache", "error", err, "limit", limit)
			continue
		}

		sc.SetTopSkills(limit, response)
		slog.Debug("Warmed skill leaderboard cache", "limit", limit)
	}

	slog.Info("Skill leaderboard cache warming completed")
}

// AutoRefresh sets up automatic cache refresh for leaderboard data
func (sc *SkillboardCache) AutoRefresh(ctx context.Context, service *Service, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				slog.Debug("Auto-refreshing skill leaderboard cache")
				sc.WarmCache(ctx, service)
			}
		}
	}()
}
