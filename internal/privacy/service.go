// Package privacy enforces the retention policy over stored analysis
// data: scheduled purging of old runs and on-demand deletion of a
// candidate's reports.
package privacy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chaincred/chaincred/internal/database"
)

// DefaultRetentionDays is how long analysis runs are kept before the
// scheduled cleanup removes them.
const DefaultRetentionDays = 180

// Service handles retention enforcement and candidate data deletion
type Service struct {
	store         *database.Store
	retentionDays int
}

// NewService creates a new privacy service
func NewService(store *database.Store, retentionDays int) *Service {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return &Service{
		store:         store,
		retentionDays: retentionDays,
	}
}

// DeleteCandidateData removes all stored analysis runs for a candidate.
// Returns the number of runs deleted.
func (s *Service) DeleteCandidateData(ctx context.Context, candidateName string) (int64, error) {
	if candidateName == "" {
		return 0, fmt.Errorf("candidate name is required")
	}

	deleted, err := s.store.DeleteByCandidate(ctx, candidateName)
	if err != nil {
		return 0, fmt.Errorf("failed to delete candidate data: %w", err)
	}

	slog.Info("Candidate data deleted", "candidate", candidateName, "runs_deleted", deleted)
	return deleted, nil
}

// RunCleanup purges analysis runs older than the retention window.
// Returns the number of runs removed.
func (s *Service) RunCleanup(ctx context.Context) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)

	purged, err := s.store.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("retention cleanup failed: %w", err)
	}

	slog.Info("Retention cleanup completed", "cutoff", cutoff, "runs_purged", purged)
	return purged, nil
}

// StartScheduler runs the retention cleanup on an interval until the
// context is cancelled.
func (s *Service) StartScheduler(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.RunCleanup(ctx); err != nil {
					slog.Error("Scheduled retention cleanup failed", "error", err)
				}
			}
		}
	}()

	slog.Info("Retention scheduler started",
		"interval", interval,
		"retention_days", s.retentionDays)
}

// RetentionInfo describes the active retention policy
func (s *Service) RetentionInfo() map[string]interface{} {
	return map[string]interface{}{
		"analysis_retention_days":     s.retentionDays,
		"cache_retention_minutes":     15,
		"deletion_scope":              "all runs and skill records for the candidate",
		"data_deletion_response_time": "immediate",
	}
}
