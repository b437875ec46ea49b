package leaderboard

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaincred/chaincred/internal/database"
	"github.com/chaincred/chaincred/internal/scoring"
	"github.com/chaincred/chaincred/internal/types"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	db, err := database.NewDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewService(database.NewStore(db))
}

func reportWithSkill(candidate, skill string, score float64) *types.AnalysisReport {
	return &types.AnalysisReport{
		ID:            uuid.NewString(),
		CandidateName: candidate,
		CreatedAt:     time.Now().UTC(),
		Repositories: []types.RepositoryReport{
			{URL: "https://github.com/" + candidate + "/project", ContributionPct: 60},
		},
		ClaimedSkills: []types.VerifiedSkill{
			{
				Skill: skill,
				Level: "advanced",
				Aggregate: scoring.AggregateResult{
					FinalScore: score,
					Verified:   true,
					ReposUsed:  1,
				},
			},
		},
	}
}

func TestTopSkillsAggregatesStoredRuns(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.RecordRun(ctx, reportWithSkill("alice", "React", 60)))
	require.NoError(t, svc.RecordRun(ctx, reportWithSkill("bob", "react", 80)))
	require.NoError(t, svc.RecordRun(ctx, reportWithSkill("carol", "Django", 50)))

	response, err := svc.TopSkills(ctx, 10)
	require.NoError(t, err)

	require.Len(t, response.Skills, 2)
	assert.Equal(t, 2, response.Skills[0].Count)
	assert.Equal(t, 70.0, response.Skills[0].AverageScore)
	assert.Equal(t, "Django", response.Skills[1].Skill)
	assert.Equal(t, 2, response.Total)
	assert.False(t, response.GeneratedAt.IsZero())
}

func TestRecordRunInvalidatesCache(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.RecordRun(ctx, reportWithSkill("alice", "Python", 40)))

	first, err := svc.TopSkills(ctx, 10)
	require.NoError(t, err)
	require.Len(t, first.Skills, 1)
	assert.Equal(t, 1, first.Skills[0].Count)

	// A new run must show up even though the previous response was cached.
	require.NoError(t, svc.RecordRun(ctx, reportWithSkill("bob", "Python", 60)))

	second, err := svc.TopSkills(ctx, 10)
	require.NoError(t, err)
	require.Len(t, second.Skills, 1)
	assert.Equal(t, 2, second.Skills[0].Count)
	assert.Equal(t, 50.0, second.Skills[0].AverageScore)
}

func TestRecentAnalyses(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	older := reportWithSkill("alice", "React", 60)
	older.CreatedAt = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	newer := reportWithSkill("bob", "Django", 55)
	newer.CreatedAt = older.CreatedAt.Add(time.Hour)

	require.NoError(t, svc.RecordRun(ctx, older))
	require.NoError(t, svc.RecordRun(ctx, newer))

	summaries, err := svc.RecentAnalyses(ctx, 10)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "bob", summaries[0].CandidateName)
	assert.Equal(t, "alice", summaries[1].CandidateName)
}

func TestTopSkillsClampsLimit(t *testing.T) {
	svc := newTestService(t)

	response, err := svc.TopSkills(context.Background(), -3)
	require.NoError(t, err)
	assert.Empty(t, response.Skills)
}
