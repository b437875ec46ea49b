package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaincred/chaincred/internal/scoring"
	"github.com/chaincred/chaincred/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := NewDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewStore(db)
}

func sampleReport(candidate string, createdAt time.Time, skills ...types.VerifiedSkill) *types.AnalysisReport {
	return &types.AnalysisReport{
		ID:             uuid.NewString(),
		CandidateName:  candidate,
		GithubUsername: "octocat",
		CreatedAt:      createdAt,
		Repositories: []types.RepositoryReport{
			{URL: "https://github.com/octocat/widgets", ContributionPct: 75},
			{URL: "https://github.com/octocat", Skipped: true, SkipReason: "URL is a profile page, not a repository"},
		},
		ClaimedSkills: skills,
		Warnings:      []string{"Skipped https://github.com/octocat: URL is a profile page, not a repository"},
	}
}

func verifiedSkill(name string, score float64, level string) types.VerifiedSkill {
	return types.VerifiedSkill{
		Skill: name,
		Level: level,
		Aggregate: scoring.AggregateResult{
			FinalScore: score,
			Verified:   true,
			ReposUsed:  1,
		},
	}
}

func TestSaveAndGetReport(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	report := sampleReport("Jane Doe", time.Now().UTC(),
		verifiedSkill("React", 72.5, "expert"))

	require.NoError(t, store.SaveReport(ctx, report))

	loaded, err := store.GetReport(ctx, report.ID)
	require.NoError(t, err)

	assert.Equal(t, report.ID, loaded.ID)
	assert.Equal(t, "Jane Doe", loaded.CandidateName)
	assert.Len(t, loaded.Repositories, 2)
	assert.True(t, loaded.Repositories[1].Skipped)
	require.Len(t, loaded.ClaimedSkills, 1)
	assert.Equal(t, "React", loaded.ClaimedSkills[0].Skill)
	assert.Equal(t, 72.5, loaded.ClaimedSkills[0].Aggregate.FinalScore)
}

func TestGetReportNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetReport(context.Background(), "no-such-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestListRecentOrdersNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	oldest := sampleReport("First", base)
	middle := sampleReport("Second", base.Add(time.Hour))
	newest := sampleReport("Third", base.Add(2*time.Hour))

	for _, r := range []*types.AnalysisReport{oldest, middle, newest} {
		require.NoError(t, store.SaveReport(ctx, r))
	}

	summaries, err := store.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "Third", summaries[0].CandidateName)
	assert.Equal(t, "Second", summaries[1].CandidateName)

	// Scalar columns come from the report.
	assert.Equal(t, 2, summaries[0].RepoCount)
	assert.Equal(t, 1, summaries[0].SkippedCount)
	assert.Equal(t, 1, summaries[0].WarningCount)
}

func TestTopSkillsGroupsCaseInsensitively(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	reports := []*types.AnalysisReport{
		sampleReport("A", now, verifiedSkill("React", 60, "advanced")),
		sampleReport("B", now, verifiedSkill("react", 80, "expert")),
		sampleReport("C", now, verifiedSkill("Python", 40, "intermediate")),
	}
	// Unverified skills stay off the leaderboard.
	reports[2].ClaimedSkills = append(reports[2].ClaimedSkills, types.VerifiedSkill{
		Skill:     "Kubernetes",
		Level:     "beginner",
		Aggregate: scoring.AggregateResult{Reason: "Skill not detected in analyzed repositories"},
	})

	for _, r := range reports {
		require.NoError(t, store.SaveReport(ctx, r))
	}

	skills, err := store.TopSkills(ctx, 10)
	require.NoError(t, err)
	require.Len(t, skills, 2)

	assert.Equal(t, 2, skills[0].Count)
	assert.Equal(t, 70.0, skills[0].AverageScore)
	assert.Equal(t, "Python", skills[1].Skill)
	assert.Equal(t, 1, skills[1].Count)
}

func TestPurgeOlderThan(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cutoff := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	old := sampleReport("Old", cutoff.AddDate(0, -2, 0), verifiedSkill("Django", 55, "advanced"))
	recent := sampleReport("Recent", cutoff.Add(time.Hour), verifiedSkill("React", 65, "advanced"))

	require.NoError(t, store.SaveReport(ctx, old))
	require.NoError(t, store.SaveReport(ctx, recent))

	purged, err := store.PurgeOlderThan(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	_, err = store.GetReport(ctx, old.ID)
	assert.Error(t, err)

	_, err = store.GetReport(ctx, recent.ID)
	assert.NoError(t, err)

	// The purged run's skill rows went with it.
	skills, err := store.TopSkills(ctx, 10)
	require.NoError(t, err)
	require.Len(t, skills, 1)
	assert.Equal(t, "React", skills[0].Skill)

	count, err := store.CountRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
