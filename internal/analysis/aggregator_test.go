package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaincred/chaincred/internal/gitlog"
)

func day(n int) time.Time {
	return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func sampleCommits() []gitlog.Commit {
	alice := gitlog.Author{Name: "Alice Smith", Email: "alice@example.com"}
	bob := gitlog.Author{Name: "Bob Jones", Email: "bob@example.com"}
	bot := gitlog.Author{Name: "dependabot[bot]", Email: "support@dependabot.com"}

	return []gitlog.Commit{
		{Author: alice, When: day(0), Message: "feat: initial service scaffolding", Insertions: 120, Deletions: 0, Files: []string{"main.go", "api/server.go"}},
		{Author: alice, When: day(3), Message: "fix: handle empty request body", Insertions: 30, Deletions: 10, Files: []string{"api/server.go"}},
		{Author: bob, When: day(4), Message: "docs", Insertions: 15, Deletions: 5, Files: []string{"README.md"}},
		{Author: bot, When: day(5), Message: "chore: bump deps", Insertions: 2, Deletions: 2, Files: []string{"go.mod"}},
		{Author: gitlog.Author{Name: "alice smith", Email: "Alice@Example.com"}, When: day(8), Message: "refactor: extract handler package", Insertions: 50, Deletions: 40, Files: []string{"api/handler.go", "api/server.go"}},
	}
}

func TestAggregateContributorStats(t *testing.T) {
	agg := NewAggregator().Aggregate(sampleCommits())

	require.Len(t, agg.Contributors, 3)

	alice := agg.Contributors[identityKey(gitlog.Author{Name: "Alice Smith", Email: "alice@example.com"})]
	require.NotNil(t, alice)
	// Differently-cased identities merge into one record.
	assert.Equal(t, 3, alice.Commits)
	assert.Equal(t, 200, alice.LinesAdded)
	assert.Equal(t, 50, alice.LinesDeleted)
	assert.Len(t, alice.FilesChanged, 3)
	assert.Equal(t, []int{120, 40, 90}, alice.ChurnSizes)
	assert.InDelta(t, 50.0/250.0, alice.ChurnRate, 1e-9)
	assert.False(t, alice.IsBot)
	// Extension histogram counts touches, not distinct files.
	assert.Equal(t, 5, alice.FileTypes[".go"])
}

func TestAggregateTotals(t *testing.T) {
	agg := NewAggregator().Aggregate(sampleCommits())

	assert.Equal(t, 5, agg.Totals.Commits)
	assert.Equal(t, 4, agg.Totals.CommitsExcludingBots)
	assert.Equal(t, 274, agg.Totals.LinesModified)
	assert.Equal(t, 1, agg.Totals.BotCount)
	assert.Len(t, agg.Totals.AllFiles, 5)
	assert.Equal(t, 1, agg.Totals.FileExtensions[".md"])
	assert.Equal(t, 5, agg.Totals.FileExtensions[".go"])
	assert.Equal(t, 1, agg.Totals.FileExtensions[".mod"])
}

func TestAggregateContributorNeverExceedsTotal(t *testing.T) {
	agg := NewAggregator().Aggregate(sampleCommits())

	for _, stats := range agg.Contributors {
		assert.LessOrEqual(t, stats.LinesModified(), agg.Totals.LinesModified)
	}
}

func TestAggregateBotsReportedSeparately(t *testing.T) {
	agg := NewAggregator().Aggregate(sampleCommits())

	bots := agg.Bots()
	require.Len(t, bots, 1)
	botStats := agg.Contributors[bots[0]]
	// Raw counts stay intact for the automated-contributors report.
	assert.Equal(t, 1, botStats.Commits)
	assert.Equal(t, 2, botStats.LinesAdded)

	assert.Len(t, agg.Humans(), 2)
}

func TestAggregateEmptyRepository(t *testing.T) {
	agg := NewAggregator().Aggregate(nil)

	assert.Empty(t, agg.Contributors)
	assert.Zero(t, agg.Totals.Commits)
	require.True(t, agg.Warnings.HasWarnings())
	assert.Contains(t, agg.Warnings.Warnings[0], "no commits")
}

func TestAggregateWarnings(t *testing.T) {
	agg := NewAggregator().Aggregate(sampleCommits())

	require.True(t, agg.Warnings.HasWarnings())
	joined := ""
	for _, w := range agg.Warnings.Warnings {
		joined += w + "\n"
	}
	assert.Contains(t, joined, "bot/automated contributor")
	assert.Contains(t, joined, "Small repository")
}

func TestAggregateSingleContributorAssumption(t *testing.T) {
	alice := gitlog.Author{Name: "Alice", Email: "alice@example.com"}
	agg := NewAggregator().Aggregate([]gitlog.Commit{
		{Author: alice, When: day(0), Message: "initial commit with everything", Insertions: 10, Deletions: 0, Files: []string{"main.go"}},
	})

	require.Len(t, agg.Warnings.Assumptions, 1)
	assert.Contains(t, agg.Warnings.Assumptions[0], "100%")

	stats := agg.Contributors[identityKey(alice)]
	assert.Equal(t, 100.0, AuthorshipPercentage(stats.LinesModified(), agg.Totals.LinesModified))
}

func TestAuthorshipPercentage(t *testing.T) {
	tests := []struct {
		name     string
		author   int
		total    int
		expected float64
	}{
		{name: "zero total resolves to zero", author: 10, total: 0, expected: 0},
		{name: "half share", author: 50, total: 100, expected: 50},
		{name: "full share", author: 100, total: 100, expected: 100},
		{name: "capped at 100", author: 150, total: 100, expected: 100},
		{name: "zero author lines", author: 0, total: 100, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AuthorshipPercentage(tt.author, tt.total))
		})
	}
}
