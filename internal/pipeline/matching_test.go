package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaincred/chaincred/internal/analysis"
	"github.com/chaincred/chaincred/internal/gitlog"
	"github.com/chaincred/chaincred/internal/scoring"
)

func aggregateOf(t *testing.T, authors ...gitlog.Author) *analysis.Aggregate {
	t.Helper()
	commits := make([]gitlog.Commit, 0, len(authors))
	when := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, a := range authors {
		commits = append(commits, gitlog.Commit{
			Author:     a,
			When:       when.AddDate(0, 0, i),
			Message:    "update handling",
			Insertions: 10,
			Deletions:  2,
			Files:      []string{"main.py"},
		})
	}
	return analysis.NewAggregator().Aggregate(commits)
}

func TestFindCandidate(t *testing.T) {
	t.Run("exact name wins over case-insensitive", func(t *testing.T) {
		agg := aggregateOf(t,
			gitlog.Author{Name: "JANE DOE", Email: "jd@corp.example"},
			gitlog.Author{Name: "Jane Doe", Email: "jane@example.com"},
		)
		stats := findCandidate(agg, "Jane Doe", "")
		require.NotNil(t, stats)
		assert.Equal(t, "Jane Doe", stats.Name)
	})

	t.Run("case-insensitive fallback", func(t *testing.T) {
		agg := aggregateOf(t, gitlog.Author{Name: "JANE DOE", Email: "jd@corp.example"})
		stats := findCandidate(agg, "jane doe", "")
		require.NotNil(t, stats)
		assert.Equal(t, "JANE DOE", stats.Name)
	})

	t.Run("name part substring", func(t *testing.T) {
		agg := aggregateOf(t, gitlog.Author{Name: "doe-j", Email: "dj@example.com"})
		stats := findCandidate(agg, "Jane Q. Doe", "")
		require.NotNil(t, stats)
		assert.Equal(t, "doe-j", stats.Name)
	})

	t.Run("github username substring", func(t *testing.T) {
		agg := aggregateOf(t, gitlog.Author{Name: "janedoe99", Email: "x@example.com"})
		stats := findCandidate(agg, "Someone Else", "janedoe")
		require.NotNil(t, stats)
		assert.Equal(t, "janedoe99", stats.Name)
	})

	t.Run("no match", func(t *testing.T) {
		agg := aggregateOf(t, gitlog.Author{Name: "Bob", Email: "bob@example.com"})
		assert.Nil(t, findCandidate(agg, "Jane Doe", "janedoe"))
	})
}

func TestSkillsMatch(t *testing.T) {
	tests := []struct {
		claimed, detected string
		want              bool
	}{
		{"React", "React", true},
		{"react", "React", true},
		{"React", "React.js", true},
		{"Node", "Node.js", true},
		{"Java", "JavaScript", true}, // substring matching is deliberately loose
		{"Kubernetes", "React", false},
		{"", "React", false},
		{"React", "", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, skillsMatch(tt.claimed, tt.detected),
			"claimed=%q detected=%q", tt.claimed, tt.detected)
	}
}

func TestRuleKeyFor(t *testing.T) {
	tests := []struct {
		skill string
		key   string
		ok    bool
	}{
		{"React", "React", true},
		{"Node.JS", "NodeJS", true},
		{"  tailwind css ", "TailwindCSS", true},
		{"cpp", "C++", true},
		{"golang", "", false},
	}
	for _, tt := range tests {
		key, ok := ruleKeyFor(tt.skill)
		assert.Equal(t, tt.ok, ok, tt.skill)
		assert.Equal(t, tt.key, key, tt.skill)
	}
}

func TestHeuristicSkillScore(t *testing.T) {
	rr := scoring.RuleResult{TotalScore: 76, MaxScore: 100}

	t.Run("high contribution keeps full score", func(t *testing.T) {
		s := heuristicSkillScore("Python", rr, 80.0)
		assert.Equal(t, 76.0, s.FinalScore)
		assert.Equal(t, scoring.TierHigh, s.Tier)
		assert.True(t, s.Verified)
		assert.Equal(t, "heuristic", s.Source)
		assert.Equal(t, "Full score applied (80.0% contribution)", s.Reason)
	})

	t.Run("low contribution caps at 40", func(t *testing.T) {
		s := heuristicSkillScore("Python", rr, 8.0)
		assert.Equal(t, 40.0, s.FinalScore)
		assert.Equal(t, "Capped due to 8.0% contribution (max 40)", s.Reason)
	})

	t.Run("insufficient contribution forces zero", func(t *testing.T) {
		s := heuristicSkillScore("Python", rr, 2.0)
		assert.Equal(t, 0.0, s.FinalScore)
		assert.Equal(t, scoring.TierInsufficient, s.Tier)
	})
}
