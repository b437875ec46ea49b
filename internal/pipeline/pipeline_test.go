package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaincred/chaincred/internal/cache"
	"github.com/chaincred/chaincred/internal/gitlog"
	"github.com/chaincred/chaincred/internal/monitoring"
	"github.com/chaincred/chaincred/internal/scoring"
	"github.com/chaincred/chaincred/internal/types"
)

// fakeCloner maps URLs onto local fixture directories.
type fakeCloner struct {
	paths  map[string]string
	clones int
}

func (f *fakeCloner) Clone(_ context.Context, url string) (string, func(), error) {
	path, ok := f.paths[url]
	if !ok {
		return "", nil, errors.New("remote unreachable")
	}
	f.clones++
	return path, func() {}, nil
}

// fakeSource returns the same fabricated history for every path.
type fakeSource struct {
	commits []gitlog.Commit
}

func (f *fakeSource) Commits(_ context.Context, _ string) ([]gitlog.Commit, error) {
	return f.commits, nil
}

func writeReactFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))

	packageJSON := `{
  "name": "app",
  "dependencies": {
    "react": "^18.2.0",
    "react-dom": "^18.2.0"
  }
}`
	appJSX := `import React from "react";
import { useState, useEffect } from "react";

export default function App() {
  const [count, setCount] = useState(0);
  useEffect(() => {
    document.title = "count " + count;
  }, [count]);
  return <button onClick={() => setCount(count + 1)}>{count}</button>;
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(packageJSON), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "App.jsx"), []byte(appJSX), 0o644))
	return dir
}

func reactHistory() []gitlog.Commit {
	jane := gitlog.Author{Name: "Jane Doe", Email: "jane@example.com"}
	bob := gitlog.Author{Name: "Bob Smith", Email: "bob@example.com"}
	bot := gitlog.Author{Name: "dependabot[bot]", Email: "support@github.com"}
	base := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)

	return []gitlog.Commit{
		{Author: jane, When: base, Message: "add application shell and build config",
			Insertions: 150, Deletions: 20, Files: []string{"package.json", "src/App.jsx"}},
		{Author: jane, When: base.AddDate(0, 0, 2), Message: "wire counter state into the view",
			Insertions: 100, Deletions: 40, Files: []string{"src/App.jsx"}},
		{Author: jane, When: base.AddDate(0, 0, 5), Message: "sync document title with counter",
			Insertions: 50, Deletions: 40, Files: []string{"src/App.jsx"}},
		{Author: bob, When: base.AddDate(0, 0, 6), Message: "fix readme typo",
			Insertions: 40, Deletions: 10, Files: []string{"README.md"}},
		{Author: bot, When: base.AddDate(0, 0, 7), Message: "chore(deps): bump react",
			Insertions: 30, Deletions: 20, Files: []string{"package.json"}},
	}
}

func TestRunAnalyzesRepository(t *testing.T) {
	fixture := writeReactFixture(t)
	url := "https://github.com/jane/app"
	runner := NewRunner(
		&fakeCloner{paths: map[string]string{url: fixture}},
		&fakeSource{commits: reactHistory()},
		nil,
	)

	report, err := runner.Run(context.Background(), types.CandidateProfile{
		CandidateName: "Jane Doe",
		Skills:        []string{"React", "Kubernetes"},
		Repositories:  []string{url},
	})
	require.NoError(t, err)
	require.Len(t, report.Repositories, 1)

	repo := report.Repositories[0]
	assert.False(t, repo.Skipped)
	require.NotNil(t, repo.Contributor)
	assert.Equal(t, "Jane Doe", repo.Contributor.Name)
	assert.Equal(t, 3, repo.Contributor.Commits)
	assert.Equal(t, 300, repo.Contributor.LinesAdded)
	assert.Equal(t, 100, repo.Contributor.LinesDeleted)
	assert.Equal(t, []string{"package.json", "src/App.jsx"}, repo.Contributor.FilesChanged)

	// Jane changed 400 of the 500 modified lines.
	assert.InDelta(t, 80.0, repo.ContributionPct, 0.001)

	// Extension + import evidence for React; the dependency manifest
	// contributes a weak Node.js signal.
	require.Contains(t, repo.SkillScores, "React")
	react := repo.SkillScores["React"]
	assert.True(t, react.Verified)
	assert.Equal(t, 15.0, react.BaseScore)
	assert.Equal(t, 15.0, react.FinalScore)
	assert.Equal(t, scoring.TierHigh, react.Tier)
	assert.Contains(t, repo.SkillScores, "JavaScript")
	assert.Contains(t, repo.SkillScores, "Node.js")

	// Rule table: presence 20 + 2 hooks (6) + tiny codebase (0) +
	// 3 commits (0) + 80% authorship (20).
	require.Contains(t, repo.RuleScores, "React")
	assert.Equal(t, 46, repo.RuleScores["React"].TotalScore)
	assert.Len(t, repo.RuleScores["React"].Breakdown, 5)

	// One automated contributor, reported but never scored.
	require.Len(t, repo.Bots, 1)
	assert.Equal(t, "dependabot[bot]", repo.Bots[0].Name)

	require.Len(t, report.ClaimedSkills, 2)
	claimedReact := report.ClaimedSkills[0]
	assert.Equal(t, "React", claimedReact.Skill)
	assert.True(t, claimedReact.Aggregate.Verified)
	assert.Equal(t, 15.0, claimedReact.Aggregate.FinalScore)
	assert.Equal(t, 1, claimedReact.Aggregate.ReposUsed)

	kubernetes := report.ClaimedSkills[1]
	assert.Equal(t, "Kubernetes", kubernetes.Skill)
	assert.False(t, kubernetes.Aggregate.Verified)
	assert.Equal(t, 0.0, kubernetes.Aggregate.FinalScore)
	assert.Equal(t, "Skill not detected in analyzed repositories", kubernetes.Aggregate.Reason)

	// Unclaimed detections surface separately, highest score first.
	require.Len(t, report.AdditionalSkills, 2)
	assert.Equal(t, "Node.js", report.AdditionalSkills[0].Skill)
	assert.Equal(t, "JavaScript", report.AdditionalSkills[1].Skill)
}

func TestRunIsolatesRepositoryFailures(t *testing.T) {
	fixture := writeReactFixture(t)
	good := "https://github.com/jane/app"
	bad := "https://github.com/jane/unreachable"
	profileURL := "https://github.com/janedoe"

	runner := NewRunner(
		&fakeCloner{paths: map[string]string{good: fixture}},
		&fakeSource{commits: reactHistory()},
		nil,
	)

	report, err := runner.Run(context.Background(), types.CandidateProfile{
		CandidateName: "Jane Doe",
		Skills:        []string{"React"},
		Repositories:  []string{bad, profileURL, good},
	})
	require.NoError(t, err)
	require.Len(t, report.Repositories, 3)

	assert.True(t, report.Repositories[0].Skipped)
	assert.Contains(t, report.Repositories[0].SkipReason, "clone failed")

	assert.True(t, report.Repositories[1].Skipped)
	assert.Contains(t, report.Repositories[1].SkipReason, "profile page")

	assert.False(t, report.Repositories[2].Skipped)
	require.NotNil(t, report.Repositories[2].Contributor)

	assert.Len(t, report.Warnings, 2)

	// Aggregation still works off the one analyzable repository.
	require.Len(t, report.ClaimedSkills, 1)
	assert.True(t, report.ClaimedSkills[0].Aggregate.Verified)
}

func TestRunEmptyRepository(t *testing.T) {
	fixture := t.TempDir()
	url := "https://github.com/jane/empty"
	runner := NewRunner(
		&fakeCloner{paths: map[string]string{url: fixture}},
		&fakeSource{commits: nil},
		nil,
	)

	report, err := runner.Run(context.Background(), types.CandidateProfile{
		CandidateName: "Jane Doe",
		Skills:        []string{"Python"},
		Repositories:  []string{url},
	})
	require.NoError(t, err)
	require.Len(t, report.Repositories, 1)

	repo := report.Repositories[0]
	assert.False(t, repo.Skipped)
	assert.Nil(t, repo.Contributor)
	assert.Empty(t, repo.SkillScores)
	require.NotEmpty(t, repo.Warnings)
	assert.Contains(t, repo.Warnings[0], "no commits")
}

func TestRunCandidateNotFound(t *testing.T) {
	fixture := writeReactFixture(t)
	url := "https://github.com/jane/app"
	runner := NewRunner(
		&fakeCloner{paths: map[string]string{url: fixture}},
		&fakeSource{commits: reactHistory()},
		nil,
	)

	report, err := runner.Run(context.Background(), types.CandidateProfile{
		CandidateName: "Unrelated Person",
		Skills:        []string{"React"},
		Repositories:  []string{url},
	})
	require.NoError(t, err)

	repo := report.Repositories[0]
	assert.False(t, repo.Skipped)
	assert.Nil(t, repo.Contributor)

	found := false
	for _, w := range repo.Warnings {
		if strings.Contains(w, "not found among contributors") {
			found = true
		}
	}
	assert.True(t, found, "expected a candidate-not-found warning, got %v", repo.Warnings)
}

func TestRunLogsEachRepositoryOutcome(t *testing.T) {
	fixture := writeReactFixture(t)
	analyzed := "https://github.com/jane/app"
	profileURL := "https://github.com/janedoe"

	var buf bytes.Buffer
	log := &monitoring.Logger{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}
	runner := NewRunner(
		&fakeCloner{paths: map[string]string{analyzed: fixture}},
		&fakeSource{commits: reactHistory()},
		log,
	)

	_, err := runner.Run(context.Background(), types.CandidateProfile{
		CandidateName: "Jane Doe",
		Skills:        []string{"React"},
		Repositories:  []string{analyzed, profileURL},
	})
	require.NoError(t, err)

	logged := buf.String()
	assert.Equal(t, 2, strings.Count(logged, "Repository Analyzed"))
	assert.Contains(t, logged, analyzed)
	assert.Contains(t, logged, `"skipped":true`)
	assert.Contains(t, logged, `"skipped":false,`)
	assert.Contains(t, logged, `"commits":3`)
}

func TestRunServesRepeatAnalysisFromCache(t *testing.T) {
	fixture := writeReactFixture(t)
	url := "https://github.com/jane/app"
	cloner := &fakeCloner{paths: map[string]string{url: fixture}}
	runner := NewRunner(cloner, &fakeSource{commits: reactHistory()}, nil).
		WithCache(cache.NewCache(time.Minute))

	candidate := types.CandidateProfile{
		CandidateName: "Jane Doe",
		Skills:        []string{"React"},
		Repositories:  []string{url},
	}

	first, err := runner.Run(context.Background(), candidate)
	require.NoError(t, err)
	second, err := runner.Run(context.Background(), candidate)
	require.NoError(t, err)

	assert.Equal(t, 1, cloner.clones)
	assert.Equal(t, first.Repositories[0].SkillScores, second.Repositories[0].SkillScores)
	assert.Equal(t, first.Repositories[0].ContributionPct, second.Repositories[0].ContributionPct)
}

func TestBackfillHeuristics(t *testing.T) {
	runner := NewRunner(&fakeCloner{}, &fakeSource{}, nil)

	report := types.RepositoryReport{
		SkillScores: map[string]scoring.SkillScore{},
		RuleScores: map[string]scoring.RuleResult{
			"Python": {TotalScore: 64, MaxScore: 100},
		},
	}
	runner.backfillHeuristics(&report, []string{"Python", "golang"}, 75.0)

	require.Contains(t, report.SkillScores, "Python")
	score := report.SkillScores["Python"]
	assert.Equal(t, "heuristic", score.Source)
	assert.Equal(t, 64.0, score.FinalScore)
	assert.NotContains(t, report.SkillScores, "golang")
}
