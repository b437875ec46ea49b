package database

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chaincred/chaincred/internal/types"
)

// RunSummary is the listing view of a stored analysis run. It carries
// the scalar columns only; the full report is fetched by ID.
type RunSummary struct {
	ID             string    `json:"id"`
	CandidateName  string    `json:"candidate_name"`
	GithubUsername string    `json:"github_username,omitempty"`
	RepoCount      int       `json:"repo_count"`
	SkippedCount   int       `json:"skipped_count"`
	WarningCount   int       `json:"warning_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// SkillRecord is one skill evaluated in one run, flattened for
// leaderboard aggregation.
type SkillRecord struct {
	ID         string    `json:"id"`
	RunID      string    `json:"run_id"`
	Skill      string    `json:"skill"`
	SkillKey   string    `json:"skill_key"`
	Level      string    `json:"level"`
	FinalScore float64   `json:"final_score"`
	Verified   bool      `json:"verified"`
	Claimed    bool      `json:"claimed"`
	ReposUsed  int       `json:"repos_used"`
	CreatedAt  time.Time `json:"created_at"`
}

// newSkillRecord flattens a verified skill into a leaderboard row.
func newSkillRecord(runID string, vs types.VerifiedSkill, claimed bool, at time.Time) SkillRecord {
	return SkillRecord{
		ID:         uuid.NewString(),
		RunID:      runID,
		Skill:      vs.Skill,
		SkillKey:   strings.ToLower(vs.Skill),
		Level:      vs.Level,
		FinalScore: vs.Aggregate.FinalScore,
		Verified:   vs.Aggregate.Verified,
		Claimed:    claimed,
		ReposUsed:  vs.Aggregate.ReposUsed,
		CreatedAt:  at,
	}
}

// summarize derives the scalar run columns from a report.
func summarize(report *types.AnalysisReport) RunSummary {
	skipped := 0
	for _, repo := range report.Repositories {
		if repo.Skipped {
			skipped++
		}
	}

	return RunSummary{
		ID:             report.ID,
		CandidateName:  report.CandidateName,
		GithubUsername: report.GithubUsername,
		RepoCount:      len(report.Repositories),
		SkippedCount:   skipped,
		WarningCount:   len(report.Warnings),
		CreatedAt:      report.CreatedAt,
	}
}
