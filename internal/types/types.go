package types

import (
	"time"

	"github.com/chaincred/chaincred/internal/analysis"
	"github.com/chaincred/chaincred/internal/scoring"
)

// CandidateProfile is the analyze request: a claimed skill list plus the
// repositories to verify it against. Produced upstream by resume parsing;
// consumed here as opaque input.
type CandidateProfile struct {
	CandidateName  string   `json:"candidate_name" binding:"required"`
	GithubUsername string   `json:"github_username"`
	Skills         []string `json:"skills" binding:"required"`
	Repositories   []string `json:"repositories" binding:"required"`
}

// ContributorReport is the per-repository view of the matched contributor:
// raw counts, the sorted set of files touched, and the four weighted
// sub-scores with their combination.
type ContributorReport struct {
	Name         string                `json:"name"`
	Email        string                `json:"email"`
	Commits      int                   `json:"commits"`
	LinesAdded   int                   `json:"lines_added"`
	LinesDeleted int                   `json:"lines_deleted"`
	FilesChanged []string              `json:"files_changed"`
	IsBot        bool                  `json:"is_bot"`
	Scores       analysis.ScoreSummary `json:"scores"`
}

// BotReport lists an automated identity with its raw counts intact. Bots are
// excluded from ranking and denominators but never silently dropped.
type BotReport struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Commits int    `json:"commits"`
}

// RepositoryReport is one repository's complete analysis for the candidate.
type RepositoryReport struct {
	URL             string                        `json:"url"`
	Contributor     *ContributorReport            `json:"contributor,omitempty"`
	ContributionPct float64                       `json:"contribution_pct"`
	SkillScores     map[string]scoring.SkillScore `json:"skill_scores,omitempty"`
	RuleScores      map[string]scoring.RuleResult `json:"rule_scores,omitempty"`
	Bots            []BotReport                   `json:"bots,omitempty"`
	Warnings        []string                      `json:"warnings,omitempty"`
	Assumptions     []string                      `json:"assumptions,omitempty"`
	Skipped         bool                          `json:"skipped,omitempty"`
	SkipReason      string                        `json:"skip_reason,omitempty"`
}

// VerifiedSkill pairs an aggregated cross-repository score with the
// human-readable level derived from it.
type VerifiedSkill struct {
	Skill     string                  `json:"skill"`
	Level     string                  `json:"level"`
	Aggregate scoring.AggregateResult `json:"aggregate"`
}

// AnalysisReport is the full result of one analyze run.
type AnalysisReport struct {
	ID               string             `json:"id"`
	CandidateName    string             `json:"candidate_name"`
	GithubUsername   string             `json:"github_username,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	Repositories     []RepositoryReport `json:"repositories"`
	ClaimedSkills    []VerifiedSkill    `json:"claimed_skills"`
	AdditionalSkills []VerifiedSkill    `json:"additional_skills,omitempty"`
	Warnings         []string           `json:"warnings,omitempty"`
}

// TopSkill is one row of the detected-skill leaderboard across stored runs.
type TopSkill struct {
	Skill        string  `json:"skill"`
	Count        int     `json:"count"`
	AverageScore float64 `json:"average_score"`
}
