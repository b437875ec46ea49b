// Package scoring turns collected evidence and repository context into
// skill scores: evidence-based base scores capped by contribution tier,
// rule-table evaluation per technology, and cross-repository aggregation.
package scoring

import (
	"fmt"
	"math"

	"github.com/chaincred/chaincred/internal/evidence"
)

// Tier buckets a contributor's share of a repository's line changes.
type Tier string

const (
	TierInsufficient Tier = "insufficient"
	TierLow          Tier = "low"
	TierMedium       Tier = "medium"
	TierHigh         Tier = "high"
)

// Contribution thresholds in percent.
const (
	insufficientBelow = 5.0
	lowBelow          = 10.0
	mediumBelow       = 30.0
)

// Score ceilings per tier.
var tierCaps = map[Tier]float64{
	TierInsufficient: 0,
	TierLow:          40,
	TierMedium:       60,
	TierHigh:         100,
}

// Evidence channel weights for the base score.
const (
	perFilePoints    = 5
	perImportPoints  = 10
	perPatternPoints = 10
	maxFilePoints    = 40
	maxImportPoints  = 30
	maxPatternPoints = 30
)

// SkillScore is the per-repository scoring record for one claimed skill.
type SkillScore struct {
	Skill           string            `json:"skill"`
	Verified        bool              `json:"verified"`
	BaseScore       float64           `json:"base_score"`
	FinalScore      float64           `json:"final_score"`
	Tier            Tier              `json:"tier"`
	ContributionPct float64           `json:"contribution_pct"`
	Reason          string            `json:"reason"`
	Evidence        evidence.Evidence `json:"evidence"`
	FilesCount      int               `json:"files_count"`
	ImportsCount    int               `json:"imports_count"`
	PatternsCount   int               `json:"patterns_count"`
	// Source is set when the score came from somewhere other than direct
	// file evidence (e.g. rule-table heuristics).
	Source string `json:"source,omitempty"`
}

// TierFor buckets a contribution percentage.
func TierFor(contributionPct float64) Tier {
	switch {
	case contributionPct < insufficientBelow:
		return TierInsufficient
	case contributionPct < lowBelow:
		return TierLow
	case contributionPct < mediumBelow:
		return TierMedium
	default:
		return TierHigh
	}
}

// BaseScore weighs the three evidence channels before any capping:
// up to 40 points for files, 30 for imports, 30 for patterns.
func BaseScore(ev evidence.Evidence) float64 {
	score := 0.0
	if n := len(ev.Files); n > 0 {
		score += math.Min(maxFilePoints, float64(n*perFilePoints))
	}
	if n := len(ev.Imports); n > 0 {
		score += math.Min(maxImportPoints, float64(n*perImportPoints))
	}
	if n := len(ev.Patterns); n > 0 {
		score += math.Min(maxPatternPoints, float64(n*perPatternPoints))
	}
	return math.Min(100, score)
}

// ApplyCap caps a base score by the contributor's tier. Insufficient
// contribution forces the score to zero regardless of evidence.
func ApplyCap(baseScore, contributionPct float64) (float64, Tier, string) {
	tier := TierFor(contributionPct)
	if tier == TierInsufficient {
		reason := fmt.Sprintf("Contribution too low (%.1f%% < %.1f%%)",
			contributionPct, insufficientBelow)
		return 0, tier, reason
	}

	ceiling := tierCaps[tier]
	capped := math.Min(baseScore, ceiling)
	if capped < baseScore {
		return capped, tier, fmt.Sprintf("Capped due to %.1f%% contribution (max %.0f)",
			contributionPct, ceiling)
	}
	return capped, tier, fmt.Sprintf("Full score applied (%.1f%% contribution)", contributionPct)
}

// ScoreSkill produces the complete record for one skill in one
// repository. Verified tracks evidence presence only and survives even a
// forced-zero score.
func ScoreSkill(skill string, ev evidence.Evidence, contributionPct float64) SkillScore {
	base := BaseScore(ev)
	final, tier, reason := ApplyCap(base, contributionPct)

	return SkillScore{
		Skill:           skill,
		Verified:        !ev.Empty(),
		BaseScore:       base,
		FinalScore:      final,
		Tier:            tier,
		ContributionPct: contributionPct,
		Reason:          reason,
		Evidence:        ev,
		FilesCount:      len(ev.Files),
		ImportsCount:    len(ev.Imports),
		PatternsCount:   len(ev.Patterns),
	}
}

// SkillLevel labels a 0-100 score for display.
func SkillLevel(score float64) string {
	switch {
	case score >= 70:
		return "expert"
	case score >= 50:
		return "advanced"
	case score >= 30:
		return "intermediate"
	default:
		return "beginner"
	}
}
