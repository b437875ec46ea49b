package scoring

import (
	"fmt"
	"math"
)

// AggregateResult combines one skill's per-repository scores into a
// single candidate-level score.
type AggregateResult struct {
	FinalScore        float64      `json:"final_score"`
	Verified          bool         `json:"verified"`
	ReposUsed         int          `json:"repos_used"`
	ReposInsufficient int          `json:"repos_insufficient"`
	WeightedAvg       float64      `json:"weighted_avg"`
	RepoDetails       []SkillScore `json:"repo_details,omitempty"`
	Reason            string       `json:"reason"`
}

// Aggregate averages a skill's scores across repositories, weighted by
// contribution percentage. Repositories with insufficient contribution
// are dropped first; if the remaining weights sum to zero the mean is
// unweighted. The result is rounded to one decimal.
func Aggregate(repoScores []SkillScore) AggregateResult {
	if len(repoScores) == 0 {
		return AggregateResult{Reason: "No evidence found in any repository"}
	}

	valid := make([]SkillScore, 0, len(repoScores))
	for _, s := range repoScores {
		if s.Tier != TierInsufficient {
			valid = append(valid, s)
		}
	}
	insufficient := len(repoScores) - len(valid)

	if len(valid) == 0 {
		return AggregateResult{
			ReposInsufficient: insufficient,
			Reason:            "Insufficient contribution in all repositories",
		}
	}

	totalWeight := 0.0
	for _, s := range valid {
		totalWeight += s.ContributionPct
	}

	var avg float64
	if totalWeight == 0 {
		for _, s := range valid {
			avg += s.FinalScore
		}
		avg /= float64(len(valid))
	} else {
		for _, s := range valid {
			avg += s.FinalScore * s.ContributionPct
		}
		avg /= totalWeight
	}
	avg = round1(avg)

	verified := false
	for _, s := range valid {
		if s.Verified {
			verified = true
			break
		}
	}

	return AggregateResult{
		FinalScore:        avg,
		Verified:          verified,
		ReposUsed:         len(valid),
		ReposInsufficient: insufficient,
		WeightedAvg:       avg,
		RepoDetails:       valid,
		Reason:            fmt.Sprintf("Aggregated from %d repo(s)", len(valid)),
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
