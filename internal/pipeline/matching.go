package pipeline

import (
	"sort"
	"strings"

	"github.com/chaincred/chaincred/internal/analysis"
	"github.com/chaincred/chaincred/internal/scoring"
)

// findCandidate locates the candidate among a repository's contributors.
// Match order: exact name, case-insensitive name, any name part contained
// in a contributor name, then the platform username contained in a
// contributor name. Keys are tried in sorted order so ties resolve
// deterministically.
func findCandidate(agg *analysis.Aggregate, candidateName, githubUsername string) *analysis.ContributorStats {
	keys := make([]string, 0, len(agg.Contributors))
	for key := range agg.Contributors {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if agg.Contributors[key].Name == candidateName {
			return agg.Contributors[key]
		}
	}

	lowerName := strings.ToLower(candidateName)
	for _, key := range keys {
		if strings.ToLower(agg.Contributors[key].Name) == lowerName {
			return agg.Contributors[key]
		}
	}

	parts := strings.Fields(lowerName)
	for _, key := range keys {
		contributor := strings.ToLower(agg.Contributors[key].Name)
		for _, part := range parts {
			if part != "" && strings.Contains(contributor, part) {
				return agg.Contributors[key]
			}
		}
	}

	if username := strings.ToLower(githubUsername); username != "" {
		for _, key := range keys {
			if strings.Contains(strings.ToLower(agg.Contributors[key].Name), username) {
				return agg.Contributors[key]
			}
		}
	}

	return nil
}

// skillsMatch reports whether a claimed skill name and a detected skill
// name refer to the same technology: case-insensitive equality or either
// name containing the other ("React" matches "React.js").
func skillsMatch(claimed, detected string) bool {
	a := strings.ToLower(strings.TrimSpace(claimed))
	b := strings.ToLower(strings.TrimSpace(detected))
	if a == "" || b == "" {
		return false
	}
	return a == b || strings.Contains(a, b) || strings.Contains(b, a)
}

// ruleKeyBySkill maps normalized claimed-skill spellings onto rule-table
// keys so rule evaluation can back a claim that produced no direct file
// evidence.
var ruleKeyBySkill = map[string]string{
	"react":        "React",
	"react.js":     "React",
	"reactjs":      "React",
	"django":       "Django",
	"node":         "NodeJS",
	"node.js":      "NodeJS",
	"nodejs":       "NodeJS",
	"tailwind":     "TailwindCSS",
	"tailwindcss":  "TailwindCSS",
	"tailwind css": "TailwindCSS",
	"python":       "Python",
	"javascript":   "JavaScript",
	"js":           "JavaScript",
	"typescript":   "TypeScript",
	"ts":           "TypeScript",
	"c":            "C",
	"c++":          "C++",
	"cpp":          "C++",
}

// ruleKeyFor resolves a claimed skill to its rule-table key, if one exists.
func ruleKeyFor(skill string) (string, bool) {
	key, ok := ruleKeyBySkill[strings.ToLower(strings.TrimSpace(skill))]
	return key, ok
}

// heuristicSkillScore converts a rule-table evaluation into a skill score
// record for a claimed skill that had no direct evidence. The rule total
// stands in for the evidence base score and is capped by the same
// contribution tier as any other score.
func heuristicSkillScore(skill string, rr scoring.RuleResult, contributionPct float64) scoring.SkillScore {
	base := float64(rr.TotalScore)
	final, tier, reason := scoring.ApplyCap(base, contributionPct)

	return scoring.SkillScore{
		Skill:           skill,
		Verified:        rr.TotalScore > 0,
		BaseScore:       base,
		FinalScore:      final,
		Tier:            tier,
		ContributionPct: contributionPct,
		Reason:          reason,
		Source:          "heuristic",
	}
}
