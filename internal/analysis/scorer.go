package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"
)

// Weights for the combined per-contributor skill score. They intentionally
// sum to 0.90, reserving 0.10 for future signals.
var scoreWeights = struct {
	codeQuality          float64
	authorshipConfidence float64
	commitMaturity       float64
	projectComplexity    float64
}{0.35, 0.25, 0.20, 0.10}

const (
	minMeaningfulWords   = 3
	messageQualityWeight = 40.0
	churnRateWeight      = 30.0
	fileDiversityWeight  = 30.0
	diversityMultiplier  = 10.0

	optimalMinCommitSize = 50.0
	optimalMaxCommitSize = 200.0
	optimalMinInterval   = 1.0
	optimalMaxInterval   = 7.0
	optimalIntervalMid   = 4.0

	fileCoverageWeight  = 40.0
	techDiversityWeight = 30.0
	techDiversityFactor = 15.0
	volumeWeight        = 30.0
	volumeDivisor       = 50.0
)

// ScoreSummary carries the combined skill score and its four sub-scores,
// each independently bounded in [0, 100].
type ScoreSummary struct {
	SkillScore           float64 `json:"skill_score"`
	CodeQuality          float64 `json:"code_quality"`
	AuthorshipConfidence float64 `json:"authorship_confidence"`
	CommitMaturity       float64 `json:"commit_maturity"`
	ProjectComplexity    float64 `json:"project_complexity"`
}

// SkillScore computes the weighted per-contributor summary:
// 0.35*quality + 0.25*authorship + 0.20*maturity + 0.10*complexity.
// Any sub-score outside [0, 100] is a scoring defect and returns a hard
// error; bounds are never silently clamped.
func SkillScore(stats *ContributorStats, totals *RepoTotals) (ScoreSummary, error) {
	quality, err := validateScore(CodeQuality(stats), "code quality")
	if err != nil {
		return ScoreSummary{}, err
	}

	authorship, err := validateScore(
		AuthorshipPercentage(stats.LinesModified(), totals.LinesModified),
		"authorship confidence")
	if err != nil {
		return ScoreSummary{}, err
	}

	maturity, err := validateScore(CommitMaturity(stats), "commit maturity")
	if err != nil {
		return ScoreSummary{}, err
	}

	complexity, err := validateScore(ProjectComplexity(stats, totals), "project complexity")
	if err != nil {
		return ScoreSummary{}, err
	}

	combined := scoreWeights.codeQuality*quality +
		scoreWeights.authorshipConfidence*authorship +
		scoreWeights.commitMaturity*maturity +
		scoreWeights.projectComplexity*complexity

	combined, err = validateScore(combined, "skill score")
	if err != nil {
		return ScoreSummary{}, err
	}

	return ScoreSummary{
		SkillScore:           round2(combined),
		CodeQuality:          round2(quality),
		AuthorshipConfidence: round2(authorship),
		CommitMaturity:       round2(maturity),
		ProjectComplexity:    round2(complexity),
	}, nil
}

// CodeQuality scores commit message quality, churn inverse, and file-type
// diversity on a 0-100 scale.
func CodeQuality(stats *ContributorStats) float64 {
	meaningful := 0
	for _, msg := range stats.Messages {
		if len(strings.Fields(msg)) > minMeaningfulWords {
			meaningful++
		}
	}
	messageQuality := float64(meaningful) / float64(max(len(stats.Messages), 1)) * messageQualityWeight

	churnScore := (1 - stats.ChurnRate) * churnRateWeight

	fileDiversity := math.Min(float64(len(stats.FileTypes))*diversityMultiplier, fileDiversityWeight)

	return math.Min(messageQuality+churnScore+fileDiversity, 100)
}

// CommitMaturity scores average per-commit change size (moderate commits in
// the 50-200 line band score best) plus commit-interval consistency
// (a 1-7 day cadence scores best).
func CommitMaturity(stats *ContributorStats) float64 {
	sizeSum := 0
	for _, size := range stats.ChurnSizes {
		sizeSum += size
	}
	avgSize := float64(sizeSum) / float64(max(len(stats.ChurnSizes), 1))

	var sizeScore float64
	switch {
	case avgSize >= optimalMinCommitSize && avgSize <= optimalMaxCommitSize:
		sizeScore = 60
	case avgSize < optimalMinCommitSize:
		sizeScore = 40
	default:
		sizeScore = math.Max(20, 60-(avgSize-optimalMaxCommitSize)/10)
	}

	consistencyScore := 20.0
	if len(stats.Timestamps) > 1 {
		sorted := make([]int64, 0, len(stats.Timestamps))
		for _, ts := range stats.Timestamps {
			sorted = append(sorted, ts.Unix())
		}
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		totalDays := 0
		for i := 0; i+1 < len(sorted); i++ {
			totalDays += int((sorted[i+1] - sorted[i]) / 86400)
		}
		avgInterval := float64(totalDays) / float64(len(sorted)-1)

		if avgInterval >= optimalMinInterval && avgInterval <= optimalMaxInterval {
			consistencyScore = 40
		} else {
			consistencyScore = math.Max(10, 40-math.Abs(avgInterval-optimalIntervalMid)*2)
		}
	}

	return math.Min(sizeScore+consistencyScore, 100)
}

// ProjectComplexity scores file coverage, technology diversity, and code
// volume relative to the whole repository.
func ProjectComplexity(stats *ContributorStats, totals *RepoTotals) float64 {
	touched := float64(len(stats.FilesChanged)) / float64(max(len(totals.AllFiles), 1))
	fileCoverage := math.Min(touched*100, fileCoverageWeight)

	techDiversity := math.Min(float64(len(stats.FileTypes))*techDiversityFactor, techDiversityWeight)

	volumeScore := math.Min(float64(stats.LinesAdded)/volumeDivisor, volumeWeight)

	return math.Min(fileCoverage+techDiversity+volumeScore, 100)
}

// validateScore enforces the [0, 100] bound. A violation indicates a defect
// in scoring logic and is surfaced as an error, not clamped.
func validateScore(score float64, name string) (float64, error) {
	if score < 0 || score > 100 {
		return 0, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("%s out of bounds: %.2f (must be within [0, 100])", name, score))
	}
	return score, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
