// Package pipeline orchestrates one candidate analysis: clone each
// repository, walk its history, profile its tree, score the candidate's
// evidence, and aggregate per-skill scores across repositories.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/chaincred/chaincred/internal/analysis"
	"github.com/chaincred/chaincred/internal/cache"
	apperrors "github.com/chaincred/chaincred/internal/errors"
	"github.com/chaincred/chaincred/internal/evidence"
	"github.com/chaincred/chaincred/internal/gitlog"
	"github.com/chaincred/chaincred/internal/monitoring"
	"github.com/chaincred/chaincred/internal/profile"
	"github.com/chaincred/chaincred/internal/repos"
	"github.com/chaincred/chaincred/internal/scoring"
	"github.com/chaincred/chaincred/internal/types"
)

// maxConcurrentRepos bounds clone/analysis fan-out per run.
const maxConcurrentRepos = 4

// Cloner materializes a repository working copy for a URL. Satisfied by
// *repos.Manager; tests substitute local fixtures.
type Cloner interface {
	Clone(ctx context.Context, url string) (string, func(), error)
}

// Runner executes candidate analyses. Repositories are analyzed
// independently: a failure in one is recorded on its report and never
// aborts the others. Only scoring invariant violations abort a run.
type Runner struct {
	cloner     Cloner
	source     gitlog.Source
	aggregator *analysis.Aggregator
	profiler   *profile.Profiler
	rules      *scoring.RuleEvaluator
	log        *monitoring.Logger

	// repoCache, when set, stores finished repository reports keyed by
	// URL and candidate identity so repeated analyses skip the clone.
	repoCache *cache.Cache
}

// NewRunner wires a runner from its collaborators. A nil logger gets the
// default structured logger.
func NewRunner(cloner Cloner, source gitlog.Source, log *monitoring.Logger) *Runner {
	if log == nil {
		log = monitoring.NewLogger()
	}
	return &Runner{
		cloner:     cloner,
		source:     source,
		aggregator: analysis.NewAggregator(),
		profiler:   profile.NewProfiler(),
		rules:      scoring.NewRuleEvaluator(),
		log:        log,
	}
}

// WithCache enables per-repository result caching.
func (r *Runner) WithCache(c *cache.Cache) *Runner {
	r.repoCache = c
	return r
}

// Run analyzes every repository in the candidate profile and aggregates
// per-skill scores across them.
func (r *Runner) Run(ctx context.Context, candidate types.CandidateProfile) (*types.AnalysisReport, error) {
	started := time.Now()
	report := &types.AnalysisReport{
		ID:             uuid.NewString(),
		CandidateName:  candidate.CandidateName,
		GithubUsername: candidate.GithubUsername,
		CreatedAt:      started.UTC(),
		Repositories:   make([]types.RepositoryReport, len(candidate.Repositories)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentRepos)
	for i, url := range candidate.Repositories {
		g.Go(func() error {
			repoStart := time.Now()
			repoReport, err := r.analyzeRepo(gctx, url, candidate)
			if err != nil {
				return err
			}
			commits := 0
			if repoReport.Contributor != nil {
				commits = repoReport.Contributor.Commits
			}
			r.log.RepositoryLogger(url, commits, repoReport.ContributionPct,
				repoReport.Skipped, time.Since(repoStart))
			report.Repositories[i] = repoReport
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, rr := range report.Repositories {
		if rr.Skipped {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("Skipped %s: %s", rr.URL, rr.SkipReason))
		}
	}

	report.ClaimedSkills, report.AdditionalSkills = r.aggregateSkills(candidate.Skills, report.Repositories)

	r.log.Info("analysis completed",
		"analysis_id", report.ID,
		"candidate", candidate.CandidateName,
		"repositories", len(candidate.Repositories),
		"skipped", len(report.Warnings),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return report, nil
}

// analyzeRepo produces one repository's report. I/O failures are folded
// into the report as a skip reason; only scoring invariant violations
// return an error.
func (r *Runner) analyzeRepo(ctx context.Context, url string, candidate types.CandidateProfile) (types.RepositoryReport, error) {
	report := types.RepositoryReport{URL: url}

	kind, normalized := repos.ClassifyURL(url)
	switch kind {
	case repos.URLProfile:
		report.Skipped = true
		report.SkipReason = "URL is a profile page, not a repository"
		return report, nil
	case repos.URLUnknown:
		report.Skipped = true
		report.SkipReason = "not a recognized repository URL"
		return report, nil
	}

	cacheKey := strings.Join([]string{normalized, candidate.CandidateName, candidate.GithubUsername}, "\x00")
	if r.repoCache != nil {
		if data, ok := r.repoCache.Get(cacheKey); ok {
			var cached types.RepositoryReport
			if err := json.Unmarshal(data, &cached); err == nil {
				r.log.Debug("repository report served from cache", "url", normalized)
				return cached, nil
			}
		}
	}

	path, cleanup, err := r.cloner.Clone(ctx, normalized)
	if err != nil {
		report.Skipped = true
		report.SkipReason = fmt.Sprintf("clone failed: %v", err)
		return report, nil
	}
	defer cleanup()

	commits, err := r.source.Commits(ctx, path)
	if err != nil {
		report.Skipped = true
		report.SkipReason = fmt.Sprintf("reading history failed: %v", err)
		return report, nil
	}

	agg := r.aggregator.Aggregate(commits)
	report.Warnings = agg.Warnings.Warnings
	report.Assumptions = agg.Warnings.Assumptions
	report.Bots = botReports(agg)

	if agg.Totals.Commits == 0 {
		return report, nil
	}

	stats := findCandidate(agg, candidate.CandidateName, candidate.GithubUsername)
	if stats == nil {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("Candidate %q not found among contributors.", candidate.CandidateName))
		return report, nil
	}
	if stats.IsBot {
		report.Skipped = true
		report.SkipReason = "matched contributor is classified as automation"
		return report, nil
	}

	contributionPct := analysis.AuthorshipPercentage(stats.LinesModified(), agg.Totals.LinesModified)
	report.ContributionPct = contributionPct

	summary, err := analysis.SkillScore(stats, &agg.Totals)
	if err != nil {
		return report, apperrors.NewScoringDefectError(err)
	}
	report.Contributor = &types.ContributorReport{
		Name:         stats.Name,
		Email:        stats.Email,
		Commits:      stats.Commits,
		LinesAdded:   stats.LinesAdded,
		LinesDeleted: stats.LinesDeleted,
		FilesChanged: stats.TouchedFiles(),
		IsBot:        false,
		Scores:       summary,
	}

	prof, err := r.profiler.Scan(ctx, path)
	if err != nil {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("Repository profiling failed: %v", err))
	}

	evidenceSet := evidence.NewDetector(path).DetectAll(stats.TouchedFiles())
	report.SkillScores = make(map[string]scoring.SkillScore, len(evidenceSet))
	for skill, ev := range evidenceSet {
		report.SkillScores[skill] = scoring.ScoreSkill(skill, *ev, contributionPct)
	}

	if prof != nil {
		ruleScores, err := r.rules.EvaluateAll(&scoring.EvalInput{
			RepoPath:      path,
			Profile:       prof,
			Commits:       stats.Commits,
			AuthorshipPct: contributionPct,
		})
		if err != nil {
			return report, apperrors.NewScoringDefectError(err)
		}
		report.RuleScores = ruleScores
		r.backfillHeuristics(&report, candidate.Skills, contributionPct)
	}

	if r.repoCache != nil {
		if data, err := json.Marshal(report); err == nil {
			r.repoCache.Set(cacheKey, data)
		}
	}
	return report, nil
}

// backfillHeuristics scores claimed skills that produced no direct file
// evidence but whose technology the rule table evaluated anyway.
func (r *Runner) backfillHeuristics(report *types.RepositoryReport, claimed []string, contributionPct float64) {
	for _, skill := range claimed {
		matched := false
		for detected := range report.SkillScores {
			if skillsMatch(skill, detected) {
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		key, ok := ruleKeyFor(skill)
		if !ok {
			continue
		}
		rr, ok := report.RuleScores[key]
		if !ok || rr.TotalScore == 0 {
			continue
		}
		report.SkillScores[skill] = heuristicSkillScore(skill, rr, contributionPct)
	}
}

// aggregateSkills combines per-repository skill scores into candidate-level
// results, separating claimed skills from additional detected ones.
func (r *Runner) aggregateSkills(claimed []string, reports []types.RepositoryReport) (claimedOut, additional []types.VerifiedSkill) {
	for _, skill := range claimed {
		var records []scoring.SkillScore
		for _, rr := range reports {
			for detected, score := range rr.SkillScores {
				if skillsMatch(skill, detected) {
					records = append(records, score)
				}
			}
		}

		var agg scoring.AggregateResult
		if len(records) == 0 {
			agg = scoring.AggregateResult{Reason: "Skill not detected in analyzed repositories"}
		} else {
			agg = scoring.Aggregate(records)
		}
		claimedOut = append(claimedOut, types.VerifiedSkill{
			Skill:     skill,
			Level:     scoring.SkillLevel(agg.FinalScore),
			Aggregate: agg,
		})
	}

	// Detected skills no claim accounted for, grouped case-insensitively
	// under the first spelling seen.
	extra := make(map[string][]scoring.SkillScore)
	display := make(map[string]string)
	for _, rr := range reports {
		for detected, score := range rr.SkillScores {
			claimedMatch := false
			for _, skill := range claimed {
				if skillsMatch(skill, detected) {
					claimedMatch = true
					break
				}
			}
			if claimedMatch {
				continue
			}
			key := strings.ToLower(detected)
			extra[key] = append(extra[key], score)
			if _, ok := display[key]; !ok {
				display[key] = detected
			}
		}
	}
	for key, records := range extra {
		agg := scoring.Aggregate(records)
		additional = append(additional, types.VerifiedSkill{
			Skill:     display[key],
			Level:     scoring.SkillLevel(agg.FinalScore),
			Aggregate: agg,
		})
	}
	sort.Slice(additional, func(i, j int) bool {
		if additional[i].Aggregate.FinalScore != additional[j].Aggregate.FinalScore {
			return additional[i].Aggregate.FinalScore > additional[j].Aggregate.FinalScore
		}
		return additional[i].Skill < additional[j].Skill
	})
	return claimedOut, additional
}

func botReports(agg *analysis.Aggregate) []types.BotReport {
	keys := agg.Bots()
	sort.Strings(keys)
	bots := make([]types.BotReport, 0, len(keys))
	for _, key := range keys {
		stats := agg.Contributors[key]
		bots = append(bots, types.BotReport{
			Name:    stats.Name,
			Email:   stats.Email,
			Commits: stats.Commits,
		})
	}
	return bots
}
