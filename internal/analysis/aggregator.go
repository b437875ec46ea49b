package analysis

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/chaincred/chaincred/internal/gitlog"
)

// Aggregator walks a repository's commit stream once and accumulates
// per-contributor statistics plus repository-wide totals. It records bots in
// its structures like any other contributor; classification only affects the
// effective commit total the caller uses for share calculations.
type Aggregator struct{}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// identityKey normalizes an author identity so the same person accumulates
// into one record regardless of name casing or stray whitespace. The key is
// created on first sight and never re-keyed.
func identityKey(author gitlog.Author) string {
	return strings.ToLower(strings.TrimSpace(author.Name)) + "\x00" +
		strings.ToLower(strings.TrimSpace(author.Email))
}

// Aggregate consumes the ordered commit stream of one repository. Commits
// must arrive in repository-native chronological order; interval statistics
// depend on it.
func (a *Aggregator) Aggregate(commits []gitlog.Commit) *Aggregate {
	agg := &Aggregate{
		Contributors: make(map[string]*ContributorStats),
		Totals: RepoTotals{
			AllFiles:       make(map[string]struct{}),
			FileExtensions: make(map[string]int),
		},
		Warnings: NewWarnings(),
	}

	for _, commit := range commits {
		agg.Totals.Commits++

		key := identityKey(commit.Author)
		stats, seen := agg.Contributors[key]
		if !seen {
			stats = &ContributorStats{
				Name:         commit.Author.Name,
				Email:        commit.Author.Email,
				FilesChanged: make(map[string]struct{}),
				FileTypes:    make(map[string]int),
				IsBot:        IsBot(commit.Author.Name, commit.Author.Email),
			}
			agg.Contributors[key] = stats
		}

		if stats.IsBot {
			if stats.Commits == 0 {
				agg.Totals.BotCount++
			}
		} else {
			agg.Totals.CommitsExcludingBots++
		}

		stats.Commits++
		stats.LinesAdded += commit.Insertions
		stats.LinesDeleted += commit.Deletions
		stats.Messages = append(stats.Messages, commit.Message)
		stats.Timestamps = append(stats.Timestamps, commit.When)
		stats.ChurnSizes = append(stats.ChurnSizes, commit.Insertions+commit.Deletions)

		agg.Totals.LinesModified += commit.Insertions + commit.Deletions

		for _, file := range commit.Files {
			stats.FilesChanged[file] = struct{}{}
			agg.Totals.AllFiles[file] = struct{}{}

			ext := extensionOf(file)
			stats.FileTypes[ext]++
			agg.Totals.FileExtensions[ext]++
		}
	}

	for _, stats := range agg.Contributors {
		stats.ChurnRate = float64(stats.LinesDeleted) / float64(max(stats.LinesModified(), 1))
	}

	a.collectWarnings(agg)
	return agg
}

func (a *Aggregator) collectWarnings(agg *Aggregate) {
	if agg.Totals.Commits == 0 {
		agg.Warnings.AddWarning("Repository has no commits; all contributor statistics are empty.")
		return
	}

	if agg.Totals.BotCount > 0 {
		agg.Warnings.AddWarning(fmt.Sprintf(
			"Detected %d bot/automated contributor(s). Bot commits excluded from skill scoring.",
			agg.Totals.BotCount))
	}

	if agg.Totals.Commits < 10 {
		agg.Warnings.AddWarning(fmt.Sprintf(
			"Small repository (%d commits). Skill scores may not be representative.",
			agg.Totals.Commits))
	}

	if len(agg.Humans()) == 1 {
		agg.Warnings.AddAssumption(
			"Single contributor detected. Authorship confidence set to 100%.")
	}
}

// AuthorshipPercentage is the one shared authorship formula:
// (lines modified by author / total lines modified in repo) x 100.
// Every breakdown and aggregate uses this exact computation.
func AuthorshipPercentage(authorLines, totalLines int) float64 {
	if totalLines == 0 {
		return 0.0
	}
	pct := float64(authorLines) / float64(totalLines) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

func extensionOf(file string) string {
	ext := strings.ToLower(filepath.Ext(file))
	if ext == "" {
		return "no_ext"
	}
	return ext
}
