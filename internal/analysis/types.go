package analysis

import (
	"sort"
	"time"
)

// ContributorStats accumulates raw per-author counts during one repository
// traversal. It is keyed by a normalized author identity and never re-keyed.
type ContributorStats struct {
	Name  string
	Email string

	Commits      int
	LinesAdded   int
	LinesDeleted int
	FilesChanged map[string]struct{}
	Messages     []string
	Timestamps   []time.Time
	FileTypes    map[string]int
	// ChurnSizes records insertions+deletions per commit, in commit order.
	ChurnSizes []int
	ChurnRate  float64
	IsBot      bool
}

// LinesModified is the contributor's total line-level change volume.
func (c *ContributorStats) LinesModified() int {
	return c.LinesAdded + c.LinesDeleted
}

// TouchedFiles returns the contributor's file set as a sorted slice, so
// reports built from it are deterministic.
func (c *ContributorStats) TouchedFiles() []string {
	files := make([]string, 0, len(c.FilesChanged))
	for f := range c.FilesChanged {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// RepoTotals is the repository-wide context computed by the aggregator. It is
// read-only once aggregation completes; scoring functions receive it
// explicitly instead of each contributor carrying a private copy.
type RepoTotals struct {
	Commits int
	// CommitsExcludingBots is the denominator for commit-share figures so
	// automation does not deflate human contributors.
	CommitsExcludingBots int
	LinesModified        int
	AllFiles             map[string]struct{}
	FileExtensions       map[string]int
	BotCount             int
}

// Aggregate is the complete output of one repository's commit walk.
type Aggregate struct {
	// Contributors maps normalized identity keys to accumulated stats.
	Contributors map[string]*ContributorStats
	Totals       RepoTotals
	Warnings     *Warnings
}

// Humans returns the non-bot contributor keys.
func (a *Aggregate) Humans() []string {
	keys := make([]string, 0, len(a.Contributors))
	for key, stats := range a.Contributors {
		if !stats.IsBot {
			keys = append(keys, key)
		}
	}
	return keys
}

// Bots returns the contributor keys classified as automation. They are
// reported separately, never silently dropped.
func (a *Aggregate) Bots() []string {
	keys := make([]string, 0)
	for key, stats := range a.Contributors {
		if stats.IsBot {
			keys = append(keys, key)
		}
	}
	return keys
}
