package gitlog

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Author identifies who wrote a commit.
type Author struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Commit is one immutable record from a repository's history. All downstream
// statistics derive from these; nothing mutates them after parsing.
type Commit struct {
	Hash       string    `json:"hash"`
	Author     Author    `json:"author"`
	When       time.Time `json:"when"`
	Message    string    `json:"message"`
	Insertions int       `json:"insertions"`
	Deletions  int       `json:"deletions"`
	Files      []string  `json:"files"`
}

// Source produces the full commit stream for a repository in chronological
// ascending order.
type Source interface {
	Commits(ctx context.Context, repoPath string) ([]Commit, error)
}

// Record and field separators keep multi-line commit messages parseable.
const (
	recordSep = "\x1e"
	fieldSep  = "\x1f"
	logFormat = "%x1e%H%x1f%an%x1f%ae%x1f%ct%x1f%B%x1f"
)

// CLISource reads history by shelling out to the git binary.
type CLISource struct{}

// NewCLISource returns a Source backed by the local git executable.
func NewCLISource() *CLISource {
	return &CLISource{}
}

// Commits runs `git log --reverse --numstat` against the repository at
// repoPath and parses the output. An empty repository yields an empty slice,
// not an error.
func (s *CLISource) Commits(ctx context.Context, repoPath string) ([]Commit, error) {
	cmd := exec.CommandContext(ctx, "git", "log", "--reverse", "--numstat",
		"--pretty=format:"+logFormat)
	cmd.Dir = repoPath

	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			stderr := strings.TrimSpace(string(exitErr.Stderr))
			// A freshly initialized repository has no HEAD yet.
			if strings.Contains(stderr, "does not have any commits") {
				return nil, nil
			}
			return nil, fmt.Errorf("git log failed in %s: %w (stderr: %s)", repoPath, err, stderr)
		}
		return nil, fmt.Errorf("git log failed in %s: %w", repoPath, err)
	}

	return parseLog(string(output))
}

// parseLog splits raw `git log` output into commits. Records are delimited by
// 0x1e, fields within a record by 0x1f; the tail of each record carries the
// numstat block.
func parseLog(raw string) ([]Commit, error) {
	var commits []Commit

	for _, record := range strings.Split(raw, recordSep) {
		if strings.TrimSpace(record) == "" {
			continue
		}

		fields := strings.SplitN(record, fieldSep, 6)
		if len(fields) < 6 {
			return nil, fmt.Errorf("malformed log record: %q", truncate(record, 120))
		}

		ts, err := strconv.ParseInt(strings.TrimSpace(fields[3]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed commit timestamp %q: %w", fields[3], err)
		}

		commit := Commit{
			Hash:    strings.TrimSpace(fields[0]),
			Author:  Author{Name: fields[1], Email: fields[2]},
			When:    time.Unix(ts, 0).UTC(),
			Message: strings.TrimSpace(fields[4]),
		}

		for _, line := range strings.Split(fields[5], "\n") {
			added, deleted, path, ok := parseNumstatLine(line)
			if !ok {
				continue
			}
			commit.Insertions += added
			commit.Deletions += deleted
			commit.Files = append(commit.Files, path)
		}

		commits = append(commits, commit)
	}

	return commits, nil
}

// parseNumstatLine parses one `added<TAB>deleted<TAB>path` line. Binary files
// report "-" for both counts and contribute zero lines but still count as a
// touched file.
func parseNumstatLine(line string) (added, deleted int, path string, ok bool) {
	parts := strings.SplitN(strings.TrimRight(line, "\r"), "\t", 3)
	if len(parts) != 3 || parts[2] == "" {
		return 0, 0, "", false
	}

	added = parseCount(parts[0])
	deleted = parseCount(parts[1])
	if added < 0 || deleted < 0 {
		return 0, 0, "", false
	}

	return added, deleted, normalizeRenamePath(parts[2]), true
}

func parseCount(s string) int {
	if s == "-" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}

// normalizeRenamePath resolves git's rename notation ("dir/{old => new}/f.go"
// or "old.go => new.go") to the post-rename path.
func normalizeRenamePath(path string) string {
	if open := strings.Index(path, "{"); open >= 0 {
		if arrow := strings.Index(path[open:], " => "); arrow >= 0 {
			if close := strings.Index(path[open:], "}"); close >= 0 {
				prefix := path[:open]
				newPart := path[open+arrow+4 : open+close]
				suffix := path[open+close+1:]
				return strings.ReplaceAll(prefix+newPart+suffix, "//", "/")
			}
		}
	}
	if arrow := strings.Index(path, " => "); arrow >= 0 {
		return path[arrow+4:]
	}
	return path
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
