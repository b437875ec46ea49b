// Package profile derives a static picture of a repository working copy:
// languages, frameworks, complexity, structure, quality indicators, and
// test signals. The profiler walks the tree exactly once to build a file
// index; each sub-analyzer then reads only the files it cares about.
package profile

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"
)

// Directories that never carry contributor-authored code.
var ignoredDirs = map[string]struct{}{
	".git":         {},
	"node_modules": {},
	"venv":         {},
	".venv":        {},
	"__pycache__":  {},
	"dist":         {},
	"build":        {},
	"vendor":       {},
	"target":       {},
}

// Profile is the static analysis result for one repository.
type Profile struct {
	Languages  map[string]int       `json:"languages"`
	Frameworks map[string]Framework `json:"frameworks"`
	Complexity Complexity           `json:"complexity"`
	Structure  Structure            `json:"structure"`
	Quality    Quality              `json:"quality"`
	Tests      Tests                `json:"tests"`
}

// Framework reports a detected framework with its confidence and the
// signals that produced it.
type Framework struct {
	Confidence int     `json:"confidence"`
	Signals    Signals `json:"signals"`
}

// Signals lists the concrete evidence behind a framework detection.
type Signals struct {
	Dependencies []string `json:"dependencies_found"`
	Files        []string `json:"files_found"`
	Patterns     []string `json:"patterns_found"`
}

// HasDependencyEvidence reports whether the detection was backed by a
// manifest dependency, the strongest of the three signal channels.
func (f Framework) HasDependencyEvidence() bool {
	return len(f.Signals.Dependencies) > 0
}

type fileEntry struct {
	path  string // absolute
	rel   string
	name  string
	ext   string // lowercased, includes the dot
	depth int
}

type repoIndex struct {
	root      string
	files     []fileEntry
	dirCount  int
	maxDepth  int
	rootFiles map[string]struct{}
	// relative directory -> filenames present in it
	dirFiles map[string]map[string]struct{}
}

func (idx *repoIndex) read(e fileEntry) (string, bool) {
	data, err := os.ReadFile(e.path)
	if err != nil {
		return "", false
	}
	return string(data), true
}

func (idx *repoIndex) hasRootFile(name string) bool {
	_, ok := idx.rootFiles[name]
	return ok
}

// Profiler produces repository profiles. It is stateless and safe for
// concurrent use.
type Profiler struct{}

func NewProfiler() *Profiler { return &Profiler{} }

// Scan walks the repository once and runs every sub-analyzer over the
// resulting index.
func (p *Profiler) Scan(ctx context.Context, repoPath string) (*Profile, error) {
	idx, err := buildIndex(ctx, repoPath)
	if err != nil {
		return nil, err
	}

	return &Profile{
		Languages:  detectLanguages(idx),
		Frameworks: detectFrameworks(idx),
		Complexity: analyzeComplexity(idx),
		Structure:  analyzeStructure(idx),
		Quality:    analyzeQuality(idx),
		Tests:      detectTests(idx),
	}, nil
}

func buildIndex(ctx context.Context, repoPath string) (*repoIndex, error) {
	idx := &repoIndex{
		root:      repoPath,
		rootFiles: make(map[string]struct{}),
		dirFiles:  make(map[string]map[string]struct{}),
	}

	err := filepath.WalkDir(repoPath, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == repoPath {
				return walkErr
			}
			return nil // unreadable entries are skipped, not fatal
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(repoPath, path)
		if err != nil {
			return nil
		}

		if d.IsDir() {
			if _, skip := ignoredDirs[d.Name()]; skip && path != repoPath {
				return filepath.SkipDir
			}
			if path != repoPath {
				idx.dirCount++
				depth := strings.Count(rel, string(os.PathSeparator)) + 1
				if depth > idx.maxDepth {
					idx.maxDepth = depth
				}
			}
			return nil
		}

		dir := filepath.Dir(rel)
		entry := fileEntry{
			path:  path,
			rel:   rel,
			name:  d.Name(),
			ext:   strings.ToLower(filepath.Ext(d.Name())),
			depth: strings.Count(rel, string(os.PathSeparator)),
		}
		idx.files = append(idx.files, entry)

		if dir == "." {
			idx.rootFiles[d.Name()] = struct{}{}
		}
		byDir, ok := idx.dirFiles[dir]
		if !ok {
			byDir = make(map[string]struct{})
			idx.dirFiles[dir] = byDir
		}
		byDir[d.Name()] = struct{}{}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("repository path is not walkable: " + repoPath).
			WithCause(err)
	}

	return idx, nil
}
