// Package evidence finds concrete traces of a skill in the files a
// contributor actually touched: file extensions, import statements, and
// framework or database usage patterns.
package evidence

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Evidence is the proof collected for one skill, split by channel. A
// skill with every channel empty has no evidence at all.
type Evidence struct {
	Files    []string `json:"files"`
	Imports  []string `json:"imports"`
	Patterns []string `json:"patterns"`
}

// Empty reports whether no channel carries anything.
func (e Evidence) Empty() bool {
	return len(e.Files) == 0 && len(e.Imports) == 0 && len(e.Patterns) == 0
}

// Set maps skill names to their collected evidence.
type Set map[string]*Evidence

// For returns the evidence for a skill, falling back to a
// case-insensitive match, then to an empty record.
func (s Set) For(skill string) Evidence {
	if ev, ok := s[skill]; ok {
		return *ev
	}
	for name, ev := range s {
		if strings.EqualFold(name, skill) {
			return *ev
		}
	}
	return Evidence{}
}

func (s Set) ensure(skill string) *Evidence {
	ev, ok := s[skill]
	if !ok {
		ev = &Evidence{}
		s[skill] = ev
	}
	return ev
}

// One file extension can imply several skills (.tsx is both TypeScript
// and React).
var extensionSkills = map[string][]string{
	".py":    {"Python"},
	".js":    {"JavaScript"},
	".jsx":   {"JavaScript", "React"},
	".ts":    {"TypeScript"},
	".tsx":   {"TypeScript", "React"},
	".java":  {"Java"},
	".cpp":   {"C++"},
	".c":     {"C"},
	".cs":    {"C#"},
	".rb":    {"Ruby"},
	".go":    {"Go"},
	".rs":    {"Rust"},
	".php":   {"PHP"},
	".html":  {"HTML"},
	".css":   {"CSS"},
	".scss":  {"CSS", "SASS"},
	".sass":  {"CSS", "SASS"},
	".sql":   {"SQL"},
	".r":     {"R"},
	".m":     {"MATLAB"},
	".swift": {"Swift"},
	".kt":    {"Kotlin"},
	".scala": {"Scala"},
}

type contentPattern struct {
	source string
	re     *regexp.Regexp
}

func compilePatterns(sources ...string) []contentPattern {
	patterns := make([]contentPattern, 0, len(sources))
	for _, src := range sources {
		patterns = append(patterns, contentPattern{
			source: src,
			re:     regexp.MustCompile("(?i)" + src),
		})
	}
	return patterns
}

type skillPatterns struct {
	skill    string
	patterns []contentPattern
}

var importPatterns = []skillPatterns{
	{"React", compilePatterns(
		`from\s+["']react["']`,
		`import\s+React`,
		`import\s+\{[^}]*\}\s+from\s+["']react["']`,
	)},
	{"Flask", compilePatterns(
		`from\s+flask\s+import`,
		`import\s+flask`,
	)},
	{"Django", compilePatterns(
		`from\s+django`,
		`import\s+django`,
	)},
	{"Express", compilePatterns(
		`require\(["']express["']\)`,
		`from\s+["']express["']`,
	)},
	{"Vue", compilePatterns(
		`from\s+["']vue["']`,
		`import\s+Vue`,
	)},
	{"Angular", compilePatterns(
		`from\s+["']@angular`,
		`import\s+\{[^}]*\}\s+from\s+["']@angular`,
	)},
	{"Node.js", compilePatterns(
		`require\(["'][^"']+["']\)`,
		`process\.env`,
	)},
	{"TailwindCSS", compilePatterns(
		`@tailwind`,
		`tailwindcss`,
	)},
	{"Bootstrap", compilePatterns(
		`bootstrap`,
		`class="[^"]*\b(btn|container|row|col-)`,
	)},
	{"Next.js", compilePatterns(
		`from\s+["']next`,
		`import\s+\{[^}]*\}\s+from\s+["']next`,
	)},
	{"FastAPI", compilePatterns(
		`from\s+fastapi`,
		`import\s+FastAPI`,
	)},
	{"Spring", compilePatterns(
		`import\s+org\.springframework`,
		`@SpringBootApplication`,
	)},
}

var databasePatterns = []skillPatterns{
	{"SQL", compilePatterns(`SELECT\s+`, `INSERT\s+INTO`, `CREATE\s+TABLE`, `UPDATE\s+`)},
	{"MongoDB", compilePatterns(`mongoose`, `mongodb`, `\.find\(`, `\.aggregate\(`)},
	{"PostgreSQL", compilePatterns(`postgresql`, `psycopg2`, `pg\.Pool`)},
	{"MySQL", compilePatterns(`mysql`, `pymysql`)},
	{"Redis", compilePatterns(`redis`, `\.hset\(`, `\.get\(`)},
	{"Firebase", compilePatterns(`firebase`, `firestore`)},
}

// Root manifest and lock files mapped to the skill they imply.
var packageFiles = map[string][]string{
	"Node.js": {"package.json", "package-lock.json", "yarn.lock"},
	"Python":  {"requirements.txt", "setup.py", "Pipfile", "pyproject.toml"},
	"Ruby":    {"Gemfile", "Gemfile.lock"},
	"Java":    {"pom.xml", "build.gradle"},
	"PHP":     {"composer.json"},
	"Go":      {"go.mod", "go.sum"},
	"Rust":    {"Cargo.toml", "Cargo.lock"},
}

// Detector collects skill evidence from one repository working copy.
type Detector struct {
	repoPath string
}

func NewDetector(repoPath string) *Detector {
	return &Detector{repoPath: repoPath}
}

// DetectAll merges the three channels for the given touched files.
// Channels are never deduplicated against each other; the same file may
// show up as extension evidence and import evidence.
func (d *Detector) DetectAll(touchedFiles []string) Set {
	set := Set{}
	d.fromExtensions(touchedFiles, set)
	d.fromContents(touchedFiles, set)
	d.fromPackages(set)
	return set
}

func (d *Detector) fromExtensions(files []string, set Set) {
	for _, file := range files {
		ext := strings.ToLower(filepath.Ext(file))
		for _, skill := range extensionSkills[ext] {
			ev := set.ensure(skill)
			ev.Files = append(ev.Files, file)
		}
	}
}

// fromContents scans each readable touched file once. Per file and skill
// group only the first matching pattern is recorded.
func (d *Detector) fromContents(files []string, set Set) {
	for _, file := range files {
		content, ok := d.readText(file)
		if !ok {
			continue
		}

		for _, group := range importPatterns {
			for _, p := range group.patterns {
				if p.re.MatchString(content) {
					ev := set.ensure(group.skill)
					ev.Imports = append(ev.Imports, file+": "+p.source)
					break
				}
			}
		}

		for _, group := range databasePatterns {
			for _, p := range group.patterns {
				if p.re.MatchString(content) {
					ev := set.ensure(group.skill)
					ev.Patterns = append(ev.Patterns, file+": "+p.source)
					break
				}
			}
		}
	}
}

// fromPackages records a weak signal per skill whose manifest or lock
// file sits at the repository root, regardless of touched files.
func (d *Detector) fromPackages(set Set) {
	for skill, names := range packageFiles {
		for _, name := range names {
			if _, err := os.Stat(filepath.Join(d.repoPath, name)); err == nil {
				ev := set.ensure(skill)
				ev.Patterns = append(ev.Patterns, "Package file detected")
				break
			}
		}
	}
}

// readText loads a touched file if it still exists in the working copy
// and looks like text. Deleted and binary files yield no content
// evidence.
func (d *Detector) readText(file string) (string, bool) {
	path := filepath.Join(d.repoPath, file)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return "", false
	}
	return string(data), true
}
