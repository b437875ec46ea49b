package profile

import (
	"regexp"
	"sort"
	"strings"
)

// Quality captures tooling and documentation hygiene signals.
type Quality struct {
	HasLinterConfig    bool     `json:"has_linter_config"`
	HasFormatterConfig bool     `json:"has_formatter_config"`
	HasTypeChecking    bool     `json:"has_type_checking"`
	DocumentationRatio float64  `json:"documentation_ratio"`
	NamingScore        float64  `json:"naming_conventions_score"`
	ConfigFiles        []string `json:"config_files_found"`
}

var (
	knownConfigFiles = map[string]struct{}{
		".eslintrc": {}, ".eslintrc.js": {}, ".eslintrc.json": {},
		".prettierrc": {}, ".prettierrc.json": {},
		"pylint.rc": {}, ".pylintrc": {}, "setup.cfg": {},
		"tslint.json": {}, "tsconfig.json": {},
		".flake8": {}, "pyproject.toml": {},
	}
	linterConfigs = map[string]struct{}{
		".eslintrc": {}, ".eslintrc.js": {}, ".eslintrc.json": {},
		".pylintrc": {}, "pylint.rc": {}, ".flake8": {},
	}
	formatterConfigs = map[string]struct{}{
		".prettierrc": {}, ".prettierrc.json": {},
	}
	typeCheckConfigs = map[string]struct{}{
		"tsconfig.json": {}, "mypy.ini": {},
	}
)

var (
	jsDocFuncRe = regexp.MustCompile(`function\s+\w+|const\s+\w+\s*=.*=>|export\s+function`)
)

func analyzeQuality(idx *repoIndex) Quality {
	var q Quality

	// Tooling configs only count at the repository root.
	for name := range idx.rootFiles {
		if _, known := knownConfigFiles[name]; !known {
			continue
		}
		q.ConfigFiles = append(q.ConfigFiles, name)
		if _, ok := linterConfigs[name]; ok {
			q.HasLinterConfig = true
		}
		if _, ok := formatterConfigs[name]; ok {
			q.HasFormatterConfig = true
		}
		if _, ok := typeCheckConfigs[name]; ok {
			q.HasTypeChecking = true
		}
	}
	sort.Strings(q.ConfigFiles)

	q.DocumentationRatio = documentationRatio(idx)
	q.NamingScore = namingScore(idx)
	return q
}

// documentationRatio is the share of functions with an adjacent doc
// comment, across Python docstrings and JSDoc blocks.
func documentationRatio(idx *repoIndex) float64 {
	totalFuncs := 0
	documented := 0

	for _, entry := range idx.files {
		var f, d int
		switch entry.ext {
		case ".py":
			content, ok := idx.read(entry)
			if !ok {
				continue
			}
			f, d = countPythonDocstrings(content)
		case ".js", ".jsx", ".ts", ".tsx":
			content, ok := idx.read(entry)
			if !ok {
				continue
			}
			f, d = countJSDocComments(content)
		default:
			continue
		}
		totalFuncs += f
		documented += d
	}

	if totalFuncs == 0 {
		return 0
	}
	return float64(documented) / float64(totalFuncs) * 100
}

func countPythonDocstrings(content string) (funcs, documented int) {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if !pyFuncRe.MatchString(line) {
			continue
		}
		funcs++
		if i+1 < len(lines) {
			next := strings.TrimSpace(lines[i+1])
			if strings.HasPrefix(next, `"""`) || strings.HasPrefix(next, "'''") {
				documented++
			}
		}
	}
	return funcs, documented
}

func countJSDocComments(content string) (funcs, documented int) {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if !jsDocFuncRe.MatchString(line) {
			continue
		}
		funcs++
		if i > 0 {
			prev := strings.TrimSpace(lines[i-1])
			if strings.HasPrefix(prev, "/**") || strings.Contains(prev, "*/") {
				documented++
			}
		}
	}
	return funcs, documented
}

// namingScore checks filenames against each language's customary casing.
func namingScore(idx *repoIndex) float64 {
	score := 0
	checks := 0

	for _, entry := range idx.files {
		switch entry.ext {
		case ".py":
			if strings.Contains(entry.name, "_") || entry.name == strings.ToLower(entry.name) {
				score++
			}
			checks++
		case ".js", ".jsx", ".ts", ".tsx":
			first := rune(entry.name[0])
			if (first >= 'a' && first <= 'z') || (first >= 'A' && first <= 'Z') {
				score++
			}
			checks++
		}
	}

	if checks == 0 {
		return 0
	}
	return float64(score) / float64(checks) * 100
}
