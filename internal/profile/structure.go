package profile

import (
	"path/filepath"
	"strings"
)

// Structure describes how the repository tree is organized.
type Structure struct {
	TotalFiles           int            `json:"total_files"`
	TotalDirectories     int            `json:"total_directories"`
	MaxDepth             int            `json:"max_depth"`
	FileTypes            map[string]int `json:"file_types"`
	ArchitecturePatterns []string       `json:"architecture_patterns"`
	Modular              bool           `json:"modular_structure"`
	DjangoApps           int            `json:"django_apps"`
}

var (
	mvcDirs     = map[string]struct{}{"models": {}, "views": {}, "controllers": {}}
	serviceDirs = map[string]struct{}{"services": {}, "api": {}, "gateway": {}}
	layerDirs   = map[string]struct{}{
		"api": {}, "business": {}, "data": {},
		"domain": {}, "infrastructure": {}, "application": {},
	}
	modularCodeExts = map[string]struct{}{
		".py": {}, ".js": {}, ".ts": {}, ".java": {}, ".go": {},
	}
	djangoAppFiles = []string{"models.py", "views.py", "apps.py"}
)

func analyzeStructure(idx *repoIndex) Structure {
	s := Structure{
		TotalFiles:       len(idx.files),
		TotalDirectories: idx.dirCount,
		MaxDepth:         idx.maxDepth,
		FileTypes:        make(map[string]int),
	}

	for _, entry := range idx.files {
		ext := entry.ext
		if ext == "" {
			ext = "no_ext"
		}
		s.FileTypes[ext]++
	}

	s.ArchitecturePatterns = detectArchitecturePatterns(idx)
	s.Modular = len(s.ArchitecturePatterns) > 0
	s.DjangoApps = countDjangoApps(idx)

	return s
}

func detectArchitecturePatterns(idx *repoIndex) []string {
	dirNames := make(map[string]struct{})
	for dir := range idx.dirFiles {
		for dir != "." && dir != "" {
			dirNames[strings.ToLower(filepath.Base(dir))] = struct{}{}
			dir = filepath.Dir(dir)
		}
	}

	var patterns []string
	if countMatches(dirNames, mvcDirs) >= 2 {
		patterns = append(patterns, "MVC")
	}
	if hasMicroservicesLayout(idx, dirNames) {
		patterns = append(patterns, "Microservices")
	}
	if countMatches(dirNames, layerDirs) >= 2 {
		patterns = append(patterns, "Layered")
	}
	if hasModularLayout(idx) {
		patterns = append(patterns, "Modular")
	}
	return patterns
}

func countMatches(have map[string]struct{}, want map[string]struct{}) int {
	n := 0
	for name := range want {
		if _, ok := have[name]; ok {
			n++
		}
	}
	return n
}

func hasMicroservicesLayout(idx *repoIndex, dirNames map[string]struct{}) bool {
	for _, entry := range idx.files {
		if entry.name == "docker-compose.yml" || entry.name == "docker-compose.yaml" {
			return true
		}
	}
	return countMatches(dirNames, serviceDirs) > 0
}

// hasModularLayout reports whether more than three directories carry code
// files, a weak but useful signal of a deliberately split codebase.
func hasModularLayout(idx *repoIndex) bool {
	codeDirs := make(map[string]struct{})
	for _, entry := range idx.files {
		if _, ok := modularCodeExts[entry.ext]; ok {
			codeDirs[filepath.Dir(entry.rel)] = struct{}{}
		}
	}
	return len(codeDirs) > 3
}

// countDjangoApps counts directories that look like Django app modules,
// identified by models.py, views.py, or apps.py.
func countDjangoApps(idx *repoIndex) int {
	count := 0
	for _, names := range idx.dirFiles {
		for _, marker := range djangoAppFiles {
			if _, ok := names[marker]; ok {
				count++
				break
			}
		}
	}
	return count
}
