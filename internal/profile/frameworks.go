package profile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Confidence contributions per signal channel.
const (
	dependencySignal = 40
	markerFileSignal = 30
	codePatternScore = 30
	extensionBonus   = 10

	// Detections below this confidence are noise and never reported.
	minReportedConfidence = 50
)

type frameworkSignature struct {
	name         string
	manifest     string // package.json or requirements.txt
	dependencies []string
	markers      []string // filenames, or extensions when prefixed with a dot
	codePatterns []string
}

var frameworkSignatures = []frameworkSignature{
	{
		name:         "React",
		manifest:     "package.json",
		dependencies: []string{"react", "react-dom", "@types/react"},
		markers:      []string{".jsx", ".tsx"},
		codePatterns: []string{"import React", `from "react"`, "from 'react'"},
	},
	{
		name:         "Django",
		manifest:     "requirements.txt",
		dependencies: []string{"django", "Django"},
		markers:      []string{"manage.py", "settings.py", "wsgi.py"},
		codePatterns: []string{"from django", "import django", "models.Model"},
	},
	{
		name:         "Flask",
		manifest:     "requirements.txt",
		dependencies: []string{"flask", "Flask"},
		codePatterns: []string{"from flask", "Flask(__name__)"},
	},
	{
		name:         "NodeJS",
		manifest:     "package.json",
		dependencies: []string{"express", "fastify", "koa", "nest"},
		markers:      []string{"server.js", "app.js", "index.js"},
		codePatterns: []string{"require(", "app.listen(", "express()"},
	},
	{
		name:         "Vue",
		manifest:     "package.json",
		dependencies: []string{"vue"},
		markers:      []string{".vue"},
		codePatterns: []string{"Vue.component", "new Vue"},
	},
	{
		name:         "Angular",
		manifest:     "package.json",
		dependencies: []string{"@angular/core"},
		markers:      []string{"angular.json"},
		codePatterns: []string{"@Component", "@NgModule"},
	},
	{
		name:         "FastAPI",
		manifest:     "requirements.txt",
		dependencies: []string{"fastapi"},
		codePatterns: []string{"from fastapi", "FastAPI()"},
	},
	{
		name:         "Spring",
		manifest:     "pom.xml",
		markers:      []string{"pom.xml", "build.gradle"},
		codePatterns: []string{"@SpringBootApplication", "@Controller"},
	},
	{
		name:         "TailwindCSS",
		manifest:     "package.json",
		dependencies: []string{"tailwindcss"},
		markers:      []string{"tailwind.config.js", "tailwind.config.ts"},
		codePatterns: []string{"@tailwind", "@apply", "tailwind"},
	},
}

// Extensions worth scanning for framework code patterns.
var patternScanExts = map[string]struct{}{
	".py": {}, ".js": {}, ".jsx": {}, ".ts": {}, ".tsx": {},
	".java": {}, ".go": {}, ".rs": {},
}

// detectFrameworks scores every known framework against the index.
// Manifest dependencies weigh 40, marker files 30, code patterns 30, with
// a 10 point bonus when marker extensions are present alongside another
// signal. Only detections at or above 50 are reported.
func detectFrameworks(idx *repoIndex) map[string]Framework {
	patternHits := scanCodePatterns(idx)

	detected := make(map[string]Framework)
	for _, sig := range frameworkSignatures {
		score := 0
		signals := Signals{}

		if len(sig.dependencies) > 0 {
			signals.Dependencies = manifestDependencies(idx, sig.manifest, sig.dependencies)
			if len(signals.Dependencies) > 0 {
				score += dependencySignal
			}
		}

		markerFiles, markerExts := splitMarkers(sig.markers)
		if len(markerFiles) > 0 {
			signals.Files = findMarkerFiles(idx, markerFiles)
			if len(signals.Files) > 0 {
				score += markerFileSignal
			}
		}

		if len(sig.codePatterns) > 0 {
			signals.Patterns = matchedPatterns(patternHits, sig.codePatterns)
			if len(signals.Patterns) > 0 {
				score += codePatternScore
			}
		}

		if score > 0 && len(markerExts) > 0 && hasAnyExtension(idx, markerExts) {
			score += extensionBonus
		}

		if score >= minReportedConfidence {
			detected[sig.name] = Framework{
				Confidence: min(score, 100),
				Signals:    signals,
			}
		}
	}

	return detected
}

func splitMarkers(markers []string) (files, exts []string) {
	for _, m := range markers {
		if strings.HasPrefix(m, ".") {
			exts = append(exts, m)
		} else {
			files = append(files, m)
		}
	}
	return files, exts
}

// manifestDependencies reads the repo-root manifest and reports which of
// the wanted dependencies it declares. package.json is parsed; plain-text
// manifests fall back to a case-insensitive substring check.
func manifestDependencies(idx *repoIndex, manifest string, wanted []string) []string {
	if !idx.hasRootFile(manifest) {
		return nil
	}
	data, err := os.ReadFile(filepath.Join(idx.root, manifest))
	if err != nil {
		return nil
	}

	var found []string
	if manifest == "package.json" {
		var pkg struct {
			Dependencies    map[string]json.RawMessage `json:"dependencies"`
			DevDependencies map[string]json.RawMessage `json:"devDependencies"`
		}
		if err := json.Unmarshal(data, &pkg); err != nil {
			return nil
		}
		for _, dep := range wanted {
			if _, ok := pkg.Dependencies[dep]; ok {
				found = append(found, dep)
				continue
			}
			if _, ok := pkg.DevDependencies[dep]; ok {
				found = append(found, dep)
			}
		}
		return found
	}

	content := strings.ToLower(string(data))
	for _, dep := range wanted {
		if strings.Contains(content, strings.ToLower(dep)) {
			found = append(found, dep)
		}
	}
	return found
}

func findMarkerFiles(idx *repoIndex, names []string) []string {
	present := make(map[string]struct{})
	for _, entry := range idx.files {
		for _, name := range names {
			if entry.name == name {
				present[name] = struct{}{}
			}
		}
	}
	found := make([]string, 0, len(present))
	for name := range present {
		found = append(found, name)
	}
	sort.Strings(found)
	return found
}

func hasAnyExtension(idx *repoIndex, exts []string) bool {
	for _, entry := range idx.files {
		for _, ext := range exts {
			if entry.ext == ext {
				return true
			}
		}
	}
	return false
}

// scanCodePatterns reads each code file once and records every known
// framework pattern it contains.
func scanCodePatterns(idx *repoIndex) map[string]struct{} {
	all := make([]string, 0, 32)
	seen := make(map[string]struct{})
	for _, sig := range frameworkSignatures {
		for _, p := range sig.codePatterns {
			if _, dup := seen[p]; !dup {
				seen[p] = struct{}{}
				all = append(all, p)
			}
		}
	}

	hits := make(map[string]struct{})
	for _, entry := range idx.files {
		if _, ok := patternScanExts[entry.ext]; !ok {
			continue
		}
		content, ok := idx.read(entry)
		if !ok {
			continue
		}
		for _, p := range all {
			if _, done := hits[p]; done {
				continue
			}
			if strings.Contains(content, p) {
				hits[p] = struct{}{}
			}
		}
	}
	return hits
}

func matchedPatterns(hits map[string]struct{}, patterns []string) []string {
	var found []string
	for _, p := range patterns {
		if _, ok := hits[p]; ok {
			found = append(found, p)
		}
	}
	return found
}
