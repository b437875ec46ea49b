package profile

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Tests reports test presence, detected frameworks, and a rough coverage
// estimate. The estimate is a file-count ratio, never a measured figure.
type Tests struct {
	HasTests          bool     `json:"has_tests"`
	TestFileCount     int      `json:"test_files_count"`
	Frameworks        []string `json:"test_frameworks"`
	Files             []string `json:"test_files"`
	EstimatedCoverage float64  `json:"estimated_coverage"`
}

var testFilePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^test_.*\.py$`),
	regexp.MustCompile(`.*_test\.py$`),
	regexp.MustCompile(`.*\.test\.(js|ts|jsx|tsx)$`),
	regexp.MustCompile(`.*\.spec\.(js|ts|jsx|tsx)$`),
	regexp.MustCompile(`.*_test\.go$`),
}

var testFrameworkPatterns = map[string]*regexp.Regexp{
	"pytest":      regexp.MustCompile(`import pytest|from pytest`),
	"unittest":    regexp.MustCompile(`import unittest|from unittest`),
	"jest":        regexp.MustCompile(`describe\(|test\(|it\(`),
	"mocha":       regexp.MustCompile(`describe\(|it\(`),
	"jasmine":     regexp.MustCompile(`describe\(|it\(`),
	"django_test": regexp.MustCompile(`from django\.test`),
	"go_test":     regexp.MustCompile(`func Test\w+\(t \*testing\.T\)`),
}

var testableCodeExts = map[string]struct{}{
	".py": {}, ".js": {}, ".jsx": {}, ".ts": {}, ".tsx": {},
	".go": {}, ".java": {},
}

func detectTests(idx *repoIndex) Tests {
	var t Tests
	totalCodeFiles := 0
	frameworks := make(map[string]struct{})

	for _, entry := range idx.files {
		if _, ok := testableCodeExts[entry.ext]; ok {
			totalCodeFiles++
		}

		if !isTestFile(entry) {
			continue
		}
		t.TestFileCount++
		t.Files = append(t.Files, entry.rel)
		t.HasTests = true

		content, ok := idx.read(entry)
		if !ok {
			continue
		}
		for name, pattern := range testFrameworkPatterns {
			if pattern.MatchString(content) {
				frameworks[name] = struct{}{}
			}
		}
	}

	for name := range frameworks {
		t.Frameworks = append(t.Frameworks, name)
	}
	sort.Strings(t.Frameworks)

	if totalCodeFiles > 0 {
		ratio := float64(t.TestFileCount) / float64(totalCodeFiles)
		t.EstimatedCoverage = min(ratio*100, 100)
	}
	return t
}

// isTestFile matches either the filename conventions or a test-named
// directory anywhere on the path.
func isTestFile(entry fileEntry) bool {
	for _, pattern := range testFilePatterns {
		if pattern.MatchString(entry.name) {
			return true
		}
	}
	dir := filepath.Dir(entry.rel)
	return dir != "." && strings.Contains(strings.ToLower(dir), "test")
}
