package scoring

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Directories excluded from rule-evaluation scans.
var scanIgnoredDirs = map[string]struct{}{
	".git":         {},
	"node_modules": {},
	"venv":         {},
	".venv":        {},
	"__pycache__":  {},
}

// Extensions scanned when counting code patterns.
var scanCodeExts = map[string]struct{}{
	".py": {}, ".js": {}, ".jsx": {}, ".ts": {}, ".tsx": {},
}

func walkRepo(root string, visit func(path string, d fs.DirEntry)) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if _, skip := scanIgnoredDirs[d.Name()]; skip && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		visit(path, d)
		return nil
	})
}

// CountPatterns sums literal substring occurrences across the
// repository's scannable code files. Unreadable files are skipped.
func CountPatterns(root string, patterns []string) int {
	count := 0
	walkRepo(root, func(path string, d fs.DirEntry) {
		ext := strings.ToLower(filepath.Ext(d.Name()))
		if _, ok := scanCodeExts[ext]; !ok {
			return
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return
		}
		content := string(data)
		for _, p := range patterns {
			count += strings.Count(content, p)
		}
	})
	return count
}

// FindFiles reports which of the given filenames exist anywhere in the
// tree, deduplicated.
func FindFiles(root string, names []string) []string {
	found := make(map[string]struct{})
	walkRepo(root, func(path string, d fs.DirEntry) {
		for _, name := range names {
			if d.Name() == name {
				found[name] = struct{}{}
			}
		}
	})
	result := make([]string, 0, len(found))
	for name := range found {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// CountFilesByExt counts files carrying any of the given extensions.
func CountFilesByExt(root string, exts []string) int {
	count := 0
	walkRepo(root, func(path string, d fs.DirEntry) {
		ext := strings.ToLower(filepath.Ext(d.Name()))
		for _, want := range exts {
			if ext == want {
				count++
				return
			}
		}
	})
	return count
}
