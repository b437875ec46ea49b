package profile

import (
	"strings"
)

// languageTable maps languages to their extensions. Order matters: the
// first language claiming an extension wins, so C++ takes .h over C and
// JSX/TSX fold into JavaScript/TypeScript rather than counting separately.
var languageTable = []struct {
	name string
	exts []string
}{
	{"Python", []string{".py", ".pyw", ".pyx"}},
	{"JavaScript", []string{".js", ".mjs", ".cjs", ".jsx"}},
	{"TypeScript", []string{".ts", ".tsx"}},
	{"Java", []string{".java"}},
	{"C++", []string{".cpp", ".cc", ".cxx", ".hpp", ".h"}},
	{"C", []string{".c", ".h"}},
	{"Go", []string{".go"}},
	{"Rust", []string{".rs"}},
	{"Ruby", []string{".rb"}},
	{"PHP", []string{".php"}},
	{"Swift", []string{".swift"}},
	{"Kotlin", []string{".kt"}},
	{"HTML", []string{".html", ".htm"}},
	{"CSS", []string{".css", ".scss", ".sass", ".less"}},
}

func languageForExt(ext string) (string, bool) {
	for _, lang := range languageTable {
		for _, e := range lang.exts {
			if e == ext {
				return lang.name, true
			}
		}
	}
	return "", false
}

// detectLanguages counts lines per language over the indexed files.
func detectLanguages(idx *repoIndex) map[string]int {
	languages := make(map[string]int)

	for _, entry := range idx.files {
		lang, ok := languageForExt(entry.ext)
		if !ok {
			continue
		}
		content, ok := idx.read(entry)
		if !ok {
			continue
		}
		languages[lang] += countLines(content)
	}

	return languages
}

func countLines(content string) int {
	if content == "" {
		return 0
	}
	n := strings.Count(content, "\n")
	if !strings.HasSuffix(content, "\n") {
		n++
	}
	return n
}
