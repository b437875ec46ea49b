package profile

import (
	"regexp"
	"strings"
)

// Complexity holds line-level and declaration-level size metrics across
// the repository's code files.
type Complexity struct {
	TotalLines        int     `json:"total_lines"`
	CodeLines         int     `json:"code_lines"`
	CommentLines      int     `json:"comment_lines"`
	BlankLines        int     `json:"blank_lines"`
	AvgFileSize       float64 `json:"avg_file_size"`
	MaxFileSize       int     `json:"max_file_size"`
	Functions         int     `json:"functions_count"`
	Classes           int     `json:"classes_count"`
	AvgFunctionLength float64 `json:"avg_function_length"`
}

var complexityExts = map[string]struct{}{
	".py": {}, ".js": {}, ".jsx": {}, ".ts": {}, ".tsx": {},
	".java": {}, ".go": {}, ".rs": {}, ".rb": {}, ".php": {},
}

var cStyleCommentExts = map[string]struct{}{
	".js": {}, ".jsx": {}, ".ts": {}, ".tsx": {},
	".java": {}, ".go": {}, ".rs": {},
}

var (
	pyFuncRe  = regexp.MustCompile(`^\s*def\s+\w+`)
	pyClassRe = regexp.MustCompile(`^\s*class\s+\w+`)
	jsFuncRe  = regexp.MustCompile(`function\s+\w+|const\s+\w+\s*=\s*\(.*\)\s*=>`)
	jsClassRe = regexp.MustCompile(`class\s+\w+`)
)

func analyzeComplexity(idx *repoIndex) Complexity {
	var result Complexity
	var fileCount int
	var funcLengths []int

	for _, entry := range idx.files {
		if _, ok := complexityExts[entry.ext]; !ok {
			continue
		}
		content, ok := idx.read(entry)
		if !ok {
			continue
		}

		m := analyzeFileComplexity(content, entry.ext)
		result.TotalLines += m.total
		result.CodeLines += m.code
		result.CommentLines += m.comments
		result.BlankLines += m.blank
		result.Functions += m.functions
		result.Classes += m.classes
		funcLengths = append(funcLengths, m.funcLengths...)

		fileCount++
		if m.total > result.MaxFileSize {
			result.MaxFileSize = m.total
		}
		result.AvgFileSize += float64(m.total)
	}

	if fileCount > 0 {
		result.AvgFileSize /= float64(fileCount)
	}
	if len(funcLengths) > 0 {
		sum := 0
		for _, l := range funcLengths {
			sum += l
		}
		result.AvgFunctionLength = float64(sum) / float64(len(funcLengths))
	}

	return result
}

type fileComplexity struct {
	total, code, comments, blank int
	functions, classes           int
	funcLengths                  []int
}

func analyzeFileComplexity(content, ext string) fileComplexity {
	lines := strings.Split(content, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	m := fileComplexity{total: len(lines)}
	_, cStyle := cStyleCommentExts[ext]

	inBlockComment := false
	inFunction := false
	currentFuncLines := 0

	flush := func() {
		if inFunction && currentFuncLines > 0 {
			m.funcLengths = append(m.funcLengths, currentFuncLines)
		}
	}

	for _, line := range lines {
		stripped := strings.TrimSpace(line)

		if stripped == "" {
			m.blank++
			continue
		}

		switch {
		case ext == ".py":
			quotes := strings.Count(stripped, `"""`) + strings.Count(stripped, "'''")
			if inBlockComment {
				m.comments++
				if quotes > 0 {
					inBlockComment = false
				}
				continue
			}
			if quotes > 0 {
				m.comments++
				// An odd number of markers opens a docstring block; an
				// even number is a one-line docstring.
				if quotes%2 == 1 {
					inBlockComment = true
				}
				continue
			}
			if strings.HasPrefix(stripped, "#") {
				m.comments++
				continue
			}
		case cStyle:
			if strings.Contains(stripped, "/*") {
				inBlockComment = true
				m.comments++
			}
			if inBlockComment {
				if strings.Contains(stripped, "*/") {
					inBlockComment = false
				}
				continue
			}
			if strings.HasPrefix(stripped, "//") {
				m.comments++
				continue
			}
		}

		m.code++

		switch {
		case ext == ".py":
			if pyFuncRe.MatchString(line) {
				flush()
				m.functions++
				inFunction = true
				currentFuncLines = 1
			} else if pyClassRe.MatchString(line) {
				flush()
				m.classes++
				inFunction = false
				currentFuncLines = 0
			} else if inFunction {
				currentFuncLines++
			}
		case ext == ".js" || ext == ".jsx" || ext == ".ts" || ext == ".tsx":
			if jsFuncRe.MatchString(line) {
				flush()
				m.functions++
				inFunction = true
				currentFuncLines = 1
			} else if jsClassRe.MatchString(line) {
				m.classes++
			} else if inFunction {
				currentFuncLines++
			}
		}
	}

	flush()
	return m
}
