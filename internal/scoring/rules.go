package scoring

import (
	"fmt"

	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"

	"github.com/chaincred/chaincred/internal/profile"
)

// Framework detections below this confidence never score.
const minRuleConfidence = 60

const (
	maxCriterionScore = 20
	maxRuleScore      = 100
)

// EvalInput is the read-only context a rule evaluation runs against: the
// repository working copy, its static profile, and the contributor's
// commit count and authorship share.
type EvalInput struct {
	RepoPath      string
	Profile       *profile.Profile
	Commits       int
	AuthorshipPct float64
}

// BreakdownItem explains one criterion's contribution to a rule result.
type BreakdownItem struct {
	Criterion string `json:"criterion"`
	Score     int    `json:"score"`
	Reason    string `json:"reason"`
}

// RuleResult is the outcome of evaluating one technology's rule.
type RuleResult struct {
	TotalScore int             `json:"total_score"`
	MaxScore   int             `json:"max_score"`
	Percentage int             `json:"percentage"`
	Breakdown  []BreakdownItem `json:"breakdown"`
}

// tiers maps a count onto the shared 20/12/6 ladder. floor is the score
// below the lowest threshold, 0 for most criteria.
type tiers struct {
	t20, t12, t6 int
	floor        int
}

func (t tiers) score(n int) int {
	switch {
	case n >= t.t20:
		return 20
	case n >= t.t12:
		return 12
	case n >= t.t6:
		return 6
	default:
		return t.floor
	}
}

type criterion struct {
	name string
	eval func(in *EvalInput, fileCount int) (int, string)
}

// patternCriterion counts literal code patterns across the working copy.
func patternCriterion(name string, patterns []string, t tiers, unit string) criterion {
	return criterion{name: name, eval: func(in *EvalInput, _ int) (int, string) {
		n := CountPatterns(in.RepoPath, patterns)
		return t.score(n), fmt.Sprintf("%d %s", n, unit)
	}}
}

// locCriterion tiers on the repository's total code lines.
func locCriterion(name string, t tiers) criterion {
	return criterion{name: name, eval: func(in *EvalInput, _ int) (int, string) {
		loc := in.Profile.Complexity.CodeLines
		return t.score(loc), fmt.Sprintf("%d lines of code", loc)
	}}
}

// commitCriterion tiers on the contributor's commit count.
func commitCriterion(t tiers) criterion {
	return criterion{name: "git_maturity", eval: func(in *EvalInput, _ int) (int, string) {
		return t.score(in.Commits), fmt.Sprintf("%d commits", in.Commits)
	}}
}

// authorshipCriterion is the one shared authorship ladder: 20 at >=70%,
// 12 at >=50%, 6 at >=30%, else 0. Every rule uses it unchanged.
func authorshipCriterion() criterion {
	return criterion{name: "authorship_confidence", eval: func(in *EvalInput, _ int) (int, string) {
		score := 0
		switch {
		case in.AuthorshipPct >= 70:
			score = 20
		case in.AuthorshipPct >= 50:
			score = 12
		case in.AuthorshipPct >= 30:
			score = 6
		}
		return score, fmt.Sprintf("%.1f%% of repository changes", in.AuthorshipPct)
	}}
}

// fileCriterion scores all-or-nothing on the presence of any named file.
func fileCriterion(name string, files []string, foundReason, missingReason string) criterion {
	return criterion{name: name, eval: func(in *EvalInput, _ int) (int, string) {
		if len(FindFiles(in.RepoPath, files)) > 0 {
			return 20, foundReason
		}
		return 0, missingReason
	}}
}

func djangoAppCriterion() criterion {
	t := tiers{t20: 3, t12: 2, t6: 1}
	return criterion{name: "app_structure", eval: func(in *EvalInput, _ int) (int, string) {
		n := in.Profile.Structure.DjangoApps
		return t.score(n), fmt.Sprintf("%d Django apps found", n)
	}}
}

func functionComplexityCriterion() criterion {
	return criterion{name: "function_complexity", eval: func(in *EvalInput, _ int) (int, string) {
		avg := in.Profile.Complexity.AvgFunctionLength
		score := 6
		switch {
		case avg > 0 && avg <= 40:
			score = 20
		case avg <= 70:
			score = 12
		}
		return score, fmt.Sprintf("Avg function length: %.1f lines", avg)
	}}
}

func structureFilesCriterion() criterion {
	files := []string{"__init__.py", "setup.py", "pyproject.toml", "requirements.txt"}
	t := tiers{t20: 3, t12: 2, t6: 1}
	return criterion{name: "python_structure", eval: func(in *EvalInput, _ int) (int, string) {
		n := len(FindFiles(in.RepoPath, files))
		return t.score(n), fmt.Sprintf("%d structure files found", n)
	}}
}

func modularityCriterion() criterion {
	t := tiers{t20: 20, t12: 10, t6: 0, floor: 6}
	return criterion{name: "modularity", eval: func(_ *EvalInput, fileCount int) (int, string) {
		return t.score(fileCount), fmt.Sprintf("%d modular files", fileCount)
	}}
}

func headerSourcePairsCriterion() criterion {
	t := tiers{t20: 5, t12: 3, t6: 0, floor: 6}
	return criterion{name: "modular_design", eval: func(in *EvalInput, _ int) (int, string) {
		cFiles := CountFilesByExt(in.RepoPath, []string{".c"})
		hFiles := CountFilesByExt(in.RepoPath, []string{".h"})
		pairs := min(cFiles, hFiles)
		return t.score(pairs), fmt.Sprintf("%d header/source pairs", pairs)
	}}
}

// rule declares how one technology is scored: a presence gate followed
// by four weighted criteria. A framework rule gates on detection
// confidence and dependency evidence; a language rule gates on file
// counts.
type rule struct {
	skill   string
	display string

	// framework rules
	framework     string
	presentReason string
	absentReason  string

	// language rules
	exts          []string
	presenceTiers tiers
	presenceUnit  string

	presenceName string
	criteria     []criterion
}

var ruleTable = []rule{
	{
		skill: "React", display: "React", framework: "React",
		presenceName:  "react_presence",
		presentReason: "React dependencies found",
		absentReason:  "React not detected",
		criteria: []criterion{
			patternCriterion("hooks_usage",
				[]string{"useState(", "useEffect(", "useContext(", "useReducer("},
				tiers{t20: 10, t12: 5, t6: 1}, "hook usages found"),
			locCriterion("project_size", tiers{t20: 3000, t12: 1500, t6: 500}),
			commitCriterion(tiers{t20: 30, t12: 15, t6: 5}),
			authorshipCriterion(),
		},
	},
	{
		skill: "Django", display: "Django", framework: "Django",
		presenceName:  "django_presence",
		presentReason: "Django framework detected",
		absentReason:  "Django not detected",
		criteria: []criterion{
			djangoAppCriterion(),
			patternCriterion("orm_usage",
				[]string{"models.Model", ".objects.", ".filter(", ".get("},
				tiers{t20: 10, t12: 5, t6: 1}, "ORM patterns found"),
			patternCriterion("rest_practices",
				[]string{"APIView", "Serializer", "status.HTTP_", "ViewSet"},
				tiers{t20: 8, t12: 4, t6: 1}, "REST patterns found"),
			authorshipCriterion(),
		},
	},
	{
		skill: "NodeJS", display: "Node.js", framework: "NodeJS",
		presenceName:  "node_presence",
		presentReason: "Node.js framework detected",
		absentReason:  "Node.js not detected",
		criteria: []criterion{
			patternCriterion("api_design",
				[]string{"app.get(", "app.post(", "app.put(", "app.delete(", "router."},
				tiers{t20: 15, t12: 8, t6: 3}, "API endpoints found"),
			patternCriterion("middleware_usage",
				[]string{"app.use(", "next(", "middleware"},
				tiers{t20: 10, t12: 5, t6: 1}, "middleware patterns found"),
			commitCriterion(tiers{t20: 25, t12: 12, t6: 5}),
			authorshipCriterion(),
		},
	},
	{
		skill: "TailwindCSS", display: "TailwindCSS", framework: "TailwindCSS",
		presenceName:  "tailwind_presence",
		presentReason: "TailwindCSS detected",
		absentReason:  "TailwindCSS not detected",
		criteria: []criterion{
			patternCriterion("utility_usage",
				[]string{`class="`, `className="`, "flex", "grid", "bg-", "text-"},
				tiers{t20: 50, t12: 25, t6: 10}, "utility classes"),
			fileCriterion("config_customization",
				[]string{"tailwind.config.js", "tailwind.config.ts"},
				"Config file found", "No config file"),
			locCriterion("project_scale", tiers{t20: 2000, t12: 1000, t6: 300}),
			authorshipCriterion(),
		},
	},
	{
		skill:         "Python",
		exts:          []string{".py"},
		presenceTiers: tiers{t20: 10, t12: 5, t6: 1},
		presenceUnit:  "Python files",
		presenceName:  "python_presence",
		criteria: []criterion{
			structureFilesCriterion(),
			functionComplexityCriterion(),
			commitCriterion(tiers{t20: 25, t12: 12, t6: 5}),
			authorshipCriterion(),
		},
	},
	{
		skill:         "JavaScript",
		exts:          []string{".js", ".mjs", ".cjs"},
		presenceTiers: tiers{t20: 15, t12: 8, t6: 3},
		presenceUnit:  "JS files",
		presenceName:  "js_presence",
		criteria: []criterion{
			patternCriterion("modern_js_usage",
				[]string{"=>", "async ", "await ", "import ", "export "},
				tiers{t20: 20, t12: 10, t6: 3}, "modern JS patterns"),
			modularityCriterion(),
			commitCriterion(tiers{t20: 30, t12: 15, t6: 6}),
			authorshipCriterion(),
		},
	},
	{
		skill:         "TypeScript",
		exts:          []string{".ts", ".tsx"},
		presenceTiers: tiers{t20: 10, t12: 5, t6: 1},
		presenceUnit:  "TS files",
		presenceName:  "ts_presence",
		criteria: []criterion{
			patternCriterion("type_safety",
				[]string{": string", ": number", "interface ", "type ", ": boolean"},
				tiers{t20: 20, t12: 10, t6: 3}, "type annotations"),
			fileCriterion("config_quality",
				[]string{"tsconfig.json"},
				"tsconfig.json found", "No tsconfig.json"),
			commitCriterion(tiers{t20: 25, t12: 12, t6: 5}),
			authorshipCriterion(),
		},
	},
	{
		skill:         "C",
		exts:          []string{".c", ".h"},
		presenceTiers: tiers{t20: 10, t12: 5, t6: 1},
		presenceUnit:  "C files",
		presenceName:  "c_presence",
		criteria: []criterion{
			patternCriterion("pointer_usage",
				[]string{"malloc(", "free(", "calloc(", "realloc("},
				tiers{t20: 15, t12: 7, t6: 3}, "memory operations"),
			headerSourcePairsCriterion(),
			commitCriterion(tiers{t20: 20, t12: 10, t6: 4}),
			authorshipCriterion(),
		},
	},
	{
		skill:         "C++",
		exts:          []string{".cpp", ".hpp", ".cc", ".cxx"},
		presenceTiers: tiers{t20: 10, t12: 5, t6: 1},
		presenceUnit:  "C++ files",
		presenceName:  "cpp_presence",
		criteria: []criterion{
			patternCriterion("oop_usage",
				[]string{"class ", "public:", "private:", "protected:", "virtual "},
				tiers{t20: 15, t12: 7, t6: 3}, "OOP patterns"),
			patternCriterion("memory_management",
				[]string{"new ", "delete ", "unique_ptr", "shared_ptr", "make_unique", "make_shared"},
				tiers{t20: 10, t12: 5, t6: 2}, "memory operations"),
			commitCriterion(tiers{t20: 25, t12: 12, t6: 5}),
			authorshipCriterion(),
		},
	},
}

// RuleEvaluator scores technologies against the declarative rule table.
type RuleEvaluator struct {
	rules []rule
}

func NewRuleEvaluator() *RuleEvaluator {
	return &RuleEvaluator{rules: ruleTable}
}

// EvaluateAll runs every applicable rule. Technologies with no signal at
// all are omitted; detected-but-unconvincing frameworks are reported with
// an explicit zero so the absence of a score is explainable.
func (e *RuleEvaluator) EvaluateAll(in *EvalInput) (map[string]RuleResult, error) {
	results := make(map[string]RuleResult)
	for _, r := range e.rules {
		result, applicable, err := r.evaluate(in)
		if err != nil {
			return nil, err
		}
		if applicable {
			results[r.skill] = result
		}
	}
	return results, nil
}

func (r rule) evaluate(in *EvalInput) (RuleResult, bool, error) {
	if r.framework != "" {
		return r.evaluateFramework(in)
	}
	return r.evaluateLanguage(in)
}

func (r rule) evaluateFramework(in *EvalInput) (RuleResult, bool, error) {
	fw, detected := in.Profile.Frameworks[r.framework]
	if !detected {
		return RuleResult{}, false, nil
	}

	if fw.Confidence < minRuleConfidence {
		item := BreakdownItem{
			Criterion: r.presenceName,
			Reason: fmt.Sprintf("%s detected but confidence too low (%d%% < %d%%)",
				r.display, fw.Confidence, minRuleConfidence),
		}
		return zeroResult(item), true, nil
	}

	if !fw.HasDependencyEvidence() {
		item := BreakdownItem{Criterion: r.presenceName, Reason: r.absentReason}
		return zeroResult(item), true, nil
	}

	items := []BreakdownItem{{
		Criterion: r.presenceName,
		Score:     maxCriterionScore,
		Reason:    r.presentReason,
	}}
	result, err := r.runCriteria(in, 0, items)
	return result, true, err
}

func (r rule) evaluateLanguage(in *EvalInput) (RuleResult, bool, error) {
	fileCount := CountFilesByExt(in.RepoPath, r.exts)
	if fileCount == 0 {
		return RuleResult{}, false, nil
	}

	presence := BreakdownItem{
		Criterion: r.presenceName,
		Score:     r.presenceTiers.score(fileCount),
		Reason:    fmt.Sprintf("%d %s", fileCount, r.presenceUnit),
	}
	if presence.Score == 0 {
		return zeroResult(presence), true, nil
	}

	result, err := r.runCriteria(in, fileCount, []BreakdownItem{presence})
	return result, true, err
}

func (r rule) runCriteria(in *EvalInput, fileCount int, items []BreakdownItem) (RuleResult, error) {
	for _, c := range r.criteria {
		score, reason := c.eval(in, fileCount)
		items = append(items, BreakdownItem{Criterion: c.name, Score: score, Reason: reason})
	}

	if err := validateBreakdown(r.skill, items); err != nil {
		return RuleResult{}, err
	}

	total := 0
	for _, item := range items {
		total += item.Score
	}
	return RuleResult{
		TotalScore: total,
		MaxScore:   maxRuleScore,
		Percentage: total,
		Breakdown:  items,
	}, nil
}

func zeroResult(presence BreakdownItem) RuleResult {
	return RuleResult{
		MaxScore:  maxRuleScore,
		Breakdown: []BreakdownItem{presence},
	}
}

// validateBreakdown enforces criterion and total bounds. Violations are
// evaluator defects and surface as hard errors rather than clamps.
func validateBreakdown(skill string, items []BreakdownItem) error {
	total := 0
	for _, item := range items {
		if item.Score < 0 || item.Score > maxCriterionScore {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg(fmt.Sprintf("criterion %q for %s out of bounds: %d (must be within [0, %d])",
					item.Criterion, skill, item.Score, maxCriterionScore))
		}
		total += item.Score
	}
	if total > maxRuleScore {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("total score for %s out of bounds: %d (must be within [0, %d])",
				skill, total, maxRuleScore))
	}
	return nil
}
