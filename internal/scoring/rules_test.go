package scoring

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaincred/chaincred/internal/profile"
)

func writeFixture(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func reactProfile(confidence int, withDeps bool) *profile.Profile {
	fw := profile.Framework{Confidence: confidence}
	if withDeps {
		fw.Signals.Dependencies = []string{"react"}
	}
	return &profile.Profile{
		Frameworks: map[string]profile.Framework{"React": fw},
		Complexity: profile.Complexity{CodeLines: 1600},
	}
}

func TestEvaluateReactFullPath(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "src/App.jsx", `const [a, setA] = useState(0);
const [b, setB] = useState(0);
const [c, setC] = useState(0);
useEffect(() => { setA(b); }, [b]);
useEffect(() => { setB(c); }, [c]);
`)

	in := &EvalInput{
		RepoPath:      root,
		Profile:       reactProfile(80, true),
		Commits:       16,
		AuthorshipPct: 75,
	}

	results, err := NewRuleEvaluator().EvaluateAll(in)
	require.NoError(t, err)

	react, ok := results["React"]
	require.True(t, ok)
	// presence 20 + hooks (5 usages) 12 + size (1600 loc) 12 +
	// maturity (16 commits) 12 + authorship (75%) 20.
	assert.Equal(t, 76, react.TotalScore)
	assert.Equal(t, 100, react.MaxScore)
	assert.Equal(t, 76, react.Percentage)
	require.Len(t, react.Breakdown, 5)
	assert.Equal(t, "react_presence", react.Breakdown[0].Criterion)
	assert.Equal(t, 20, react.Breakdown[0].Score)
	assert.Equal(t, "5 hook usages found", react.Breakdown[1].Reason)
	assert.Equal(t, "75.0% of repository changes", react.Breakdown[4].Reason)
}

func TestEvaluateFrameworkLowConfidence(t *testing.T) {
	in := &EvalInput{
		RepoPath: t.TempDir(),
		Profile:  reactProfile(55, true),
	}

	results, err := NewRuleEvaluator().EvaluateAll(in)
	require.NoError(t, err)

	react, ok := results["React"]
	require.True(t, ok)
	assert.Equal(t, 0, react.TotalScore)
	require.Len(t, react.Breakdown, 1)
	assert.Equal(t, "React detected but confidence too low (55% < 60%)",
		react.Breakdown[0].Reason)
}

func TestEvaluateFrameworkWithoutDependencyEvidence(t *testing.T) {
	in := &EvalInput{
		RepoPath: t.TempDir(),
		Profile:  reactProfile(70, false),
	}

	results, err := NewRuleEvaluator().EvaluateAll(in)
	require.NoError(t, err)

	react := results["React"]
	assert.Equal(t, 0, react.TotalScore)
	require.Len(t, react.Breakdown, 1)
	assert.Equal(t, "React not detected", react.Breakdown[0].Reason)
}

func TestEvaluateUndetectedFrameworkOmitted(t *testing.T) {
	in := &EvalInput{
		RepoPath: t.TempDir(),
		Profile:  &profile.Profile{Frameworks: map[string]profile.Framework{}},
	}

	results, err := NewRuleEvaluator().EvaluateAll(in)
	require.NoError(t, err)

	assert.NotContains(t, results, "React")
	assert.NotContains(t, results, "Django")
}

func TestEvaluatePythonRule(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"app.py", "models.py", "views.py", "urls.py", "admin.py"} {
		writeFixture(t, root, name, "x = 1\n")
	}
	writeFixture(t, root, "setup.py", "from setuptools import setup\n")
	writeFixture(t, root, "requirements.txt", "requests==2.31\n")

	in := &EvalInput{
		RepoPath: root,
		Profile: &profile.Profile{
			Frameworks: map[string]profile.Framework{},
			Complexity: profile.Complexity{AvgFunctionLength: 35},
		},
		Commits:       30,
		AuthorshipPct: 55,
	}

	results, err := NewRuleEvaluator().EvaluateAll(in)
	require.NoError(t, err)

	py, ok := results["Python"]
	require.True(t, ok)
	// presence (6 files) 12 + structure (setup.py, requirements.txt) 12 +
	// complexity (35 avg) 20 + maturity (30 commits) 20 + authorship (55%) 12.
	assert.Equal(t, 76, py.TotalScore)
	assert.Equal(t, "6 Python files", py.Breakdown[0].Reason)
	assert.Equal(t, "2 structure files found", py.Breakdown[1].Reason)
	assert.Equal(t, "Avg function length: 35.0 lines", py.Breakdown[2].Reason)
}

func TestEvaluateJavaScriptBelowPresenceThreshold(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "index.js", "const x = 1;\n")
	writeFixture(t, root, "util.js", "const y = 2;\n")

	in := &EvalInput{
		RepoPath: root,
		Profile:  &profile.Profile{Frameworks: map[string]profile.Framework{}},
	}

	results, err := NewRuleEvaluator().EvaluateAll(in)
	require.NoError(t, err)

	// Two JS files are below the three-file presence floor: the skill is
	// reported, but with an explicit zero and no further criteria.
	js, ok := results["JavaScript"]
	require.True(t, ok)
	assert.Equal(t, 0, js.TotalScore)
	require.Len(t, js.Breakdown, 1)
	assert.Equal(t, "2 JS files", js.Breakdown[0].Reason)
}

func TestEvaluateLanguageWithNoFilesOmitted(t *testing.T) {
	in := &EvalInput{
		RepoPath: t.TempDir(),
		Profile:  &profile.Profile{Frameworks: map[string]profile.Framework{}},
	}

	results, err := NewRuleEvaluator().EvaluateAll(in)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestValidateBreakdown(t *testing.T) {
	err := validateBreakdown("React", []BreakdownItem{{Criterion: "hooks_usage", Score: 25}})
	assert.Error(t, err)

	err = validateBreakdown("React", []BreakdownItem{{Criterion: "hooks_usage", Score: -1}})
	assert.Error(t, err)

	err = validateBreakdown("React", []BreakdownItem{
		{Score: 20}, {Score: 20}, {Score: 20}, {Score: 20}, {Score: 20}, {Score: 20},
	})
	assert.Error(t, err, "six full criteria exceed the 100 point total")

	err = validateBreakdown("React", []BreakdownItem{{Score: 20}, {Score: 12}})
	assert.NoError(t, err)
}

func TestTiersScore(t *testing.T) {
	ladder := tiers{t20: 10, t12: 5, t6: 1}

	assert.Equal(t, 20, ladder.score(10))
	assert.Equal(t, 12, ladder.score(5))
	assert.Equal(t, 6, ladder.score(1))
	assert.Equal(t, 0, ladder.score(0))

	floored := tiers{t20: 20, t12: 10, t6: 0, floor: 6}
	assert.Equal(t, 6, floored.score(3))
}
