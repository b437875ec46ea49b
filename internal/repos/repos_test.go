package repos

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaincred/chaincred/internal/monitoring"
	"github.com/chaincred/chaincred/internal/resilience"
)

func TestClassifyURL(t *testing.T) {
	tests := []struct {
		raw  string
		kind URLKind
		url  string
	}{
		{"https://github.com/alice/project", URLRepository, "https://github.com/alice/project"},
		{"https://github.com/alice/project.git", URLRepository, "https://github.com/alice/project"},
		{"https://github.com/alice/project/", URLRepository, "https://github.com/alice/project"},
		{"http://github.com/alice/my.dotted-repo", URLRepository, "http://github.com/alice/my.dotted-repo"},
		{"https://github.com/alice", URLProfile, "https://github.com/alice"},
		{"https://github.com/alice/", URLProfile, "https://github.com/alice"},
		{"https://github.com/alice/project/tree/main", URLRepository, "https://github.com/alice/project/tree/main"},
		{"https://gitlab.com/alice/project", URLUnknown, "https://gitlab.com/alice/project"},
		{"not a url", URLUnknown, "not a url"},
	}

	for _, tt := range tests {
		kind, url := ClassifyURL(tt.raw)
		assert.Equal(t, tt.kind, kind, tt.raw)
		assert.Equal(t, tt.url, url, tt.raw)
	}
}

func initFixtureRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=Fixture", "GIT_AUTHOR_EMAIL=fixture@example.com",
			"GIT_COMMITTER_NAME=Fixture", "GIT_COMMITTER_EMAIL=fixture@example.com",
		)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}

	run("init", "--quiet")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o644))
	run("add", ".")
	run("commit", "--quiet", "-m", "initial commit")
	return dir
}

func TestCloneAndCleanup(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}

	src := initFixtureRepo(t)
	m := NewManager(t.TempDir())

	path, cleanup, err := m.Clone(context.Background(), src)
	require.NoError(t, err)
	require.NotNil(t, cleanup)

	_, err = os.Stat(filepath.Join(path, "main.go"))
	assert.NoError(t, err)

	cleanup()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestCloneFailureCleansUp(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}

	base := t.TempDir()
	m := NewManager(base)
	m.retry.MaxAttempts = 1

	_, _, err := m.Clone(context.Background(), filepath.Join(base, "does-not-exist"))
	require.Error(t, err)

	entries, readErr := os.ReadDir(base)
	require.NoError(t, readErr)
	assert.Empty(t, entries, "failed clones must not leave directories behind")
}

func TestCloneRecordsMetrics(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}

	src := initFixtureRepo(t)
	metrics := monitoring.NewMetrics()
	m := NewManager(t.TempDir()).WithMetrics(metrics)
	assert.Equal(t, resilience.StateClosed, m.BreakerState())

	_, cleanup, err := m.Clone(context.Background(), src)
	require.NoError(t, err)
	defer cleanup()

	stats := metrics.GetStats()
	assert.EqualValues(t, 1, stats["clones_performed"])
	assert.EqualValues(t, 0, stats["clone_failures"])
}
