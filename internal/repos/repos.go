// Package repos manages repository working copies: URL classification,
// cloning into temp directories, and cleanup.
package repos

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"

	"github.com/chaincred/chaincred/internal/monitoring"
	"github.com/chaincred/chaincred/internal/resilience"
)

// URLKind classifies what a submitted GitHub URL points at.
type URLKind string

const (
	URLRepository URLKind = "repository"
	URLProfile    URLKind = "profile"
	URLUnknown    URLKind = "unknown"
)

var (
	repoURLRe    = regexp.MustCompile(`^https?://github\.com/[A-Za-z0-9\-]+/[A-Za-z0-9\-._]+$`)
	profileURLRe = regexp.MustCompile(`^https?://github\.com/[A-Za-z0-9\-]+$`)
)

// ClassifyURL normalizes a GitHub URL and decides whether it is a
// clonable repository, a bare profile page, or something else. Profile
// URLs must be skipped by callers; unknown URLs may still be attempted.
func ClassifyURL(raw string) (URLKind, string) {
	url := strings.TrimRight(strings.TrimSpace(raw), "/")
	url = strings.TrimSuffix(url, ".git")

	switch {
	case repoURLRe.MatchString(url):
		return URLRepository, url
	case profileURLRe.MatchString(url):
		return URLProfile, url
	}

	// URLs with extra path segments (tree/branch links and the like)
	// usually still identify a repository.
	trimmed := strings.TrimPrefix(url, "https://github.com/")
	trimmed = strings.TrimPrefix(trimmed, "http://github.com/")
	if parts := strings.Split(trimmed, "/"); len(parts) >= 2 && trimmed != url {
		return URLRepository, url
	}
	return URLUnknown, url
}

// Manager clones repositories into per-analysis temp directories. A
// shared circuit breaker stops hammering the remote when clones keep
// failing, e.g. while GitHub is down.
type Manager struct {
	baseDir string
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
	metrics *monitoring.Metrics
}

// NewManager returns a Manager that clones under baseDir; an empty
// baseDir falls back to the system temp directory.
func NewManager(baseDir string) *Manager {
	cfg := resilience.DefaultRetryConfig()
	cfg.MaxAttempts = 3
	return &Manager{
		baseDir: baseDir,
		retry:   cfg,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			FailureThreshold: 10,
			RecoveryTimeout:  60 * time.Second,
			SuccessThreshold: 2,
		}),
	}
}

// WithMetrics enables clone success/failure counters.
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// BreakerState reports the clone circuit breaker state for health checks.
func (m *Manager) BreakerState() resilience.CircuitBreakerState {
	return m.breaker.State()
}

// Clone checks out the full history of url into a fresh temp directory
// and returns its path with a cleanup function. The clone is retried on
// transient failures; the caller must always invoke cleanup.
func (m *Manager) Clone(ctx context.Context, url string) (string, func(), error) {
	dir, err := os.MkdirTemp(m.baseDir, "chaincred-repo-*")
	if err != nil {
		return "", nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("creating clone directory").
			WithCause(err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	cfg := m.retry
	cfg.RetryableErrors = func(error) bool { return ctx.Err() == nil }

	err = m.breaker.Call(func() error {
		return resilience.RetryWithConfig(ctx, cfg, func() error {
			// Full history is required; the commit log is the analysis input.
			cmd := exec.CommandContext(ctx, "git", "clone", "--quiet", url, dir)
			var stderr bytes.Buffer
			cmd.Stderr = &stderr
			if runErr := cmd.Run(); runErr != nil {
				_ = os.RemoveAll(dir)
				_ = os.MkdirAll(dir, 0o755)
				return errbuilder.New().
					WithCode(errbuilder.CodeUnavailable).
					WithMsg("git clone failed: " + strings.TrimSpace(stderr.String())).
					WithCause(runErr)
			}
			return nil
		})
	})
	if m.metrics != nil {
		m.metrics.IncrementClone(err == nil)
	}
	if err != nil {
		cleanup()
		return "", nil, err
	}
	return dir, cleanup, nil
}
