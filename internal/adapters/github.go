// Package adapters talks to external code-hosting APIs. The analyzer
// itself works off cloned repositories; these adapters only help build
// candidate profiles, e.g. discovering which repositories a GitHub user
// has actually pushed to.
package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chaincred/chaincred/internal/monitoring"
	"github.com/chaincred/chaincred/internal/resilience"
)

// GitHubRepo is the subset of the repository payload the discovery
// endpoint reports.
type GitHubRepo struct {
	Name            string `json:"name"`
	FullName        string `json:"full_name"`
	HTMLURL         string `json:"html_url"`
	Fork            bool   `json:"fork"`
	StargazersCount int    `json:"stargazers_count"`
	Language        string `json:"language"`
	PushedAt        string `json:"pushed_at"`
}

// GitHubUser represents GitHub user data
type GitHubUser struct {
	Login       string `json:"login"`
	Name        string `json:"name"`
	PublicRepos int    `json:"public_repos"`
}

// GitHubAdapter fetches candidate data from the GitHub API with retry
// and circuit breaking around the calls.
type GitHubAdapter struct {
	token   string
	client  *http.Client
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
	metrics *monitoring.Metrics
	log     *monitoring.Logger
	baseURL string
}

// NewGitHubAdapter creates a new GitHub adapter. The token is optional;
// without it the unauthenticated rate limit applies.
func NewGitHubAdapter(token string, metrics *monitoring.Metrics) *GitHubAdapter {
	return &GitHubAdapter{
		token: token,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			RecoveryTimeout:  30 * time.Second,
			SuccessThreshold: 3,
		}),
		retry:   resilience.DefaultRetryConfig(),
		metrics: metrics,
		log:     monitoring.NewLogger(),
		baseURL: "https://api.github.com",
	}
}

// WithBaseURL points the adapter at a different API host. Used by tests.
func (g *GitHubAdapter) WithBaseURL(baseURL string) *GitHubAdapter {
	g.baseURL = baseURL
	return g
}

// WithLogger replaces the adapter's structured logger.
func (g *GitHubAdapter) WithLogger(log *monitoring.Logger) *GitHubAdapter {
	if log != nil {
		g.log = log
	}
	return g
}

// DiscoverRepositories returns the URLs of the user's most recently
// pushed non-fork repositories, newest first.
func (g *GitHubAdapter) DiscoverRepositories(ctx context.Context, username string, limit int) ([]GitHubRepo, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	url := fmt.Sprintf("%s/users/%s/repos?sort=pushed&per_page=%d", g.baseURL, username, limit)

	var repos []GitHubRepo
	if err := g.getJSON(ctx, url, &repos); err != nil {
		return nil, fmt.Errorf("failed to discover repositories for %s: %w", username, err)
	}

	// Forks say little about the candidate's own work.
	owned := repos[:0]
	for _, repo := range repos {
		if !repo.Fork {
			owned = append(owned, repo)
		}
	}

	return owned, nil
}

// FetchUser fetches the user's public profile
func (g *GitHubAdapter) FetchUser(ctx context.Context, username string) (*GitHubUser, error) {
	url := fmt.Sprintf("%s/users/%s", g.baseURL, username)

	var user GitHubUser
	if err := g.getJSON(ctx, url, &user); err != nil {
		return nil, fmt.Errorf("failed to fetch user %s: %w", username, err)
	}

	return &user, nil
}

// getJSON performs a GET through the circuit breaker with retries and
// decodes the JSON body into out.
func (g *GitHubAdapter) getJSON(ctx context.Context, url string, out interface{}) error {
	start := time.Now()
	var statusCode int

	err := g.breaker.Call(func() error {
		resp, err := resilience.RetryHTTP(ctx, g.retry, func() (*http.Response, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return nil, err
			}

			req.Header.Set("Accept", "application/vnd.github.v3+json")
			req.Header.Set("User-Agent", "chaincred/1.0")
			if g.token != "" {
				req.Header.Set("Authorization", "Bearer "+g.token)
			}

			return g.client.Do(req)
		})
		if err != nil {
			var httpErr *resilience.HTTPError
			if errors.As(err, &httpErr) {
				statusCode = httpErr.StatusCode
			}
			return err
		}
		defer resp.Body.Close()

		statusCode = resp.StatusCode
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return fmt.Errorf("github API error: status %d, body: %s", resp.StatusCode, string(body))
		}

		return json.NewDecoder(resp.Body).Decode(out)
	})

	if g.metrics != nil {
		g.metrics.RecordExternalAPIRequest("github", err == nil)
	}
	g.log.ExternalAPILogger("github", http.MethodGet, url, statusCode, time.Since(start), err == nil)

	return err
}

// BreakerState reports the circuit breaker state for health checks
func (g *GitHubAdapter) BreakerState() resilience.CircuitBreakerState {
	return g.breaker.State()
}
