package security

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/chaincred/chaincred/internal/types"
)

// SecurityConfig holds security configuration
type SecurityConfig struct {
	MaxInputLength  int           `json:"max_input_length"`
	MaxSkills       int           `json:"max_skills"`
	MaxRepositories int           `json:"max_repositories"`
	TrustedProxies  []string      `json:"trusted_proxies"`
	RequestTimeout  time.Duration `json:"request_timeout"`
}

// DefaultSecurityConfig returns secure defaults
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		MaxInputLength:  200,
		MaxSkills:       50,
		MaxRepositories: 20,
		TrustedProxies:  []string{"127.0.0.1", "::1", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"},
		// Analyses clone repositories; the timeout has to cover that.
		RequestTimeout: 5 * time.Minute,
	}
}

// SecurityMiddleware validates and sanitizes candidate input before it
// reaches the analysis pipeline.
type SecurityMiddleware struct {
	config SecurityConfig
}

// NewSecurityMiddleware creates a new security middleware instance
func NewSecurityMiddleware(config SecurityConfig) *SecurityMiddleware {
	return &SecurityMiddleware{config: config}
}

var scriptPattern = regexp.MustCompile(`(?i)<script[^>]*>.*?</script>`)
var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)
var whitespacePattern = regexp.MustCompile(`\s+`)

// ValidateInput checks a free-text field (candidate name, skill,
// username) for length, encoding, and injection patterns.
func (sm *SecurityMiddleware) ValidateInput(input string) error {
	if len(input) > sm.config.MaxInputLength {
		return fmt.Errorf("input exceeds maximum length of %d characters", sm.config.MaxInputLength)
	}

	if strings.Contains(input, "\x00") {
		return fmt.Errorf("input contains invalid characters")
	}

	if !utf8.ValidString(input) {
		return fmt.Errorf("input contains invalid UTF-8 encoding")
	}

	suspiciousPatterns := []string{
		`<script`, `</script>`, `javascript:`,
		`union select`, `drop table`, `alter table`,
		`xp_`, `sp_`,
	}

	inputLower := strings.ToLower(input)
	for _, pattern := range suspiciousPatterns {
		if strings.Contains(inputLower, pattern) {
			return fmt.Errorf("input contains suspicious patterns")
		}
	}

	return nil
}

// ValidateRepositoryURL checks that a submitted repository URL is a
// plausible http(s) URL. Whether it actually points at a clonable
// repository is the pipeline's call; this only rejects garbage at the
// edge.
func (sm *SecurityMiddleware) ValidateRepositoryURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("repository URL is required")
	}
	if len(raw) > 500 {
		return fmt.Errorf("repository URL is too long")
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("repository URL is not a valid URL")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("repository URL must use http or https")
	}
	if parsed.Host == "" {
		return fmt.Errorf("repository URL has no host")
	}

	return nil
}

// SanitizeInput strips markup and normalizes whitespace in user input
func (sm *SecurityMiddleware) SanitizeInput(input string) string {
	input = strings.TrimSpace(input)
	input = scriptPattern.ReplaceAllString(input, "")
	input = htmlTagPattern.ReplaceAllString(input, "")
	input = whitespacePattern.ReplaceAllString(input, " ")

	return input
}

// ValidateAnalyzeRequest binds and validates the analyze request body,
// storing the sanitized profile in the context for the handler.
func (sm *SecurityMiddleware) ValidateAnalyzeRequest(c *gin.Context) {
	var profile types.CandidateProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid request body: candidate_name, skills and repositories are required",
		})
		c.Abort()
		return
	}

	profile.CandidateName = sm.SanitizeInput(profile.CandidateName)
	profile.GithubUsername = sm.SanitizeInput(profile.GithubUsername)

	if profile.CandidateName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "candidate_name is required"})
		c.Abort()
		return
	}

	for _, field := range []string{profile.CandidateName, profile.GithubUsername} {
		if err := sm.ValidateInput(field); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("input validation failed: %v", err),
			})
			c.Abort()
			return
		}
	}

	if len(profile.Skills) == 0 || len(profile.Skills) > sm.config.MaxSkills {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("skills must contain between 1 and %d entries", sm.config.MaxSkills),
		})
		c.Abort()
		return
	}

	for i, skill := range profile.Skills {
		profile.Skills[i] = sm.SanitizeInput(skill)
		if profile.Skills[i] == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "skills must not be empty"})
			c.Abort()
			return
		}
		if err := sm.ValidateInput(profile.Skills[i]); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("skill validation failed: %v", err),
			})
			c.Abort()
			return
		}
	}

	if len(profile.Repositories) == 0 || len(profile.Repositories) > sm.config.MaxRepositories {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("repositories must contain between 1 and %d entries", sm.config.MaxRepositories),
		})
		c.Abort()
		return
	}

	for i, repo := range profile.Repositories {
		profile.Repositories[i] = strings.TrimSpace(repo)
		if err := sm.ValidateRepositoryURL(profile.Repositories[i]); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("repository validation failed: %v", err),
			})
			c.Abort()
			return
		}
	}

	c.Set("candidate_profile", profile)
	c.Next()
}

// ValidateContentType validates request content type
func (sm *SecurityMiddleware) ValidateContentType(c *gin.Context) {
	contentType := c.GetHeader("Content-Type")

	allowedTypes := []string{
		"application/json",
		"application/x-www-form-urlencoded",
		"multipart/form-data",
	}

	if contentType != "" {
		found := false
		for _, allowed := range allowedTypes {
			if strings.Contains(strings.ToLower(contentType), allowed) {
				found = true
				break
			}
		}

		if !found {
			c.JSON(http.StatusUnsupportedMediaType, gin.H{
				"error": "unsupported content type",
			})
			c.Abort()
			return
		}
	}

	c.Next()
}

// RequestTimeout enforces request timeout
func (sm *SecurityMiddleware) RequestTimeout(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), sm.config.RequestTimeout)
	defer cancel()

	c.Request = c.Request.WithContext(ctx)

	c.Header("X-Timeout", strconv.Itoa(int(sm.config.RequestTimeout.Seconds())))

	c.Next()
}
