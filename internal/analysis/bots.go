package analysis

import "strings"

// botPatterns are case-insensitive substrings that mark an identity as
// automated when found in either the author name or email.
var botPatterns = []string{
	"bot",
	"dependabot",
	"github-actions",
	"renovate",
	"[bot]",
	"semantic-release",
	"greenkeeper",
	"snyk-bot",
	"codecov",
	"travis",
	"circleci",
}

// IsBot reports whether an author identity looks like automation. Bot commits
// stay in the aggregate but are excluded from the effective commit total and
// from contributor ranking.
func IsBot(name, email string) bool {
	nameLower := strings.ToLower(name)
	emailLower := strings.ToLower(email)

	for _, pattern := range botPatterns {
		if strings.Contains(nameLower, pattern) || strings.Contains(emailLower, pattern) {
			return true
		}
	}

	if strings.Contains(emailLower, "noreply") || strings.Contains(emailLower, "no-reply") {
		return true
	}

	return false
}
