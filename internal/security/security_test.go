package security

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaincred/chaincred/internal/types"
)

func TestValidateInput(t *testing.T) {
	sm := NewSecurityMiddleware(DefaultSecurityConfig())

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"plain name", "Jane Doe", false},
		{"skill with punctuation", "C++", false},
		{"empty is fine here", "", false},
		{"too long", strings.Repeat("a", 201), true},
		{"null byte", "jane\x00doe", true},
		{"invalid utf8", string([]byte{0xff, 0xfe}), true},
		{"script tag", "<script>alert(1)</script>", true},
		{"sql injection", "x UNION SELECT * FROM users", true},
		{"javascript scheme", "javascript:alert(1)", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sm.ValidateInput(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	sm := NewSecurityMiddleware(DefaultSecurityConfig())

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"trims whitespace", "  Jane Doe  ", "Jane Doe"},
		{"strips script", "Jane<script>alert(1)</script>Doe", "JaneDoe"},
		{"strips tags keeps content", "<b>Jane</b> Doe", "Jane Doe"},
		{"collapses whitespace", "Jane \t\n Doe", "Jane Doe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sm.SanitizeInput(tt.input))
		})
	}
}

func TestValidateRepositoryURL(t *testing.T) {
	sm := NewSecurityMiddleware(DefaultSecurityConfig())

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"github repo", "https://github.com/octocat/hello-world", false},
		{"gitlab repo", "https://gitlab.com/group/project", false},
		{"plain http", "http://git.example.com/repo.git", false},
		{"empty", "", true},
		{"no scheme", "github.com/octocat/hello-world", true},
		{"file scheme", "file:///etc/passwd", true},
		{"ssh scheme", "ssh://git@github.com/octocat/hello-world", true},
		{"too long", "https://github.com/" + strings.Repeat("a", 500), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sm.ValidateRepositoryURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func postProfile(t *testing.T, sm *SecurityMiddleware, body any) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reached := false
	router := gin.New()
	router.POST("/analyze", sm.ValidateAnalyzeRequest, func(c *gin.Context) {
		reached = true
		c.Status(http.StatusOK)
	})

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/analyze", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w, reached
}

func validProfile() types.CandidateProfile {
	return types.CandidateProfile{
		CandidateName:  "Jane Doe",
		GithubUsername: "janedoe",
		Skills:         []string{"React", "Python"},
		Repositories:   []string{"https://github.com/janedoe/widgets"},
	}
}

func TestValidateAnalyzeRequestAcceptsValidProfile(t *testing.T) {
	sm := NewSecurityMiddleware(DefaultSecurityConfig())

	w, reached := postProfile(t, sm, validProfile())
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, reached)
}

func TestValidateAnalyzeRequestSanitizesFields(t *testing.T) {
	sm := NewSecurityMiddleware(DefaultSecurityConfig())

	gin.SetMode(gin.TestMode)
	router := gin.New()
	var stored types.CandidateProfile
	router.POST("/analyze", sm.ValidateAnalyzeRequest, func(c *gin.Context) {
		v, ok := c.Get("candidate_profile")
		require.True(t, ok)
		stored = v.(types.CandidateProfile)
		c.Status(http.StatusOK)
	})

	profile := validProfile()
	profile.CandidateName = "  <b>Jane</b>  Doe "
	profile.Skills = []string{" React "}

	payload, err := json.Marshal(profile)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/analyze", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Jane Doe", stored.CandidateName)
	assert.Equal(t, []string{"React"}, stored.Skills)
}

func TestValidateAnalyzeRequestRejections(t *testing.T) {
	sm := NewSecurityMiddleware(DefaultSecurityConfig())

	tests := []struct {
		name   string
		mutate func(*types.CandidateProfile)
	}{
		{"missing name", func(p *types.CandidateProfile) { p.CandidateName = " " }},
		{"no skills", func(p *types.CandidateProfile) { p.Skills = nil }},
		{"blank skill", func(p *types.CandidateProfile) { p.Skills = []string{"  "} }},
		{"no repositories", func(p *types.CandidateProfile) { p.Repositories = nil }},
		{"bad repository url", func(p *types.CandidateProfile) { p.Repositories = []string{"not-a-url"} }},
		{"script in name", func(p *types.CandidateProfile) { p.CandidateName = "javascript:alert(1)" }},
		{"too many repositories", func(p *types.CandidateProfile) {
			for i := 0; i < 25; i++ {
				p.Repositories = append(p.Repositories, "https://github.com/j/r")
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := validProfile()
			tt.mutate(&profile)

			w, reached := postProfile(t, sm, profile)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.False(t, reached)
		})
	}
}

func TestValidateContentType(t *testing.T) {
	sm := NewSecurityMiddleware(DefaultSecurityConfig())

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/analyze", sm.ValidateContentType, func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "text/xml")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(SecurityHeadersMiddleware())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
}
