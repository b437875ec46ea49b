package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/chaincred/chaincred/internal/adapters"
	"github.com/chaincred/chaincred/internal/cache"
	"github.com/chaincred/chaincred/internal/database"
	apperrors "github.com/chaincred/chaincred/internal/errors"
	"github.com/chaincred/chaincred/internal/gitlog"
	"github.com/chaincred/chaincred/internal/leaderboard"
	"github.com/chaincred/chaincred/internal/middleware"
	"github.com/chaincred/chaincred/internal/monitoring"
	"github.com/chaincred/chaincred/internal/pipeline"
	"github.com/chaincred/chaincred/internal/privacy"
	"github.com/chaincred/chaincred/internal/ratelimit"
	"github.com/chaincred/chaincred/internal/repos"
	"github.com/chaincred/chaincred/internal/security"
	"github.com/chaincred/chaincred/internal/types"
)

type serverConfig struct {
	Port          string
	DataDir       string
	CloneDir      string
	GithubToken   string
	RedisAddr     string
	RedisPassword string
	RetentionDays int
	CacheTTL      time.Duration
	AllowedOrigin string
	LogLevel      slog.Level
}

func loadConfig() serverConfig {
	// Missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	retentionDays := privacy.DefaultRetentionDays
	if raw := os.Getenv("RETENTION_DAYS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			retentionDays = n
		}
	}

	cacheTTL := 15 * time.Minute
	if raw := os.Getenv("CACHE_TTL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cacheTTL = d
		}
	}

	return serverConfig{
		Port:          getEnvOrDefault("PORT", "8080"),
		DataDir:       getEnvOrDefault("DATA_DIR", "./data"),
		CloneDir:      os.Getenv("CLONE_DIR"),
		GithubToken:   os.Getenv("GITHUB_TOKEN"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RetentionDays: retentionDays,
		CacheTTL:      cacheTTL,
		AllowedOrigin: getEnvOrDefault("ALLOWED_ORIGIN", "*"),
		LogLevel:      parseLogLevel(os.Getenv("LOG_LEVEL")),
	}
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// application bundles the wired services so route handlers and tests
// share one construction path.
type application struct {
	cfg         serverConfig
	db          *database.DB
	store       *database.Store
	runner      *pipeline.Runner
	repoManager *repos.Manager
	github      *adapters.GitHubAdapter
	leaderboard *leaderboard.Service
	privacy     *privacy.Service
	limiter     *ratelimit.RateLimiter
	redis       *ratelimit.RedisClient
	metrics     *monitoring.Metrics
	logger      *monitoring.Logger
	cache       *cache.Cache
	compression *middleware.CompressionMiddleware
	security    *security.SecurityMiddleware
}

func newApplication(cfg serverConfig) (*application, error) {
	metrics := monitoring.NewMetrics()
	logger := monitoring.NewLogger()
	if cfg.LogLevel != slog.LevelInfo {
		logger.SetLevel(cfg.LogLevel)
	}

	db, err := database.NewDB(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	store := database.NewStore(db)

	redisClient, err := ratelimit.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, 0)
	if err != nil {
		// Rate limiting degrades to in-process token buckets.
		logger.SystemLogger("redis_unavailable", err.Error())
		redisClient, _ = ratelimit.NewRedisClient("", "", 0)
	}

	manager := repos.NewManager(cfg.CloneDir).WithMetrics(metrics)
	appCache := cache.NewCache(cfg.CacheTTL)
	runner := pipeline.NewRunner(manager, gitlog.NewCLISource(), logger).WithCache(appCache)

	return &application{
		cfg:         cfg,
		db:          db,
		store:       store,
		runner:      runner,
		repoManager: manager,
		github:      adapters.NewGitHubAdapter(cfg.GithubToken, metrics).WithLogger(logger),
		leaderboard: leaderboard.NewService(store),
		privacy:     privacy.NewService(store, cfg.RetentionDays),
		limiter:     ratelimit.NewRateLimiter(redisClient, ratelimit.DefaultConfig(), metrics),
		redis:       redisClient,
		metrics:     metrics,
		logger:      logger,
		cache:       appCache,
		compression: middleware.NewCompressionMiddleware(middleware.DefaultCompressionConfig()),
		security:    security.NewSecurityMiddleware(security.DefaultSecurityConfig()),
	}, nil
}

func (app *application) router() *gin.Engine {
	r := gin.New()

	r.Use(app.compression.Handler())

	corsConfig := cors.DefaultConfig()
	if app.cfg.AllowedOrigin == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = []string{app.cfg.AllowedOrigin}
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	r.Use(cors.New(corsConfig))

	r.Use(monitoring.MonitoringMiddleware(app.metrics, app.logger))
	r.Use(monitoring.SecurityMonitoringMiddleware(app.logger))

	r.Use(apperrors.ErrorHandler())
	r.Use(apperrors.RecoveryHandler())

	r.Use(security.SecurityHeadersMiddleware())
	r.Use(app.security.RequestTimeout)
	r.Use(app.security.ValidateContentType)

	r.Use(app.limiter.IPRateLimitMiddleware())
	r.Use(app.limiter.AnalyzeRateLimitMiddleware())

	r.Use(app.cache.Middleware(app.metrics, app.logger))

	r.GET("/health", app.handleHealth)
	r.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, app.metrics.GetStats())
	})

	api := r.Group("/api/v1")
	{
		api.POST("/analyze", app.security.ValidateAnalyzeRequest, app.handleAnalyze)
		api.GET("/analyses", app.handleListAnalyses)
		api.GET("/analyses/:id", app.handleGetAnalysis)
		api.GET("/skills/top", app.handleTopSkills)
		api.GET("/github/:username/repositories", app.handleDiscoverRepositories)
		api.DELETE("/candidates/:name/data", app.handleDeleteCandidateData)
		api.GET("/privacy/policy", func(c *gin.Context) {
			c.JSON(http.StatusOK, app.privacy.RetentionInfo())
		})
		api.GET("/ratelimit/status", app.limiter.HandleRateLimitStatus())
	}

	admin := r.Group("/admin")
	{
		admin.GET("/ratelimits", app.limiter.HandleAdminRateLimits())
		admin.DELETE("/ratelimits/:ip", app.limiter.HandleAdminInvalidateIP())
		admin.GET("/cache/stats", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"response_cache":    app.cache.Stats(),
				"leaderboard_cache": app.leaderboard.GetCacheStats(),
				"compression":       app.compression.GetStats(),
			})
		})
		admin.GET("/pools/database", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"pool": "database", "stats": app.db.GetPoolStats()})
		})
	}

	if os.Getenv("ENABLE_PROFILING") == "true" {
		r.GET("/debug/pprof/*filepath", gin.WrapF(pprof.Index))
		r.GET("/debug/pprof/cmdline", gin.WrapF(pprof.Cmdline))
		r.GET("/debug/pprof/profile", gin.WrapF(pprof.Profile))
		r.GET("/debug/pprof/symbol", gin.WrapF(pprof.Symbol))
		r.GET("/debug/pprof/trace", gin.WrapF(pprof.Trace))
	}

	return r
}

func (app *application) handleHealth(c *gin.Context) {
	health := gin.H{
		"status":         "ok",
		"timestamp":      time.Now().Format(time.RFC3339),
		"version":        "1.0.0",
		"clone_breaker":  app.repoManager.BreakerState().String(),
		"github_breaker": app.github.BreakerState().String(),
	}

	if app.redis.IsEnabled() {
		if err := app.redis.HealthCheck(c.Request.Context()); err != nil {
			health["redis"] = "unreachable"
		} else {
			health["redis"] = "ok"
		}
	} else {
		health["redis"] = "disabled"
	}

	c.JSON(http.StatusOK, health)
}

func (app *application) handleAnalyze(c *gin.Context) {
	value, exists := c.Get("candidate_profile")
	if !exists {
		appErr := apperrors.NewInternalError("validated profile missing from request context", nil)
		apperrors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}
	profile := value.(types.CandidateProfile)

	app.metrics.IncrementAnalysisStarted()
	started := time.Now()

	report, err := app.runner.Run(c.Request.Context(), profile)
	if err != nil {
		appErr := apperrors.ToAppError(err)
		apperrors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}
	app.metrics.IncrementAnalysisCompleted()
	app.logger.AnalysisLogger(profile.CandidateName,
		len(report.Repositories), len(report.Warnings),
		len(report.ClaimedSkills)+len(report.AdditionalSkills), time.Since(started))

	// Persist before responding so the report is immediately retrievable
	// by ID. Persistence failure degrades to an unstored result.
	if err := app.leaderboard.RecordRun(c.Request.Context(), report); err != nil {
		app.logger.APIErrorLogger(err, "POST", c.Request.URL.Path, c.ClientIP(), http.StatusOK)
		c.Header("X-Report-Stored", "false")
	}

	c.JSON(http.StatusOK, report)
}

func (app *application) handleGetAnalysis(c *gin.Context) {
	report, err := app.store.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		appErr := apperrors.ToAppError(err)
		apperrors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (app *application) handleListAnalyses(c *gin.Context) {
	limit := parseLimit(c.Query("limit"), 20)
	runs, err := app.leaderboard.RecentAnalyses(c.Request.Context(), limit)
	if err != nil {
		appErr := apperrors.ToAppError(err)
		apperrors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"analyses": runs, "count": len(runs)})
}

func (app *application) handleTopSkills(c *gin.Context) {
	limit := parseLimit(c.Query("limit"), 10)
	response, err := app.leaderboard.TopSkills(c.Request.Context(), limit)
	if err != nil {
		appErr := apperrors.ToAppError(err)
		apperrors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (app *application) handleDiscoverRepositories(c *gin.Context) {
	username := app.security.SanitizeInput(c.Param("username"))
	if err := app.security.ValidateInput(username); err != nil || username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid username"})
		return
	}

	limit := parseLimit(c.Query("limit"), 20)
	repositories, err := app.github.DiscoverRepositories(c.Request.Context(), username, limit)
	if err != nil {
		appErr := apperrors.NewExternalAPIError("github", err)
		apperrors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"username":     username,
		"repositories": repositories,
		"count":        len(repositories),
	})
}

func (app *application) handleDeleteCandidateData(c *gin.Context) {
	name := app.security.SanitizeInput(c.Param("name"))
	deleted, err := app.privacy.DeleteCandidateData(c.Request.Context(), name)
	if err != nil {
		appErr := apperrors.ToAppError(err)
		apperrors.LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"candidate":    name,
		"runs_deleted": deleted,
	})
}

func parseLimit(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	cfg := loadConfig()

	app, err := newApplication(cfg)
	if err != nil {
		monitoring.NewLogger().SystemLogger("startup_failed", err.Error())
		os.Exit(1)
	}
	defer apperrors.SafeClose(app.db, "database")
	defer apperrors.SafeClose(app.redis, "redis")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Background upkeep: retention cleanup and leaderboard refresh.
	app.privacy.StartScheduler(rootCtx, 24*time.Hour)
	go func() {
		app.leaderboard.WarmCache(rootCtx)
		app.leaderboard.StartAutoRefresh(rootCtx, 10*time.Minute)
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		app.logger.SystemLogger("server_started", "listening on :"+cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.logger.SystemLogger("server_failed", err.Error())
			os.Exit(1)
		}
	}()

	<-rootCtx.Done()
	app.logger.SystemLogger("shutdown_started", "signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.logger.SystemLogger("shutdown_forced", err.Error())
		os.Exit(1)
	}

	app.logger.SystemLogger("server_stopped", "graceful shutdown complete")
}
