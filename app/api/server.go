package api

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler, apiAccessKey string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
		SkipPaths: []string{"/health"},
	}))

	r.Use(gin.Recovery())

	setupRoutes(r, handler, apiAccessKey)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, apiAccessKey string) {
	r.GET("/health", handler.GetHealth)

	// The cron route is always mounted; without a secret it answers 500 so a
	// misconfigured deployment is visible to the scheduler calling it.
	cron := r.Group("/api/cron")
	cron.Use(cronAuthMiddleware(handler.cronSecret))
	{
		cron.GET("/refresh", handler.CronRefresh)
		cron.POST("/refresh", handler.CronRefresh)
	}

	if apiAccessKey != "" {
		admin := r.Group("/api/admin")
		admin.Use(authMiddleware(apiAccessKey))
		{
			admin.GET("/feeds", handler.AdminListFeeds)
			admin.GET("/feeds/:id", handler.AdminGetFeed)
			admin.POST("/feeds/refresh", handler.AdminForceRefresh)
			admin.POST("/feeds/:id/refresh", handler.AdminRefreshFeed)
			admin.POST("/configs/:name/reload", handler.AdminReloadConfig)
			admin.GET("/audit", handler.AdminAuditLog)
		}
		slog.Info("Admin endpoints enabled with authentication")
	} else {
		slog.Info("Admin endpoints disabled (API_ACCESS_KEY not set)")
	}

	r.GET("/", func(c *gin.Context) {
		endpoints := map[string]string{
			"health": "/health",
			"cron":   "/api/cron/refresh (GET or POST, requires Authorization: Bearer <secret> or X-Cron-Secret)",
		}
		if apiAccessKey != "" {
			endpoints["feeds"] = "/api/admin/feeds (requires X-API-Key header)"
			endpoints["feed"] = "/api/admin/feeds/<id> (requires X-API-Key header)"
			endpoints["refresh"] = "/api/admin/feeds/refresh (POST, requires X-API-Key header)"
			endpoints["refresh_feed"] = "/api/admin/feeds/<id>/refresh (POST, requires X-API-Key header)"
			endpoints["reload"] = "/api/admin/configs/<name>/reload (POST, requires X-API-Key header)"
			endpoints["audit"] = "/api/admin/audit (requires X-API-Key header)"
		}

		c.JSON(http.StatusOK, gin.H{
			"service":     "RSS Pulse",
			"version":     handler.version,
			"description": "Feed refresh scheduling and ingestion",
			"endpoints":   endpoints,
		})
	})

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

func secretsEqual(provided, expected string) bool {
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}

// cronAuthMiddleware accepts the shared secret as a Bearer token or in
// X-Cron-Secret.
func cronAuthMiddleware(cronSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cronSecret == "" {
			slog.Error("Cron refresh requested but no secret is configured", "error", ErrConfiguration)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":   "ConfigurationError",
				"message": "CRON_SECRET is not configured",
			})
			return
		}

		providedSecret := bearerToken(c)
		if providedSecret == "" {
			providedSecret = c.GetHeader("X-Cron-Secret")
		}

		if providedSecret == "" || !secretsEqual(providedSecret, cronSecret) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Unauthorized",
				"message": "Provide the cron secret in Authorization: Bearer <secret> or X-Cron-Secret",
			})
			return
		}

		c.Next()
	}
}

// authMiddleware creates authentication middleware for admin endpoints
func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")
		if providedKey == "" {
			providedKey = bearerToken(c)
		}

		if providedKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			c.Abort()
			return
		}

		if !secretsEqual(providedKey, apiAccessKey) {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid API key",
				"message": "The provided API key is not valid",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
