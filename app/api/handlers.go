package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lysyi3m/rss-pulse/app/audit"
	"github.com/lysyi3m/rss-pulse/app/database"
	"github.com/lysyi3m/rss-pulse/app/feed"
	"github.com/lysyi3m/rss-pulse/app/tasks"
	"github.com/lysyi3m/rss-pulse/app/trigger"
)

const (
	defaultArticleLimit = 20
	maxArticleLimit     = 200
	defaultAuditLimit   = 50
)

// NewHandler wires the HTTP handlers. auditReader may be nil when no audit
// store is configured.
func NewHandler(configCache *feed.ConfigCache, feedRepo database.FeedRepository,
	articleRepo database.ArticleRepository, refreshTrigger RefreshTrigger,
	scheduler tasks.TaskSchedulerInterface, auditReader AuditReader,
	cronSecret, version string) *Handler {
	return &Handler{
		feedRepo:    feedRepo,
		articleRepo: articleRepo,
		configCache: configCache,
		trigger:     refreshTrigger,
		scheduler:   scheduler,
		auditReader: auditReader,
		cronSecret:  cronSecret,
		version:     version,
	}
}

func (h *Handler) CronRefresh(c *gin.Context) {
	rc := requestContext(c, "cron", "cron")

	summary, err := h.trigger.RunScheduled(c.Request.Context(), rc)
	if err != nil {
		slog.Error("Scheduled refresh failed", "request_id", rc.RequestID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "RefreshFailed",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, summary.Aggregate())
}

func (h *Handler) AdminForceRefresh(c *gin.Context) {
	var req forceRefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"message": `Expected {"feedIds": [...]} or {"all": true}`,
		})
		return
	}

	h.forceRefresh(c, trigger.ForceRequest{FeedIDs: req.FeedIDs, All: req.All})
}

func (h *Handler) AdminRefreshFeed(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing feed id parameter"})
		return
	}

	h.forceRefresh(c, trigger.ForceRequest{FeedIDs: []string{id}})
}

func (h *Handler) forceRefresh(c *gin.Context, req trigger.ForceRequest) {
	rc := requestContext(c, c.GetHeader("X-Admin-User"), "admin")

	summary, err := h.trigger.RunForced(c.Request.Context(), req, rc)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, summary)
	case errors.Is(err, trigger.ErrFeedNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found", "message": err.Error()})
	case errors.Is(err, trigger.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "message": err.Error()})
	default:
		slog.Error("Forced refresh failed", "request_id", rc.RequestID, "actor", rc.Actor, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Refresh failed", "message": err.Error()})
	}
}

func (h *Handler) AdminListFeeds(c *gin.Context) {
	ctx := c.Request.Context()

	feeds, err := h.feedRepo.ListFeeds(ctx)
	if err != nil {
		slog.Error("Database error", "operation", "list_feeds", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	views := make([]feedView, 0, len(feeds))
	for _, f := range feeds {
		v := newFeedView(f)
		if count, err := h.articleRepo.GetArticleCount(ctx, f.ID); err == nil {
			v.ArticleCount = &count
		}
		views = append(views, v)
	}

	c.JSON(http.StatusOK, gin.H{
		"feeds": views,
		"total": len(views),
	})
}

func (h *Handler) AdminGetFeed(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	f, err := h.feedRepo.GetFeed(ctx, id)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if f == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return
	}

	limit := queryLimit(c, "limit", defaultArticleLimit, maxArticleLimit)

	v := newFeedView(*f)
	if count, err := h.articleRepo.GetArticleCount(ctx, f.ID); err == nil {
		v.ArticleCount = &count
	}

	articles, err := h.articleRepo.GetArticles(ctx, f.ID, limit)
	if err != nil {
		slog.Error("Database error", "operation", "get_articles", "feed_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	recent := make([]articleView, 0, len(articles))
	for _, a := range articles {
		recent = append(recent, newArticleView(a))
	}

	details := gin.H{
		"feed":           v,
		"recentArticles": recent,
	}
	if h.configCache != nil {
		if feedConfig, ok := h.configCache.Lookup(f.Name); ok {
			details["config"] = gin.H{
				"enabled":         feedConfig.Settings.IsEnabled(),
				"maxItems":        feedConfig.Settings.MaxItems,
				"extractContent":  feedConfig.Settings.ExtractContent,
				"translate":       feedConfig.Settings.Translate,
				"filters":         len(feedConfig.Filters),
				"refreshInterval": (time.Duration(feedConfig.Settings.RefreshInterval) * time.Second).String(),
			}
		}
	}

	c.JSON(http.StatusOK, details)
}

// AdminReloadConfig re-reads a feed's YAML file and enqueues a sync of its
// definition into the database.
func (h *Handler) AdminReloadConfig(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing feed name parameter"})
		return
	}
	if h.configCache == nil || h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Feed configuration reload is not available"})
		return
	}

	feedConfig, err := h.configCache.LoadConfig(name)
	if errors.Is(err, feed.ErrConfigNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed configuration not found"})
		return
	}
	if err != nil {
		slog.Error("Error reloading configuration", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to reload configuration",
			"details": err.Error(),
		})
		return
	}

	syncTask := tasks.NewSyncFeedConfigTask(name, feedConfig, h.feedRepo)
	if err := h.scheduler.EnqueueTask(syncTask); err != nil {
		slog.Error("Error enqueueing sync task", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to enqueue sync task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"feed": gin.H{
			"name":    name,
			"url":     feedConfig.URL,
			"enabled": feedConfig.Settings.IsEnabled(),
		},
		"task": gin.H{
			"id":   syncTask.ID,
			"type": syncTask.Type,
		},
	})
}

func (h *Handler) AdminAuditLog(c *gin.Context) {
	if h.auditReader == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Audit store not configured"})
		return
	}

	limit := queryLimit(c, "limit", defaultAuditLimit, 1000)
	entries, err := h.auditReader.Recent(c.Request.Context(), limit)
	if err != nil {
		slog.Error("Failed to read audit log", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Audit store unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"total":   len(entries),
	})
}

func (h *Handler) GetHealth(c *gin.Context) {
	ctx := c.Request.Context()

	health := map[string]any{
		"status":    "ok",
		"version":   h.version,
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if feedCount, err := h.feedRepo.GetFeedCount(ctx); err == nil {
		health["feeds"] = feedCount
	} else {
		slog.Error("Database error", "operation", "get_feed_count", "error", err)
		health["status"] = "degraded"
	}

	if h.configCache != nil {
		health["loaded_configurations"] = h.configCache.GetConfigCount()
	}
	if h.scheduler != nil {
		health["tasks"] = h.scheduler.Stats()
	}
	if h.auditReader != nil {
		health["audit"] = h.auditReader.Health(ctx)
	}

	c.JSON(http.StatusOK, health)
}

func requestContext(c *gin.Context, actor, source string) audit.RequestContext {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	if actor == "" {
		actor = source
	}
	return audit.RequestContext{
		Actor:     actor,
		Source:    source,
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		RequestID: requestID,
	}
}

func queryLimit(c *gin.Context, key string, def, max int) int {
	limit, err := strconv.Atoi(c.Query(key))
	if err != nil || limit <= 0 {
		return def
	}
	return min(limit, max)
}
