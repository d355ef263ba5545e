// Package front registers the account-facing plan API routes.
package front

import (
	"net/http"
	"strings"

	"github.com/finsight/planservice/internal/http/api/front/handlers"
	"github.com/finsight/planservice/internal/ratelimit"
	"github.com/finsight/planservice/internal/store"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RegisterFrontRoutes registers the account-facing plan endpoints.
func RegisterFrontRoutes(r *gin.Engine, conn *gorm.DB, planStore *store.PlanStore, limiter *ratelimit.Manager) {
	if r == nil || conn == nil || planStore == nil {
		return
	}

	planHandler := handlers.NewPlanContextHandler(conn, planStore)

	group := r.Group("/api/v1/plan")
	group.Use(accountAuthMiddleware())
	group.Use(rateLimitMiddleware(conn, limiter))
	group.GET("/context", planHandler.GetContext)
	group.PATCH("/context", planHandler.PatchContext)
	group.POST("/trial", planHandler.StartTrial)
	group.GET("/presets", planHandler.ListPresets)
}

// accountAuthMiddleware extracts the account key from the bearer token.
func accountAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}
		c.Set("accountKey", token)
		c.Next()
	}
}

// rateLimitMiddleware applies the configured per-account request limit.
func rateLimitMiddleware(conn *gorm.DB, limiter *ratelimit.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		cfg := ratelimit.LoadSettingsConfig(conn)
		if cfg.Limit <= 0 {
			c.Next()
			return
		}
		key := ratelimit.KeyForAccount(c.GetString("accountKey"))
		result, errAllow := limiter.Allow(c.Request.Context(), key, cfg.Limit)
		if errAllow != nil {
			c.Next()
			return
		}
		if !result.Allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
