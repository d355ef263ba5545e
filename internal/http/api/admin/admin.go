// Package admin registers the admin console API routes.
package admin

import (
	"net/http"
	"strings"

	"github.com/finsight/planservice/internal/config"
	handlers "github.com/finsight/planservice/internal/http/api/admin/handlers"
	"github.com/finsight/planservice/internal/models"
	"github.com/finsight/planservice/internal/security"
	"github.com/finsight/planservice/internal/store"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RegisterAdminRoutes registers admin routes, middleware, and handlers.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, planStore *store.PlanStore) {
	if r == nil || db == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(db)
	r.GET("/healthz", healthHandler.Healthz)

	adminGroup := r.Group("/v0/admin")

	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	adminGroup.POST("/login", authHandler.Login)
	adminGroup.POST("/login/totp", authHandler.LoginTOTP)

	authed := adminGroup.Group("")
	authed.Use(adminAuthMiddleware(db, jwtCfg))

	authed.GET("/mfa/status", authHandler.MFAStatus)
	authed.POST("/mfa/totp/prepare", authHandler.PrepareTOTP)
	authed.POST("/mfa/totp/confirm", authHandler.ConfirmTOTP)
	authed.POST("/mfa/totp/disable", authHandler.DisableTOTP)

	presetHandler := handlers.NewPresetHandler(db)
	authed.GET("/presets", presetHandler.List)
	authed.GET("/presets/:tier", presetHandler.Get)
	authed.PUT("/presets/:tier", presetHandler.Update)
	authed.POST("/presets/:tier/enable", presetHandler.Enable)
	authed.POST("/presets/:tier/disable", presetHandler.Disable)

	contextHandler := handlers.NewContextHandler(db, planStore)
	authed.GET("/contexts", contextHandler.List)
	authed.GET("/contexts/:account", contextHandler.Get)

	settingHandler := handlers.NewSettingHandler(db)
	authed.POST("/settings", settingHandler.Create)
	authed.GET("/settings", settingHandler.List)
	authed.GET("/settings/:key", settingHandler.Get)
	authed.PUT("/settings/:key", settingHandler.Update)
	authed.DELETE("/settings/:key", settingHandler.Delete)

	auditHandler := handlers.NewAuditHandler(db)
	authed.GET("/audit", auditHandler.List)
}

// adminAuthMiddleware validates admin JWTs and loads admin context.
func adminAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
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

		claims, errJWT := security.ParseAdminToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var admin models.Admin
		if errFind := db.WithContext(c.Request.Context()).First(&admin, claims.AdminID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
			return
		}
		if !admin.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin disabled"})
			return
		}

		c.Set("adminID", admin.ID)
		c.Set("adminUsername", admin.Username)
		c.Next()
	}
}
