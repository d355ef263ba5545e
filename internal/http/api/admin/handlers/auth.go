// Package handlers implements the admin console endpoints.
package handlers

import (
	"net/http"
	"strings"

	"github.com/finsight/planservice/internal/config"
	"github.com/finsight/planservice/internal/models"
	"github.com/finsight/planservice/internal/security"
	internalsettings "github.com/finsight/planservice/internal/settings"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AuthHandler serves admin login and TOTP enrollment.
type AuthHandler struct {
	db     *gorm.DB
	jwtCfg config.JWTConfig
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, jwtCfg config.JWTConfig) *AuthHandler {
	return &AuthHandler{db: db, jwtCfg: jwtCfg}
}

// loginRequest captures the password login payload.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login verifies the password. Admins with TOTP enabled must follow up on
// the TOTP login endpoint; others receive a session token directly.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	admin, ok := h.verifyPassword(c, body.Username, body.Password)
	if !ok {
		return
	}

	if strings.TrimSpace(admin.TOTPSecret) != "" {
		c.JSON(http.StatusOK, gin.H{"totp_required": true})
		return
	}

	h.issueToken(c, admin)
}

// loginTOTPRequest captures the second-factor login payload.
type loginTOTPRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Code     string `json:"code"`
}

// LoginTOTP verifies password plus TOTP code and issues a session token.
func (h *AuthHandler) LoginTOTP(c *gin.Context) {
	var body loginTOTPRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	admin, ok := h.verifyPassword(c, body.Username, body.Password)
	if !ok {
		return
	}
	if strings.TrimSpace(admin.TOTPSecret) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "totp not enabled"})
		return
	}
	if !security.VerifyTOTP(admin.TOTPSecret, body.Code) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid code"})
		return
	}

	h.issueToken(c, admin)
}

// MFAStatus reports whether TOTP is enabled for the current admin.
func (h *AuthHandler) MFAStatus(c *gin.Context) {
	admin, ok := h.currentAdmin(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"totp_enabled": strings.TrimSpace(admin.TOTPSecret) != ""})
}

// PrepareTOTP generates a pending TOTP secret for enrollment. The secret is
// returned to the caller and only persisted on confirm.
func (h *AuthHandler) PrepareTOTP(c *gin.Context) {
	admin, ok := h.currentAdmin(c)
	if !ok {
		return
	}
	if strings.TrimSpace(admin.TOTPSecret) != "" {
		c.JSON(http.StatusConflict, gin.H{"error": "totp already enabled"})
		return
	}

	issuer := internalsettings.GetString(h.db, internalsettings.SiteNameKey, internalsettings.DefaultSiteName)
	secret, url, errGenerate := security.GenerateTOTPSecret(issuer, admin.Username)
	if errGenerate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate totp secret failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"secret": secret, "url": url})
}

// confirmTOTPRequest captures the enrollment confirmation payload.
type confirmTOTPRequest struct {
	Secret string `json:"secret"`
	Code   string `json:"code"`
}

// ConfirmTOTP verifies the first code against the pending secret and enables TOTP.
func (h *AuthHandler) ConfirmTOTP(c *gin.Context) {
	admin, ok := h.currentAdmin(c)
	if !ok {
		return
	}
	var body confirmTOTPRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.Secret) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "secret is required"})
		return
	}
	if !security.VerifyTOTP(body.Secret, body.Code) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid code"})
		return
	}

	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&models.Admin{}).
		Where("id = ?", admin.ID).
		Update("totp_secret", strings.TrimSpace(body.Secret)).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "enable totp failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// disableTOTPRequest captures the disable payload.
type disableTOTPRequest struct {
	Code string `json:"code"`
}

// DisableTOTP removes the TOTP secret after verifying a current code.
func (h *AuthHandler) DisableTOTP(c *gin.Context) {
	admin, ok := h.currentAdmin(c)
	if !ok {
		return
	}
	var body disableTOTPRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(admin.TOTPSecret) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "totp not enabled"})
		return
	}
	if !security.VerifyTOTP(admin.TOTPSecret, body.Code) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid code"})
		return
	}

	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&models.Admin{}).
		Where("id = ?", admin.ID).
		Update("totp_secret", "").Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "disable totp failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *AuthHandler) verifyPassword(c *gin.Context, username, password string) (models.Admin, bool) {
	username = strings.TrimSpace(username)
	if username == "" || strings.TrimSpace(password) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return models.Admin{}, false
	}

	var admin models.Admin
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("username = ?", username).First(&admin).Error; errFind != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return models.Admin{}, false
	}
	if !admin.Active {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin disabled"})
		return models.Admin{}, false
	}
	if !security.CheckPassword(admin.Password, password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return models.Admin{}, false
	}
	return admin, true
}

func (h *AuthHandler) issueToken(c *gin.Context, admin models.Admin) {
	token, errIssue := security.IssueAdminToken(h.jwtCfg.Secret, h.jwtCfg.Expiry, admin.ID, admin.Username)
	if errIssue != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "username": admin.Username})
}

func (h *AuthHandler) currentAdmin(c *gin.Context) (models.Admin, bool) {
	adminID := c.GetUint64("adminID")
	if adminID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing admin context"})
		return models.Admin{}, false
	}
	var admin models.Admin
	if errFind := h.db.WithContext(c.Request.Context()).First(&admin, adminID).Error; errFind != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
		return models.Admin{}, false
	}
	return admin, true
}
