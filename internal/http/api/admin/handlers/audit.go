package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/finsight/planservice/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AuditHandler serves the plan change audit log.
type AuditHandler struct {
	db *gorm.DB
}

// NewAuditHandler constructs an AuditHandler.
func NewAuditHandler(db *gorm.DB) *AuditHandler {
	return &AuditHandler{db: db}
}

// List returns audit entries, newest first, with paging and optional filters.
func (h *AuditHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	query := h.db.WithContext(c.Request.Context()).Model(&models.AuditEntry{})
	if account := strings.TrimSpace(c.Query("account")); account != "" {
		query = query.Where("account_key = ?", account)
	}
	if action := strings.TrimSpace(c.Query("action")); action != "" {
		query = query.Where("action = ?", action)
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count audit entries failed"})
		return
	}

	var rows []models.AuditEntry
	if errFind := query.
		Order("created_at DESC, id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list audit entries failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"accountKey": row.AccountKey,
			"actor":      row.Actor,
			"action":     row.Action,
			"note":       row.Note,
			"planTier":   row.PlanTier,
			"createdAt":  row.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"entries": out, "total": total})
}
