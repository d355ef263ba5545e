package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/finsight/planservice/internal/store"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ContextHandler serves admin views over stored plan contexts.
type ContextHandler struct {
	db    *gorm.DB
	store *store.PlanStore
}

// NewContextHandler constructs a ContextHandler.
func NewContextHandler(db *gorm.DB, planStore *store.PlanStore) *ContextHandler {
	return &ContextHandler{db: db, store: planStore}
}

// List returns plan contexts with paging and optional account filter.
func (h *ContextHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	filter := strings.TrimSpace(c.Query("account"))

	rows, total, errList := h.store.List(c.Request.Context(), page, limit, filter)
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list contexts failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"accountKey":        row.AccountKey,
			"planTier":          row.PlanTier,
			"expiresAt":         row.ExpiresAt,
			"trialActive":       row.TrialActive,
			"trialUsed":         row.TrialUsed,
			"checkoutRequested": row.CheckoutRequested,
			"updatedBy":         row.UpdatedBy,
			"updatedAt":         row.UpdatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"contexts": out, "total": total})
}

// Get returns the full normalized context for one account.
func (h *ContextHandler) Get(c *gin.Context) {
	accountKey := strings.TrimSpace(c.Param("account"))
	if accountKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account"})
		return
	}

	current, found, errGet := h.store.Get(c.Request.Context(), accountKey)
	if errGet != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load plan context failed"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, current.Payload())
}
