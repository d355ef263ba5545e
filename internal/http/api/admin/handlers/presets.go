package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/finsight/planservice/internal/models"
	"github.com/finsight/planservice/internal/plan"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PresetHandler manages admin endpoints for tier presets.
type PresetHandler struct {
	db *gorm.DB // Database handle for preset records.
}

// NewPresetHandler constructs a preset handler.
func NewPresetHandler(db *gorm.DB) *PresetHandler {
	return &PresetHandler{db: db}
}

// List returns all presets ordered for display.
func (h *PresetHandler) List(c *gin.Context) {
	var rows []models.PlanPreset
	if errFind := h.db.WithContext(c.Request.Context()).
		Order("sort_order ASC, created_at DESC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list presets failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, formatPreset(&row))
	}
	c.JSON(http.StatusOK, gin.H{"presets": out})
}

// Get returns a preset by tier.
func (h *PresetHandler) Get(c *gin.Context) {
	row, ok := h.findByTier(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, formatPreset(&row))
}

// updatePresetRequest captures the payload for editing a preset.
type updatePresetRequest struct {
	Entitlements []string           `json:"entitlements"`
	FeatureFlags map[string]bool    `json:"featureFlags"`
	MemoryFlags  map[string]bool    `json:"memoryFlags"`
	Quota        *plan.QuotaPayload `json:"quota"`
	SortOrder    *int               `json:"sortOrder"`
}

// Update edits the provided fields of a preset.
func (h *PresetHandler) Update(c *gin.Context) {
	row, ok := h.findByTier(c)
	if !ok {
		return
	}

	var body updatePresetRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if body.Entitlements != nil {
		raw, errMarshal := json.Marshal(plan.NormalizeEntitlements(body.Entitlements))
		if errMarshal != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entitlements"})
			return
		}
		updates["entitlements"] = datatypes.JSON(raw)
	}
	if body.FeatureFlags != nil {
		raw, errMarshal := json.Marshal(body.FeatureFlags)
		if errMarshal != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid featureFlags"})
			return
		}
		updates["feature_flags"] = datatypes.JSON(raw)
	}
	if body.MemoryFlags != nil {
		raw, errMarshal := json.Marshal(body.MemoryFlags)
		if errMarshal != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid memoryFlags"})
			return
		}
		updates["memory_flags"] = datatypes.JSON(raw)
	}
	if body.Quota != nil {
		var quota plan.Quota
		applyQuota(&quota, row.Quota, *body.Quota)
		raw, errMarshal := json.Marshal(quota)
		if errMarshal != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quota"})
			return
		}
		updates["quota"] = datatypes.JSON(raw)
	}
	if body.SortOrder != nil {
		updates["sort_order"] = *body.SortOrder
	}

	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&models.PlanPreset{}).
		Where("id = ?", row.ID).Updates(updates).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update preset failed"})
		return
	}

	updated, ok := h.findByTier(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, formatPreset(&updated))
}

// Enable marks a preset as served.
func (h *PresetHandler) Enable(c *gin.Context) {
	h.setEnabled(c, true)
}

// Disable stops serving a preset.
func (h *PresetHandler) Disable(c *gin.Context) {
	h.setEnabled(c, false)
}

func (h *PresetHandler) setEnabled(c *gin.Context, enabled bool) {
	row, ok := h.findByTier(c)
	if !ok {
		return
	}
	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&models.PlanPreset{}).
		Where("id = ?", row.ID).
		Updates(map[string]any{"is_enabled": enabled, "updated_at": time.Now().UTC()}).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update preset failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *PresetHandler) findByTier(c *gin.Context) (models.PlanPreset, bool) {
	tier := strings.TrimSpace(c.Param("tier"))
	if tier == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tier"})
		return models.PlanPreset{}, false
	}
	var row models.PlanPreset
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("tier = ?", tier).First(&row).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return models.PlanPreset{}, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return models.PlanPreset{}, false
	}
	return row, true
}

// applyQuota merges a partial quota payload onto the stored quota document.
func applyQuota(dst *plan.Quota, stored datatypes.JSON, p plan.QuotaPayload) {
	_ = json.Unmarshal(stored, dst)
	if p.ChatRequestsPerDay.Present {
		dst.ChatRequestsPerDay = p.ChatRequestsPerDay.Value
	}
	if p.RAGTopK.Present && p.RAGTopK.Value != nil {
		dst.RAGTopK = *p.RAGTopK.Value
	}
	if p.SelfCheckEnabled != nil {
		dst.SelfCheckEnabled = *p.SelfCheckEnabled
	}
	if p.ExportRowLimit.Present {
		dst.ExportRowLimit = p.ExportRowLimit.Value
	}
}

// formatPreset formats a preset row into response JSON.
func formatPreset(row *models.PlanPreset) gin.H {
	return gin.H{
		"tier":         row.Tier,
		"entitlements": json.RawMessage(row.Entitlements),
		"featureFlags": json.RawMessage(row.FeatureFlags),
		"memoryFlags":  json.RawMessage(row.MemoryFlags),
		"quota":        json.RawMessage(row.Quota),
		"sortOrder":    row.SortOrder,
		"isEnabled":    row.IsEnabled,
		"createdAt":    row.CreatedAt,
		"updatedAt":    row.UpdatedAt,
	}
}
