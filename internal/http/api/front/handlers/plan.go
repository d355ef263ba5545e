// Package handlers implements the account-facing plan endpoints.
package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/finsight/planservice/internal/models"
	"github.com/finsight/planservice/internal/plan"
	internalsettings "github.com/finsight/planservice/internal/settings"
	"github.com/finsight/planservice/internal/store"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const maxPatchBodyBytes = 1 << 20

// PlanContextHandler serves the per-account plan context endpoints.
type PlanContextHandler struct {
	db    *gorm.DB
	store *store.PlanStore
}

// NewPlanContextHandler constructs a PlanContextHandler.
func NewPlanContextHandler(db *gorm.DB, planStore *store.PlanStore) *PlanContextHandler {
	return &PlanContextHandler{db: db, store: planStore}
}

// GetContext returns the account's normalized plan context.
func (h *PlanContextHandler) GetContext(c *gin.Context) {
	accountKey := c.GetString("accountKey")
	current, _, errGet := h.store.Get(c.Request.Context(), accountKey)
	if errGet != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load plan context failed"})
		return
	}
	c.JSON(http.StatusOK, current.Payload())
}

// PatchContext applies a partial edit to the account's plan context and
// returns the resulting snapshot. Unknown and malformed optional fields are
// dropped rather than rejected.
func (h *PlanContextHandler) PatchContext(c *gin.Context) {
	accountKey := c.GetString("accountKey")

	body, errRead := io.ReadAll(io.LimitReader(c.Request.Body, maxPatchBodyBytes))
	if errRead != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body failed"})
		return
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty body"})
		return
	}
	patch := plan.ParsePayload(body)

	current, _, errGet := h.store.Get(c.Request.Context(), accountKey)
	if errGet != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load plan context failed"})
		return
	}

	next := plan.Merge(current, patch)
	now := time.Now().UTC()
	next.UpdatedAt = &now
	next = plan.Normalize(next.Payload())

	saved, errSave := h.store.Save(c.Request.Context(), accountKey, next)
	if errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save plan context failed"})
		return
	}

	if errAudit := h.store.RecordAudit(c.Request.Context(), models.AuditEntry{
		AccountKey: accountKey,
		Actor:      saved.UpdatedBy,
		Action:     models.AuditActionSave,
		Note:       saved.ChangeNote,
		PlanTier:   string(saved.Tier),
	}); errAudit != nil {
		log.WithError(errAudit).Warn("plan context: audit write failed")
	}

	c.JSON(http.StatusOK, saved.Payload())
}

// trialRequest captures the payload for starting a trial.
type trialRequest struct {
	Actor        string `json:"actor"`
	Tier         string `json:"tier"`
	DurationDays int    `json:"durationDays"`
}

// StartTrial activates the account's one-time trial.
func (h *PlanContextHandler) StartTrial(c *gin.Context) {
	accountKey := c.GetString("accountKey")

	var body trialRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil && !errors.Is(errBind, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	tierName := strings.TrimSpace(body.Tier)
	if tierName == "" {
		tierName = internalsettings.GetString(h.db, internalsettings.TrialTierKey, internalsettings.DefaultTrialTier)
	}
	duration := body.DurationDays
	if duration <= 0 {
		duration = internalsettings.GetInt(h.db, internalsettings.TrialDurationDaysKey, internalsettings.DefaultTrialDurationDays)
	}

	updated, errTrial := h.store.StartTrial(c.Request.Context(), accountKey, plan.ParseTier(tierName), duration, body.Actor)
	if errTrial != nil {
		if errors.Is(errTrial, store.ErrTrialUsed) {
			c.JSON(http.StatusConflict, gin.H{"error": "trial already used"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "start trial failed"})
		return
	}

	if errAudit := h.store.RecordAudit(c.Request.Context(), models.AuditEntry{
		AccountKey: accountKey,
		Actor:      strings.TrimSpace(body.Actor),
		Action:     models.AuditActionTrial,
		Note:       "trial activated",
		PlanTier:   string(updated.Tier),
	}); errAudit != nil {
		log.WithError(errAudit).Warn("plan trial: audit write failed")
	}

	c.JSON(http.StatusOK, updated.Payload())
}

// ListPresets returns the enabled tier presets.
func (h *PlanContextHandler) ListPresets(c *gin.Context) {
	presets, errList := h.store.ListPresets(c.Request.Context())
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list presets failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"presets": presets})
}
