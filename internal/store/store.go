// Package store persists plan contexts, presets, and audit entries via GORM.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/finsight/planservice/internal/db"
	"github.com/finsight/planservice/internal/models"
	"github.com/finsight/planservice/internal/plan"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrTrialUsed indicates the account's one-time trial was already consumed.
var ErrTrialUsed = errors.New("plan store: trial already used")

// PlanStore is the server-side owner of persisted plan state.
type PlanStore struct {
	db *gorm.DB

	mu sync.Mutex
}

// NewPlanStore constructs a PlanStore.
func NewPlanStore(db *gorm.DB) *PlanStore {
	return &PlanStore{db: db}
}

// Get loads the normalized plan context for an account. Accounts without a
// stored row get the free-tier preset defaults; found reports whether a row
// existed.
func (s *PlanStore) Get(ctx context.Context, accountKey string) (plan.Context, bool, error) {
	if s == nil || s.db == nil {
		return plan.Context{}, false, fmt.Errorf("plan store: not initialized")
	}
	accountKey = strings.TrimSpace(accountKey)
	if accountKey == "" {
		return plan.Context{}, false, fmt.Errorf("plan store: missing account key")
	}

	var row models.PlanContext
	errFind := s.db.WithContext(ctx).Where("account_key = ?", accountKey).First(&row).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return freshContext(), false, nil
		}
		return plan.Context{}, false, fmt.Errorf("plan store: query context: %w", errFind)
	}
	return contextFromRow(row), true, nil
}

// Save upserts a full replacement of the account's plan context. Writes that
// would not change the stored row are skipped.
func (s *PlanStore) Save(ctx context.Context, accountKey string, next plan.Context) (plan.Context, error) {
	if s == nil || s.db == nil {
		return plan.Context{}, fmt.Errorf("plan store: not initialized")
	}
	accountKey = strings.TrimSpace(accountKey)
	if accountKey == "" {
		return plan.Context{}, fmt.Errorf("plan store: missing account key")
	}

	row, errRow := rowFromContext(accountKey, next)
	if errRow != nil {
		return plan.Context{}, errRow
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var existing models.PlanContext
	errFind := s.db.WithContext(ctx).Where("account_key = ?", accountKey).First(&existing).Error
	if errFind == nil && rowsEqual(existing, row) {
		return contextFromRow(existing), nil
	}

	now := time.Now().UTC()
	row.CreatedAt = now
	row.UpdatedAt = now
	if errUpsert := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "account_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"plan_tier", "expires_at", "entitlements", "feature_flags",
			"memory_flags", "quota", "trial_tier", "trial_starts_at",
			"trial_ends_at", "trial_duration_days", "trial_active",
			"trial_used", "checkout_requested", "updated_by", "change_note",
			"updated_at",
		}),
	}).Create(&row).Error; errUpsert != nil {
		return plan.Context{}, fmt.Errorf("plan store: upsert context: %w", errUpsert)
	}
	return contextFromRow(row), nil
}

// StartTrial activates the one-time trial for an account, promoting it to
// the trial tier's preset for the trial window. Reuse fails with ErrTrialUsed.
func (s *PlanStore) StartTrial(ctx context.Context, accountKey string, tier plan.Tier, durationDays int, actor string) (plan.Context, error) {
	if s == nil || s.db == nil {
		return plan.Context{}, fmt.Errorf("plan store: not initialized")
	}
	accountKey = strings.TrimSpace(accountKey)
	if accountKey == "" {
		return plan.Context{}, fmt.Errorf("plan store: missing account key")
	}
	if durationDays <= 0 {
		durationDays = plan.DefaultTrialDurationDays
	}

	current, _, errGet := s.Get(ctx, accountKey)
	if errGet != nil {
		return plan.Context{}, errGet
	}
	if current.Trial.Used {
		return plan.Context{}, ErrTrialUsed
	}

	preset := plan.PresetFor(tier)
	now := time.Now().UTC()
	ends := now.AddDate(0, 0, durationDays)

	next := current.Clone()
	next.Tier = tier
	next.Entitlements = plan.NormalizeEntitlements(append(next.Entitlements, preset.Entitlements...))
	next.Quota = preset.Quota
	next.Trial = plan.Trial{
		Tier:         tier,
		StartsAt:     &now,
		EndsAt:       &ends,
		DurationDays: durationDays,
		Active:       true,
		Used:         true,
	}
	next.UpdatedAt = &now
	next.UpdatedBy = strings.TrimSpace(actor)
	next.ChangeNote = "trial activated"
	next = plan.Normalize(next.Payload())

	return s.Save(ctx, accountKey, next)
}

// List returns plan context rows with paging and an optional account filter.
func (s *PlanStore) List(ctx context.Context, page, limit int, keyFilter string) ([]models.PlanContext, int64, error) {
	if s == nil || s.db == nil {
		return nil, 0, fmt.Errorf("plan store: not initialized")
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	base := s.db.WithContext(ctx).Model(&models.PlanContext{})
	if trimmed := strings.TrimSpace(keyFilter); trimmed != "" {
		pattern := db.NormalizeLikePattern(s.db, "%"+trimmed+"%")
		base = base.Where(db.CaseInsensitiveLikeExpr(s.db, "account_key"), pattern)
	}

	var total int64
	if errCount := base.Count(&total).Error; errCount != nil {
		return nil, 0, fmt.Errorf("plan store: count contexts: %w", errCount)
	}

	var rows []models.PlanContext
	if errFind := base.
		Order("updated_at DESC, id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&rows).Error; errFind != nil {
		return nil, 0, fmt.Errorf("plan store: list contexts: %w", errFind)
	}
	return rows, total, nil
}

// ListPresets returns enabled tier presets in display order.
func (s *PlanStore) ListPresets(ctx context.Context) ([]plan.TierPreset, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("plan store: not initialized")
	}

	var rows []models.PlanPreset
	if errFind := s.db.WithContext(ctx).
		Where("is_enabled = ?", true).
		Order("sort_order ASC, created_at DESC").
		Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("plan store: list presets: %w", errFind)
	}

	out := make([]plan.TierPreset, 0, len(rows))
	for _, row := range rows {
		out = append(out, presetFromRow(row))
	}
	return out, nil
}

// RecordAudit appends an audit entry for a plan mutation.
func (s *PlanStore) RecordAudit(ctx context.Context, entry models.AuditEntry) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("plan store: not initialized")
	}
	entry.CreatedAt = time.Now().UTC()
	if errCreate := s.db.WithContext(ctx).Create(&entry).Error; errCreate != nil {
		return fmt.Errorf("plan store: record audit: %w", errCreate)
	}
	return nil
}

// freshContext builds the default context handed to unknown accounts.
func freshContext() plan.Context {
	preset := plan.PresetFor(plan.TierFree)
	ctx := plan.Normalize(plan.Payload{})
	ctx.Quota = preset.Quota
	return ctx
}

// contextFromRow converts a database row into a normalized plan context.
// Malformed JSON columns fall back to defaults, mirroring the normalizer's
// leniency.
func contextFromRow(row models.PlanContext) plan.Context {
	var entitlements []string
	_ = json.Unmarshal(row.Entitlements, &entitlements)
	var featureFlags map[string]bool
	_ = json.Unmarshal(row.FeatureFlags, &featureFlags)
	var memoryFlags map[string]bool
	_ = json.Unmarshal(row.MemoryFlags, &memoryFlags)

	tier := row.PlanTier
	trialTier := row.TrialTier
	updatedAt := row.UpdatedAt
	updatedBy := row.UpdatedBy
	changeNote := row.ChangeNote
	checkout := row.CheckoutRequested
	duration := row.TrialDurationDays
	active := row.TrialActive
	used := row.TrialUsed

	payload := plan.Payload{
		PlanTier:          &tier,
		ExpiresAt:         row.ExpiresAt,
		Entitlements:      entitlements,
		FeatureFlags:      featureFlags,
		MemoryFlags:       memoryFlags,
		CheckoutRequested: &checkout,
		Trial: &plan.TrialPayload{
			Tier:         &trialTier,
			StartsAt:     row.TrialStartsAt,
			EndsAt:       row.TrialEndsAt,
			DurationDays: &duration,
			Active:       &active,
			Used:         &used,
		},
		UpdatedAt:  &updatedAt,
		UpdatedBy:  &updatedBy,
		ChangeNote: &changeNote,
	}
	out := plan.Normalize(payload)

	// Quota is stored in context form, not wire form.
	var quota plan.Quota
	if errUnmarshal := json.Unmarshal(row.Quota, &quota); errUnmarshal == nil {
		out.Quota = quota
	}
	return out
}

// rowFromContext converts a normalized context into its database row.
func rowFromContext(accountKey string, c plan.Context) (models.PlanContext, error) {
	entitlements, errMarshal := json.Marshal(c.Entitlements)
	if errMarshal != nil {
		return models.PlanContext{}, fmt.Errorf("plan store: marshal entitlements: %w", errMarshal)
	}
	featureFlags, errMarshal := json.Marshal(c.FeatureFlags)
	if errMarshal != nil {
		return models.PlanContext{}, fmt.Errorf("plan store: marshal feature flags: %w", errMarshal)
	}
	memoryFlags, errMarshal := json.Marshal(c.MemoryFlags)
	if errMarshal != nil {
		return models.PlanContext{}, fmt.Errorf("plan store: marshal memory flags: %w", errMarshal)
	}
	quota, errMarshal := json.Marshal(c.Quota)
	if errMarshal != nil {
		return models.PlanContext{}, fmt.Errorf("plan store: marshal quota: %w", errMarshal)
	}

	return models.PlanContext{
		AccountKey:        accountKey,
		PlanTier:          string(c.Tier),
		ExpiresAt:         c.ExpiresAt,
		Entitlements:      datatypes.JSON(entitlements),
		FeatureFlags:      datatypes.JSON(featureFlags),
		MemoryFlags:       datatypes.JSON(memoryFlags),
		Quota:             datatypes.JSON(quota),
		TrialTier:         string(c.Trial.Tier),
		TrialStartsAt:     c.Trial.StartsAt,
		TrialEndsAt:       c.Trial.EndsAt,
		TrialDurationDays: c.Trial.DurationDays,
		TrialActive:       c.Trial.Active,
		TrialUsed:         c.Trial.Used,
		CheckoutRequested: c.CheckoutRequested,
		UpdatedBy:         c.UpdatedBy,
		ChangeNote:        c.ChangeNote,
	}, nil
}

// rowsEqual compares the domain fields of two rows, ignoring timestamps.
func rowsEqual(a, b models.PlanContext) bool {
	if a.PlanTier != b.PlanTier ||
		a.TrialTier != b.TrialTier ||
		a.TrialDurationDays != b.TrialDurationDays ||
		a.TrialActive != b.TrialActive ||
		a.TrialUsed != b.TrialUsed ||
		a.CheckoutRequested != b.CheckoutRequested ||
		a.UpdatedBy != b.UpdatedBy ||
		a.ChangeNote != b.ChangeNote {
		return false
	}
	if !timesEqual(a.ExpiresAt, b.ExpiresAt) ||
		!timesEqual(a.TrialStartsAt, b.TrialStartsAt) ||
		!timesEqual(a.TrialEndsAt, b.TrialEndsAt) {
		return false
	}
	return jsonEqual(a.Entitlements, b.Entitlements) &&
		jsonEqual(a.FeatureFlags, b.FeatureFlags) &&
		jsonEqual(a.MemoryFlags, b.MemoryFlags) &&
		jsonEqual(a.Quota, b.Quota)
}

func timesEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// jsonEqual compares two JSON documents for deep equality.
func jsonEqual(a, b []byte) bool {
	var objA, objB any
	if errA := json.Unmarshal(a, &objA); errA != nil {
		return false
	}
	if errB := json.Unmarshal(b, &objB); errB != nil {
		return false
	}
	rawA, _ := json.Marshal(objA)
	rawB, _ := json.Marshal(objB)
	return string(rawA) == string(rawB)
}

// presetFromRow converts a preset row into its domain form.
func presetFromRow(row models.PlanPreset) plan.TierPreset {
	var entitlements []string
	_ = json.Unmarshal(row.Entitlements, &entitlements)
	var featureFlags map[string]bool
	_ = json.Unmarshal(row.FeatureFlags, &featureFlags)
	var memoryFlags map[string]bool
	_ = json.Unmarshal(row.MemoryFlags, &memoryFlags)
	var quota plan.Quota
	_ = json.Unmarshal(row.Quota, &quota)

	if featureFlags == nil {
		featureFlags = map[string]bool{}
	}
	if memoryFlags == nil {
		memoryFlags = map[string]bool{}
	}
	return plan.TierPreset{
		Tier:         plan.ParseTier(row.Tier),
		Entitlements: plan.NormalizeEntitlements(entitlements),
		FeatureFlags: featureFlags,
		MemoryFlags:  memoryFlags,
		Quota:        quota,
	}
}
