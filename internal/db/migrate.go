package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/finsight/planservice/internal/models"
	"github.com/finsight/planservice/internal/plan"
	internalsettings "github.com/finsight/planservice/internal/settings"
	"gorm.io/gorm"
)

// Migrate applies the schema, seeds tier presets, and ensures settings.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}

	if errAutoMigrate := conn.AutoMigrate(
		&models.Admin{},
		&models.PlanContext{},
		&models.PlanPreset{},
		&models.AuditEntry{},
		&models.Setting{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	if errSeed := ensureDefaultPresets(conn); errSeed != nil {
		return errSeed
	}
	if errSeed := ensureStringSetting(conn, internalsettings.SiteNameKey, internalsettings.DefaultSiteName); errSeed != nil {
		return errSeed
	}
	if errSeed := ensureStringSetting(conn, internalsettings.TrialTierKey, internalsettings.DefaultTrialTier); errSeed != nil {
		return errSeed
	}
	if errSeed := ensureIntSetting(conn, internalsettings.TrialDurationDaysKey, internalsettings.DefaultTrialDurationDays); errSeed != nil {
		return errSeed
	}
	if errSeed := ensureIntSetting(conn, internalsettings.RateLimitKey, internalsettings.DefaultRateLimit); errSeed != nil {
		return errSeed
	}

	// ddl defines an index statement to apply.
	type ddl struct {
		name string // Human-readable name for error reporting.
		sql  string // SQL to execute.
	}
	ddls := []ddl{
		{
			name: "idx_plan_contexts_updated_at_id",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_plan_contexts_updated_at_id
				ON plan_contexts (updated_at DESC, id DESC)
			`,
		},
		{
			name: "idx_audit_entries_account_created_at",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_audit_entries_account_created_at
				ON audit_entries (account_key, created_at DESC)
			`,
		},
		{
			name: "idx_plan_presets_enabled_sort_order",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_plan_presets_enabled_sort_order
				ON plan_presets (is_enabled, sort_order ASC)
			`,
		},
	}
	for _, item := range ddls {
		if errDDL := conn.Exec(item.sql).Error; errDDL != nil {
			return fmt.Errorf("db: create index %s: %w", item.name, errDDL)
		}
	}

	return nil
}

// ensureDefaultPresets seeds the built-in tier presets for tiers that have
// no preset row yet. Existing rows are left untouched so admin edits stick.
func ensureDefaultPresets(conn *gorm.DB) error {
	for i, preset := range plan.DefaultPresets() {
		var existing models.PlanPreset
		errFind := conn.Where("tier = ?", string(preset.Tier)).First(&existing).Error
		if errFind == nil {
			continue
		}
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			return fmt.Errorf("db: query preset %s: %w", preset.Tier, errFind)
		}

		row, errRow := presetRow(preset, i)
		if errRow != nil {
			return errRow
		}
		if errCreate := conn.Create(&row).Error; errCreate != nil {
			return fmt.Errorf("db: seed preset %s: %w", preset.Tier, errCreate)
		}
	}
	return nil
}

// presetRow converts a built-in preset into its database row.
func presetRow(preset plan.TierPreset, sortOrder int) (models.PlanPreset, error) {
	entitlements, errMarshal := json.Marshal(preset.Entitlements)
	if errMarshal != nil {
		return models.PlanPreset{}, fmt.Errorf("db: marshal preset entitlements: %w", errMarshal)
	}
	featureFlags, errMarshal := json.Marshal(preset.FeatureFlags)
	if errMarshal != nil {
		return models.PlanPreset{}, fmt.Errorf("db: marshal preset feature flags: %w", errMarshal)
	}
	memoryFlags, errMarshal := json.Marshal(preset.MemoryFlags)
	if errMarshal != nil {
		return models.PlanPreset{}, fmt.Errorf("db: marshal preset memory flags: %w", errMarshal)
	}
	quota, errMarshal := json.Marshal(preset.Quota)
	if errMarshal != nil {
		return models.PlanPreset{}, fmt.Errorf("db: marshal preset quota: %w", errMarshal)
	}

	now := time.Now().UTC()
	return models.PlanPreset{
		Tier:         string(preset.Tier),
		Entitlements: entitlements,
		FeatureFlags: featureFlags,
		MemoryFlags:  memoryFlags,
		Quota:        quota,
		SortOrder:    sortOrder,
		IsEnabled:    true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// ensureIntSetting ensures an integer setting exists and defaults when empty.
func ensureIntSetting(conn *gorm.DB, key string, value int) error {
	payload, errMarshal := json.Marshal(value)
	if errMarshal != nil {
		return fmt.Errorf("db: marshal %s setting: %w", key, errMarshal)
	}
	return ensureSetting(conn, key, payload)
}

// ensureStringSetting ensures a string setting exists and defaults when empty.
func ensureStringSetting(conn *gorm.DB, key, value string) error {
	payload, errMarshal := json.Marshal(value)
	if errMarshal != nil {
		return fmt.Errorf("db: marshal %s setting: %w", key, errMarshal)
	}
	return ensureSetting(conn, key, payload)
}

func ensureSetting(conn *gorm.DB, key string, rawValue json.RawMessage) error {
	var existing models.Setting
	if errFind := conn.Where("key = ?", key).First(&existing).Error; errFind == nil {
		if len(existing.Value) == 0 || string(existing.Value) == "null" {
			if errUpdate := conn.Model(&existing).Updates(map[string]any{
				"value":      rawValue,
				"updated_at": time.Now().UTC(),
			}).Error; errUpdate != nil {
				return fmt.Errorf("db: update %s setting: %w", key, errUpdate)
			}
		}
		return nil
	} else if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return fmt.Errorf("db: query %s setting: %w", key, errFind)
	}

	setting := models.Setting{
		Key:       key,
		Value:     rawValue,
		UpdatedAt: time.Now().UTC(),
	}
	if errCreate := conn.Create(&setting).Error; errCreate != nil {
		return fmt.Errorf("db: create %s setting: %w", key, errCreate)
	}
	return nil
}
