package models

import (
	"time"

	"gorm.io/datatypes"
)

// PlanPreset describes what a tier unlocks; served for upgrade previews.
type PlanPreset struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Tier string `gorm:"type:varchar(32);not null;uniqueIndex"` // Tier identifier.

	Entitlements datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'"` // Capability key list.
	FeatureFlags datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"` // Feature flag record.
	MemoryFlags  datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"` // Personalization flag record.
	Quota        datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"` // Usage ceilings.

	SortOrder int  `gorm:"not null;default:0"`    // Display ordering weight.
	IsEnabled bool `gorm:"not null;default:true"` // Whether the preset is served.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
