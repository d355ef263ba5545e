package models

import (
	"time"

	"gorm.io/datatypes"
)

// PlanContext is the authoritative subscription snapshot for one account.
type PlanContext struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	AccountKey string `gorm:"type:text;not null;uniqueIndex"` // Owning account key.

	PlanTier  string     `gorm:"type:varchar(32);not null;default:'free'"` // Subscription tier.
	ExpiresAt *time.Time // Plan expiry; nil means no expiry.

	Entitlements datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'"` // Capability key list.
	FeatureFlags datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"` // Feature flag record.
	MemoryFlags  datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"` // Personalization flag record.
	Quota        datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"` // Usage ceilings.

	TrialTier         string     `gorm:"type:varchar(32);not null;default:'pro'"` // Tier granted during the trial.
	TrialStartsAt     *time.Time // Trial start time.
	TrialEndsAt       *time.Time // Trial end time.
	TrialDurationDays int        `gorm:"not null;default:0"`     // Trial length in days.
	TrialActive       bool       `gorm:"not null;default:false"` // Whether the trial is running.
	TrialUsed         bool       `gorm:"not null;default:false"` // Whether the one-time trial was consumed.

	CheckoutRequested bool `gorm:"not null;default:false"` // Pending checkout flag.

	UpdatedBy  string `gorm:"type:text"` // Actor of the last change.
	ChangeNote string `gorm:"type:text"` // Note attached to the last change.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
