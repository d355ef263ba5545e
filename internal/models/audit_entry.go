package models

import "time"

// Audit actions recorded for plan changes.
const (
	AuditActionSave  = "save"
	AuditActionTrial = "trial"
)

// AuditEntry records a plan mutation for display in the admin console.
type AuditEntry struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	AccountKey string `gorm:"type:text;not null;index"` // Affected account.
	Actor      string `gorm:"type:text"`                // Who performed the change.
	Action     string `gorm:"type:varchar(32);not null"` // save or trial.
	Note       string `gorm:"type:text"`                // Change note, display-only.
	PlanTier   string `gorm:"type:varchar(32)"`         // Tier after the change.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Event timestamp.
}
