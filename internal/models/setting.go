package models

import (
	"encoding/json"
	"time"
)

// Setting is a key/value configuration row stored as JSON.
type Setting struct {
	Key   string          `gorm:"primaryKey;type:text"` // Setting key.
	Value json.RawMessage `gorm:"type:jsonb"`           // JSON-encoded value.

	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
