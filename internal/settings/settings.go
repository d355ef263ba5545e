package settings

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/finsight/planservice/internal/models"
	"gorm.io/gorm"
)

const queryTimeout = 5 * time.Second

// GetInt reads an integer setting, returning fallback on any miss or error.
func GetInt(conn *gorm.DB, key string, fallback int) int {
	raw, ok := getRaw(conn, key)
	if !ok {
		return fallback
	}
	var value int
	if errUnmarshal := json.Unmarshal(raw, &value); errUnmarshal != nil {
		return fallback
	}
	return value
}

// GetString reads a string setting, returning fallback on any miss or error.
func GetString(conn *gorm.DB, key, fallback string) string {
	raw, ok := getRaw(conn, key)
	if !ok {
		return fallback
	}
	var value string
	if errUnmarshal := json.Unmarshal(raw, &value); errUnmarshal != nil {
		return fallback
	}
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// GetBool reads a boolean setting, returning fallback on any miss or error.
func GetBool(conn *gorm.DB, key string, fallback bool) bool {
	raw, ok := getRaw(conn, key)
	if !ok {
		return fallback
	}
	var value bool
	if errUnmarshal := json.Unmarshal(raw, &value); errUnmarshal != nil {
		return fallback
	}
	return value
}

func getRaw(conn *gorm.DB, key string) (json.RawMessage, bool) {
	if conn == nil || strings.TrimSpace(key) == "" {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var row models.Setting
	if errFind := conn.WithContext(ctx).Where("key = ?", key).First(&row).Error; errFind != nil {
		return nil, false
	}
	if len(row.Value) == 0 || string(row.Value) == "null" {
		return nil, false
	}
	return row.Value, true
}
