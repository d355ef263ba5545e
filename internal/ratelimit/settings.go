package ratelimit

import (
	"strings"

	internalsettings "github.com/finsight/planservice/internal/settings"
	"gorm.io/gorm"
)

// SettingsConfig captures rate limit settings stored in the settings table.
type SettingsConfig struct {
	Limit         int
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// LoadSettingsConfig loads the current rate limit settings snapshot from the
// database, falling back to defaults when rows are missing or malformed.
func LoadSettingsConfig(conn *gorm.DB) SettingsConfig {
	cfg := SettingsConfig{
		Limit:         internalsettings.GetInt(conn, internalsettings.RateLimitKey, internalsettings.DefaultRateLimit),
		RedisEnabled:  internalsettings.GetBool(conn, internalsettings.RateLimitRedisEnabledKey, false),
		RedisAddr:     internalsettings.GetString(conn, internalsettings.RateLimitRedisAddrKey, ""),
		RedisPassword: internalsettings.GetString(conn, internalsettings.RateLimitRedisPasswordKey, ""),
		RedisDB:       internalsettings.GetInt(conn, internalsettings.RateLimitRedisDBKey, 0),
		RedisPrefix:   internalsettings.GetString(conn, internalsettings.RateLimitRedisPrefixKey, internalsettings.DefaultRateLimitRedisPrefix),
	}

	cfg.RedisAddr = strings.TrimSpace(cfg.RedisAddr)
	cfg.RedisPassword = strings.TrimSpace(cfg.RedisPassword)
	cfg.RedisPrefix = strings.TrimSpace(cfg.RedisPrefix)
	if cfg.RedisPrefix == "" {
		cfg.RedisPrefix = internalsettings.DefaultRateLimitRedisPrefix
	}
	if cfg.RedisDB < 0 {
		cfg.RedisDB = 0
	}
	if cfg.Limit < 0 {
		cfg.Limit = 0
	}
	return cfg
}

// DBSettingsProvider returns a SettingsProvider reading from the database.
func DBSettingsProvider(conn *gorm.DB) SettingsProvider {
	return func() SettingsConfig {
		return LoadSettingsConfig(conn)
	}
}
