// Package ratelimit enforces per-account request limits with a fixed
// one-second window, backed by memory or Redis.
package ratelimit

import (
	"context"
	"strings"
	"time"
)

// Result describes the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	Reset     time.Time
}

// Limiter provides rate limit checks.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, now time.Time) (Result, error)
}

// KeyForAccount builds a limiter key for an account.
func KeyForAccount(accountKey string) string {
	accountKey = strings.TrimSpace(accountKey)
	if accountKey == "" {
		return ""
	}
	return "acct:" + accountKey
}
