package plan

import (
	"strings"
	"time"
)

// Tier identifies a subscription tier.
type Tier string

// Known subscription tiers, ordered from lowest to highest.
const (
	TierFree       Tier = "free"
	TierStarter    Tier = "starter"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// ParseTier normalizes a tier string, falling back to free for unknown input.
func ParseTier(raw string) Tier {
	switch Tier(strings.ToLower(strings.TrimSpace(raw))) {
	case TierStarter:
		return TierStarter
	case TierPro:
		return TierPro
	case TierEnterprise:
		return TierEnterprise
	default:
		return TierFree
	}
}

// FeatureFlags is the fixed set of feature toggles carried by every context.
type FeatureFlags struct {
	SearchCompare bool `json:"searchCompare"` // Side-by-side search comparison.
	EvidenceDiff  bool `json:"evidenceDiff"`  // Inline evidence diffing.
	NewsSentiment bool `json:"newsSentiment"` // News sentiment overlays.
	FilingsExport bool `json:"filingsExport"` // Filing table exports.
	AlertRules    bool `json:"alertRules"`    // Custom alert rule builder.
}

// MemoryFlags is the fixed set of personalization toggles.
type MemoryFlags struct {
	ChatMemory       bool `json:"chatMemory"`       // Persistent chat history.
	WatchlistSync    bool `json:"watchlistSync"`    // Cross-device watchlist sync.
	PreferenceRecall bool `json:"preferenceRecall"` // Saved analysis preferences.
}

// Quota holds usage ceilings. A nil numeric field means unlimited.
type Quota struct {
	ChatRequestsPerDay *int `json:"chatRequestsPerDay"` // Chat requests per day.
	RAGTopK            int  `json:"ragTopK"`            // Retrieval top-K per query.
	SelfCheckEnabled   bool `json:"selfCheckEnabled"`   // Answer self-check pass.
	ExportRowLimit     *int `json:"exportRowLimit"`     // Max rows per export.
}

// Trial describes the single trial lifecycle of an account. A trial can be
// used but no longer active once it expires.
type Trial struct {
	Tier         Tier       `json:"tier"`
	StartsAt     *time.Time `json:"startsAt"`
	EndsAt       *time.Time `json:"endsAt"`
	DurationDays int        `json:"durationDays"`
	Active       bool       `json:"active"`
	Used         bool       `json:"used"`
}

// Context is a fully-populated plan snapshot. Every field is present after
// normalization regardless of what the server sent.
type Context struct {
	Tier              Tier         `json:"planTier"`
	ExpiresAt         *time.Time   `json:"expiresAt"`
	Entitlements      []string     `json:"entitlements"`
	FeatureFlags      FeatureFlags `json:"featureFlags"`
	MemoryFlags       MemoryFlags  `json:"memoryFlags"`
	Quota             Quota        `json:"quota"`
	Trial             Trial        `json:"trial"`
	CheckoutRequested bool         `json:"checkoutRequested"`

	// Audit metadata, display-only.
	UpdatedAt  *time.Time `json:"updatedAt"`
	UpdatedBy  string     `json:"updatedBy"`
	ChangeNote string     `json:"changeNote"`
}

// Default trial parameters granted when the server omits the trial record.
const (
	DefaultTrialTier         = TierPro
	DefaultTrialDurationDays = 14
)

// defaultQuota is the fill-in table for missing quota fields.
func defaultQuota() Quota {
	chat := 25
	export := 500
	return Quota{
		ChatRequestsPerDay: &chat,
		RAGTopK:            4,
		SelfCheckEnabled:   false,
		ExportRowLimit:     &export,
	}
}

// defaultTrial is the fill-in table for a missing trial record.
func defaultTrial() Trial {
	return Trial{
		Tier:         DefaultTrialTier,
		DurationDays: DefaultTrialDurationDays,
	}
}

// Default returns the hardcoded free-tier fallback used when no server
// snapshot is available. Quota is zeroed so gated features render locked.
func Default() Context {
	zero := 0
	zeroExport := 0
	return Context{
		Tier:         TierFree,
		Entitlements: []string{},
		Quota: Quota{
			ChatRequestsPerDay: &zero,
			ExportRowLimit:     &zeroExport,
		},
		Trial: defaultTrial(),
	}
}

// Clone returns a deep copy of the context.
func (c Context) Clone() Context {
	out := c
	out.Entitlements = append([]string{}, c.Entitlements...)
	out.ExpiresAt = cloneTime(c.ExpiresAt)
	out.UpdatedAt = cloneTime(c.UpdatedAt)
	out.Quota.ChatRequestsPerDay = cloneInt(c.Quota.ChatRequestsPerDay)
	out.Quota.ExportRowLimit = cloneInt(c.Quota.ExportRowLimit)
	out.Trial.StartsAt = cloneTime(c.Trial.StartsAt)
	out.Trial.EndsAt = cloneTime(c.Trial.EndsAt)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}
