package plan

import "strings"

// Normalize converts a possibly-partial payload into a complete context.
// Missing or malformed fields are filled from the default table; it never
// returns an error.
func Normalize(p Payload) Context {
	out := Context{
		Tier:         TierFree,
		Entitlements: NormalizeEntitlements(p.Entitlements),
		Quota:        defaultQuota(),
		Trial:        defaultTrial(),
	}

	if p.PlanTier != nil {
		out.Tier = ParseTier(*p.PlanTier)
	}
	out.ExpiresAt = cloneTime(p.ExpiresAt)
	out.FeatureFlags = featureFlagsFromMap(p.FeatureFlags)
	out.MemoryFlags = memoryFlagsFromMap(p.MemoryFlags)

	if p.Quota != nil {
		applyQuotaPayload(&out.Quota, *p.Quota)
	}
	if p.Trial != nil {
		applyTrialPayload(&out.Trial, *p.Trial)
	}
	if p.CheckoutRequested != nil {
		out.CheckoutRequested = *p.CheckoutRequested
	}
	out.UpdatedAt = cloneTime(p.UpdatedAt)
	if p.UpdatedBy != nil {
		out.UpdatedBy = strings.TrimSpace(*p.UpdatedBy)
	}
	if p.ChangeNote != nil {
		out.ChangeNote = *p.ChangeNote
	}
	return out
}

// NormalizeEntitlements trims blanks and de-duplicates entitlement keys,
// preserving first-seen order. The result is never nil.
func NormalizeEntitlements(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		trimmed := strings.TrimSpace(key)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

func featureFlagsFromMap(m map[string]bool) FeatureFlags {
	return FeatureFlags{
		SearchCompare: m["searchCompare"],
		EvidenceDiff:  m["evidenceDiff"],
		NewsSentiment: m["newsSentiment"],
		FilingsExport: m["filingsExport"],
		AlertRules:    m["alertRules"],
	}
}

func memoryFlagsFromMap(m map[string]bool) MemoryFlags {
	return MemoryFlags{
		ChatMemory:       m["chatMemory"],
		WatchlistSync:    m["watchlistSync"],
		PreferenceRecall: m["preferenceRecall"],
	}
}

func applyQuotaPayload(q *Quota, p QuotaPayload) {
	if p.ChatRequestsPerDay.Present {
		q.ChatRequestsPerDay = cloneInt(p.ChatRequestsPerDay.Value)
	}
	if p.RAGTopK.Present && p.RAGTopK.Value != nil {
		q.RAGTopK = *p.RAGTopK.Value
	}
	if p.SelfCheckEnabled != nil {
		q.SelfCheckEnabled = *p.SelfCheckEnabled
	}
	if p.ExportRowLimit.Present {
		q.ExportRowLimit = cloneInt(p.ExportRowLimit.Value)
	}
}

func applyTrialPayload(t *Trial, p TrialPayload) {
	if p.Tier != nil {
		t.Tier = ParseTier(*p.Tier)
	}
	t.StartsAt = cloneTime(p.StartsAt)
	t.EndsAt = cloneTime(p.EndsAt)
	if p.DurationDays != nil {
		t.DurationDays = *p.DurationDays
	}
	if p.Active != nil {
		t.Active = *p.Active
	}
	if p.Used != nil {
		t.Used = *p.Used
	}
}
