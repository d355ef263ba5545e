package plan

// ApplyOverride merges a partial override on top of a normalized base
// context. Only fields explicitly set in the override are touched:
// entitlement lists are unioned with the base (base keys first), flag maps
// merge per key, and scalar fields replace the base value wholesale.
func ApplyOverride(base Context, o Payload) Context {
	out := base.Clone()

	if o.PlanTier != nil {
		out.Tier = ParseTier(*o.PlanTier)
	}
	if o.ExpiresAt != nil {
		out.ExpiresAt = cloneTime(o.ExpiresAt)
	}
	if o.CheckoutRequested != nil {
		out.CheckoutRequested = *o.CheckoutRequested
	}
	if len(o.Entitlements) > 0 {
		out.Entitlements = NormalizeEntitlements(append(out.Entitlements, o.Entitlements...))
	}
	if len(o.FeatureFlags) > 0 {
		overrideFeatureFlags(&out.FeatureFlags, o.FeatureFlags)
	}
	if len(o.MemoryFlags) > 0 {
		overrideMemoryFlags(&out.MemoryFlags, o.MemoryFlags)
	}
	if o.Quota != nil {
		applyQuotaPayload(&out.Quota, *o.Quota)
	}
	if o.Trial != nil {
		applyTrialPayload(&out.Trial, *o.Trial)
	}
	return out
}

func overrideFeatureFlags(f *FeatureFlags, m map[string]bool) {
	if v, ok := m["searchCompare"]; ok {
		f.SearchCompare = v
	}
	if v, ok := m["evidenceDiff"]; ok {
		f.EvidenceDiff = v
	}
	if v, ok := m["newsSentiment"]; ok {
		f.NewsSentiment = v
	}
	if v, ok := m["filingsExport"]; ok {
		f.FilingsExport = v
	}
	if v, ok := m["alertRules"]; ok {
		f.AlertRules = v
	}
}

func overrideMemoryFlags(f *MemoryFlags, m map[string]bool) {
	if v, ok := m["chatMemory"]; ok {
		f.ChatMemory = v
	}
	if v, ok := m["watchlistSync"]; ok {
		f.WatchlistSync = v
	}
	if v, ok := m["preferenceRecall"]; ok {
		f.PreferenceRecall = v
	}
}
