package plan

// Merge applies a partial edit on top of a normalized base context. Unlike
// ApplyOverride, a provided entitlement list replaces the base list wholesale
// after normalization. Trial state is never edited this way; it only changes
// through trial activation.
func Merge(base Context, p Payload) Context {
	out := base.Clone()

	if p.PlanTier != nil {
		out.Tier = ParseTier(*p.PlanTier)
	}
	if p.ExpiresAt != nil {
		out.ExpiresAt = cloneTime(p.ExpiresAt)
	}
	if p.Entitlements != nil {
		out.Entitlements = NormalizeEntitlements(p.Entitlements)
	}
	if len(p.FeatureFlags) > 0 {
		overrideFeatureFlags(&out.FeatureFlags, p.FeatureFlags)
	}
	if len(p.MemoryFlags) > 0 {
		overrideMemoryFlags(&out.MemoryFlags, p.MemoryFlags)
	}
	if p.Quota != nil {
		applyQuotaPayload(&out.Quota, *p.Quota)
	}
	if p.CheckoutRequested != nil {
		out.CheckoutRequested = *p.CheckoutRequested
	}
	if p.UpdatedBy != nil {
		out.UpdatedBy = *p.UpdatedBy
	}
	if p.ChangeNote != nil {
		out.ChangeNote = *p.ChangeNote
	}
	return out
}
