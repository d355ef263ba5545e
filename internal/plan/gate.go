package plan

// Decision is a tri-state gate result. Consumers must render Unknown as a
// neutral loading state, never as a denial, to avoid a flash of incorrectly
// locked content before the first fetch completes.
type Decision int

const (
	// Unknown means no plan snapshot has been loaded yet.
	Unknown Decision = iota
	// Allowed means the entitlement is present in the effective plan.
	Allowed
	// Locked means the entitlement is absent from the effective plan.
	Locked
)

// HasEntitlement reports whether the context carries the given capability
// key. Pure derivation with no side effects.
func HasEntitlement(c Context, key string) bool {
	for _, ent := range c.Entitlements {
		if ent == key {
			return true
		}
	}
	return false
}

// Gate derives a tri-state decision for an entitlement key. initialized is
// false until the store has applied its first snapshot.
func Gate(c Context, initialized bool, key string) Decision {
	if !initialized {
		return Unknown
	}
	if HasEntitlement(c, key) {
		return Allowed
	}
	return Locked
}
