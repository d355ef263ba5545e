package plan

import (
	"encoding/json"
	"time"
)

// OptionalInt distinguishes an absent field from an explicit null. A wire
// null in a numeric quota field means unlimited.
type OptionalInt struct {
	Present bool
	Value   *int
}

// Int builds a set OptionalInt.
func Int(v int) OptionalInt {
	return OptionalInt{Present: true, Value: &v}
}

// Unlimited builds an explicit-null OptionalInt.
func Unlimited() OptionalInt {
	return OptionalInt{Present: true}
}

// UnmarshalJSON records presence and tolerates malformed values by treating
// them as absent.
func (o *OptionalInt) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		o.Present = true
		o.Value = nil
		return nil
	}
	var v int
	if errUnmarshal := json.Unmarshal(data, &v); errUnmarshal != nil {
		o.Present = false
		o.Value = nil
		return nil
	}
	o.Present = true
	o.Value = &v
	return nil
}

// MarshalJSON encodes an unset or unlimited value as null.
func (o OptionalInt) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}

// QuotaPayload is the wire form of quota limits; every field is optional.
type QuotaPayload struct {
	ChatRequestsPerDay OptionalInt `json:"chatRequestsPerDay"`
	RAGTopK            OptionalInt `json:"ragTopK"`
	SelfCheckEnabled   *bool       `json:"selfCheckEnabled"`
	ExportRowLimit     OptionalInt `json:"exportRowLimit"`
}

// TrialPayload is the wire form of the trial record; every field is optional.
type TrialPayload struct {
	Tier         *string    `json:"tier"`
	StartsAt     *time.Time `json:"startsAt"`
	EndsAt       *time.Time `json:"endsAt"`
	DurationDays *int       `json:"durationDays"`
	Active       *bool      `json:"active"`
	Used         *bool      `json:"used"`
}

// Payload is a possibly-partial plan snapshot as exchanged with the plan API.
// Nil fields were absent from the wire.
type Payload struct {
	PlanTier          *string         `json:"planTier,omitempty"`
	ExpiresAt         *time.Time      `json:"expiresAt,omitempty"`
	Entitlements      []string        `json:"entitlements,omitempty"`
	FeatureFlags      map[string]bool `json:"featureFlags,omitempty"`
	MemoryFlags       map[string]bool `json:"memoryFlags,omitempty"`
	Quota             *QuotaPayload   `json:"quota,omitempty"`
	Trial             *TrialPayload   `json:"trial,omitempty"`
	CheckoutRequested *bool           `json:"checkoutRequested,omitempty"`
	UpdatedAt         *time.Time      `json:"updatedAt,omitempty"`
	UpdatedBy         *string         `json:"updatedBy,omitempty"`
	ChangeNote        *string         `json:"changeNote,omitempty"`
}

// ParsePayload decodes a wire payload field by field, dropping fields that
// fail to decode instead of failing the whole payload. The UI must never
// hard-fail on a malformed optional field.
func ParsePayload(data []byte) Payload {
	var fields map[string]json.RawMessage
	if errUnmarshal := json.Unmarshal(data, &fields); errUnmarshal != nil {
		return Payload{}
	}

	var p Payload
	decode := func(key string, dst any) {
		raw, ok := fields[key]
		if !ok || string(raw) == "null" {
			return
		}
		_ = json.Unmarshal(raw, dst)
	}

	decode("planTier", &p.PlanTier)
	decode("expiresAt", &p.ExpiresAt)
	decode("entitlements", &p.Entitlements)
	decode("featureFlags", &p.FeatureFlags)
	decode("memoryFlags", &p.MemoryFlags)
	decode("quota", &p.Quota)
	decode("trial", &p.Trial)
	decode("checkoutRequested", &p.CheckoutRequested)
	// PATCH bodies name this field triggerCheckout; snapshots use
	// checkoutRequested. Both decode into the same field.
	decode("triggerCheckout", &p.CheckoutRequested)
	decode("updatedAt", &p.UpdatedAt)
	decode("updatedBy", &p.UpdatedBy)
	decode("changeNote", &p.ChangeNote)
	return p
}

// Payload converts a normalized context back into wire form. Running the
// result through Normalize yields the same context again.
func (c Context) Payload() Payload {
	tier := string(c.Tier)
	trialTier := string(c.Trial.Tier)
	duration := c.Trial.DurationDays
	active := c.Trial.Active
	used := c.Trial.Used
	selfCheck := c.Quota.SelfCheckEnabled
	checkout := c.CheckoutRequested
	updatedBy := c.UpdatedBy
	changeNote := c.ChangeNote

	quota := QuotaPayload{
		ChatRequestsPerDay: OptionalInt{Present: true, Value: cloneInt(c.Quota.ChatRequestsPerDay)},
		RAGTopK:            Int(c.Quota.RAGTopK),
		SelfCheckEnabled:   &selfCheck,
		ExportRowLimit:     OptionalInt{Present: true, Value: cloneInt(c.Quota.ExportRowLimit)},
	}
	trial := TrialPayload{
		Tier:         &trialTier,
		StartsAt:     cloneTime(c.Trial.StartsAt),
		EndsAt:       cloneTime(c.Trial.EndsAt),
		DurationDays: &duration,
		Active:       &active,
		Used:         &used,
	}

	return Payload{
		PlanTier:          &tier,
		ExpiresAt:         cloneTime(c.ExpiresAt),
		Entitlements:      append([]string{}, c.Entitlements...),
		FeatureFlags:      featureFlagMap(c.FeatureFlags),
		MemoryFlags:       memoryFlagMap(c.MemoryFlags),
		Quota:             &quota,
		Trial:             &trial,
		CheckoutRequested: &checkout,
		UpdatedAt:         cloneTime(c.UpdatedAt),
		UpdatedBy:         &updatedBy,
		ChangeNote:        &changeNote,
	}
}

func featureFlagMap(f FeatureFlags) map[string]bool {
	return map[string]bool{
		"searchCompare": f.SearchCompare,
		"evidenceDiff":  f.EvidenceDiff,
		"newsSentiment": f.NewsSentiment,
		"filingsExport": f.FilingsExport,
		"alertRules":    f.AlertRules,
	}
}

func memoryFlagMap(m MemoryFlags) map[string]bool {
	return map[string]bool{
		"chatMemory":       m.ChatMemory,
		"watchlistSync":    m.WatchlistSync,
		"preferenceRecall": m.PreferenceRecall,
	}
}
