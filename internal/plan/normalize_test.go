package plan

import (
	"reflect"
	"testing"
	"time"
)

func TestNormalize_EmptyPayloadFillsDefaults(t *testing.T) {
	out := Normalize(Payload{})

	if out.Tier != TierFree {
		t.Fatalf("expected free tier, got %q", out.Tier)
	}
	if out.Entitlements == nil || len(out.Entitlements) != 0 {
		t.Fatalf("expected empty non-nil entitlements, got %#v", out.Entitlements)
	}
	if out.Quota.ChatRequestsPerDay == nil || *out.Quota.ChatRequestsPerDay != 25 {
		t.Fatalf("expected default chat quota 25, got %#v", out.Quota.ChatRequestsPerDay)
	}
	if out.Quota.RAGTopK != 4 {
		t.Fatalf("expected default ragTopK 4, got %d", out.Quota.RAGTopK)
	}
	if out.Quota.ExportRowLimit == nil || *out.Quota.ExportRowLimit != 500 {
		t.Fatalf("expected default export limit 500, got %#v", out.Quota.ExportRowLimit)
	}
	if out.Trial.Tier != TierPro || out.Trial.DurationDays != 14 {
		t.Fatalf("expected default trial pro/14, got %q/%d", out.Trial.Tier, out.Trial.DurationDays)
	}
	if out.Trial.Active || out.Trial.Used {
		t.Fatalf("expected trial inactive and unused")
	}
}

func TestNormalize_UnknownTierFallsBackToFree(t *testing.T) {
	tier := "platinum"
	out := Normalize(Payload{PlanTier: &tier})
	if out.Tier != TierFree {
		t.Fatalf("expected free for unknown tier, got %q", out.Tier)
	}
}

func TestNormalizeEntitlements_DedupPreservesFirstSeenOrder(t *testing.T) {
	got := NormalizeEntitlements([]string{"a", "a", "b", " ", "a", "c", "b"})
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	if got := NormalizeEntitlements(nil); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice for nil input, got %#v", got)
	}
}

func TestNormalize_NullQuotaMeansUnlimited(t *testing.T) {
	p := ParsePayload([]byte(`{"planTier":"enterprise","quota":{"chatRequestsPerDay":null,"ragTopK":32}}`))
	out := Normalize(p)
	if out.Quota.ChatRequestsPerDay != nil {
		t.Fatalf("expected unlimited chat quota, got %d", *out.Quota.ChatRequestsPerDay)
	}
	if out.Quota.RAGTopK != 32 {
		t.Fatalf("expected ragTopK 32, got %d", out.Quota.RAGTopK)
	}
	// Absent fields keep defaults.
	if out.Quota.ExportRowLimit == nil || *out.Quota.ExportRowLimit != 500 {
		t.Fatalf("expected default export limit, got %#v", out.Quota.ExportRowLimit)
	}
}

func TestNormalize_RoundTripIsIdempotent(t *testing.T) {
	tier := "pro"
	expires := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	checkout := true
	first := Normalize(Payload{
		PlanTier:          &tier,
		ExpiresAt:         &expires,
		Entitlements:      []string{"search.compare", "rag.chat", "search.compare"},
		FeatureFlags:      map[string]bool{"searchCompare": true},
		MemoryFlags:       map[string]bool{"chatMemory": true},
		CheckoutRequested: &checkout,
	})

	second := Normalize(first.Payload())
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("normalize round trip changed the context:\nfirst:  %#v\nsecond: %#v", first, second)
	}
}

func TestParsePayload_MalformedFieldsAreDropped(t *testing.T) {
	p := ParsePayload([]byte(`{"planTier":123,"entitlements":["evidence.diff"],"featureFlags":"broken"}`))
	if p.PlanTier != nil {
		t.Fatalf("expected malformed planTier to be dropped, got %q", *p.PlanTier)
	}
	if len(p.Entitlements) != 1 || p.Entitlements[0] != "evidence.diff" {
		t.Fatalf("expected valid entitlements to survive, got %#v", p.Entitlements)
	}
	if p.FeatureFlags != nil {
		t.Fatalf("expected malformed featureFlags to be dropped")
	}

	if got := ParsePayload([]byte("not json")); !reflect.DeepEqual(got, Payload{}) {
		t.Fatalf("expected empty payload for invalid json, got %#v", got)
	}
}

func TestParsePayload_TriggerCheckoutAlias(t *testing.T) {
	p := ParsePayload([]byte(`{"triggerCheckout":true}`))
	if p.CheckoutRequested == nil || !*p.CheckoutRequested {
		t.Fatal("expected triggerCheckout to set the checkout flag")
	}

	p = ParsePayload([]byte(`{"checkoutRequested":true}`))
	if p.CheckoutRequested == nil || !*p.CheckoutRequested {
		t.Fatal("expected checkoutRequested to set the checkout flag")
	}
}

func TestOptionalInt_JSON(t *testing.T) {
	var o OptionalInt
	if err := o.UnmarshalJSON([]byte("null")); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if !o.Present || o.Value != nil {
		t.Fatalf("expected present unlimited, got %#v", o)
	}

	if err := o.UnmarshalJSON([]byte("7")); err != nil {
		t.Fatalf("unmarshal 7: %v", err)
	}
	if !o.Present || o.Value == nil || *o.Value != 7 {
		t.Fatalf("expected present 7, got %#v", o)
	}

	if err := o.UnmarshalJSON([]byte(`"seven"`)); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	if o.Present {
		t.Fatalf("expected malformed value to read as absent")
	}
}
