package plan

import (
	"reflect"
	"testing"
)

func TestApplyOverride_UnionKeepsBaseFirst(t *testing.T) {
	base := Normalize(Payload{Entitlements: []string{"y"}})
	out := ApplyOverride(base, Payload{Entitlements: []string{"x", "y"}})

	want := []string{"y", "x"}
	if !reflect.DeepEqual(out.Entitlements, want) {
		t.Fatalf("expected %v, got %v", want, out.Entitlements)
	}
	// Base untouched.
	if !reflect.DeepEqual(base.Entitlements, []string{"y"}) {
		t.Fatalf("expected base to be unchanged, got %v", base.Entitlements)
	}
}

func TestApplyOverride_ScalarsReplaceWholesale(t *testing.T) {
	base := Normalize(Payload{})
	tier := "enterprise"
	out := ApplyOverride(base, Payload{
		PlanTier:     &tier,
		FeatureFlags: map[string]bool{"searchCompare": true},
	})

	if out.Tier != TierEnterprise {
		t.Fatalf("expected enterprise, got %q", out.Tier)
	}
	if !out.FeatureFlags.SearchCompare {
		t.Fatal("expected searchCompare flag overridden")
	}
	// Flags absent from the override keep their base value.
	if out.FeatureFlags.EvidenceDiff {
		t.Fatal("expected evidenceDiff to stay false")
	}
}

func TestApplyOverride_QuotaPerField(t *testing.T) {
	base := Normalize(Payload{})
	out := ApplyOverride(base, Payload{
		Quota: &QuotaPayload{ChatRequestsPerDay: Unlimited()},
	})

	if out.Quota.ChatRequestsPerDay != nil {
		t.Fatalf("expected unlimited chat quota, got %d", *out.Quota.ChatRequestsPerDay)
	}
	if out.Quota.RAGTopK != base.Quota.RAGTopK {
		t.Fatalf("expected ragTopK untouched, got %d", out.Quota.RAGTopK)
	}
}

func TestMerge_EntitlementsReplaceAndDedup(t *testing.T) {
	base := Normalize(Payload{Entitlements: []string{"old.key"}})
	out := Merge(base, Payload{Entitlements: []string{"a", "a", "b"}})

	want := []string{"a", "b"}
	if !reflect.DeepEqual(out.Entitlements, want) {
		t.Fatalf("expected %v, got %v", want, out.Entitlements)
	}
}

func TestMerge_AbsentFieldsUntouched(t *testing.T) {
	tier := "pro"
	base := Normalize(Payload{PlanTier: &tier, Entitlements: []string{"a"}})
	note := "quota bump"
	out := Merge(base, Payload{ChangeNote: &note})

	if out.Tier != TierPro {
		t.Fatalf("expected tier preserved, got %q", out.Tier)
	}
	if !reflect.DeepEqual(out.Entitlements, []string{"a"}) {
		t.Fatalf("expected entitlements preserved, got %v", out.Entitlements)
	}
	if out.ChangeNote != note {
		t.Fatalf("expected change note applied, got %q", out.ChangeNote)
	}
	if out.Trial.Used {
		t.Fatal("expected trial state untouched")
	}
}
