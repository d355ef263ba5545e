package plan

import "testing"

func TestGate_UnknownBeforeInitialized(t *testing.T) {
	c := Normalize(Payload{Entitlements: []string{EntSearchCompare}})
	if got := Gate(c, false, EntSearchCompare); got != Unknown {
		t.Fatalf("expected Unknown before initialization, got %v", got)
	}
}

func TestGate_AllowedAndLocked(t *testing.T) {
	c := Normalize(Payload{Entitlements: []string{EntSearchCompare, EntRAGChat}})

	if got := Gate(c, true, EntSearchCompare); got != Allowed {
		t.Fatalf("expected Allowed, got %v", got)
	}
	if got := Gate(c, true, EntFilingsExport); got != Locked {
		t.Fatalf("expected Locked, got %v", got)
	}
}

func TestHasEntitlement(t *testing.T) {
	c := Context{Entitlements: []string{"a", "b"}}
	if !HasEntitlement(c, "a") {
		t.Fatal("expected entitlement a")
	}
	if HasEntitlement(c, "c") {
		t.Fatal("did not expect entitlement c")
	}
}
