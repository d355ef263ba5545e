package planclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/finsight/planservice/internal/plan"
)

func serverPlanHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})
}

func TestApplyDebugOverride_UnionsWithServerPlan(t *testing.T) {
	srv := httptest.NewServer(serverPlanHandler(`{"planTier":"starter","entitlements":["y"]}`))
	t.Cleanup(srv.Close)

	s := New(Options{
		BaseURL:           srv.URL,
		DebugToolsEnabled: true,
		OverridePath:      filepath.Join(t.TempDir(), "override.json"),
	})
	if err := s.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if err := s.ApplyDebugOverride(plan.Payload{Entitlements: []string{"x"}}); err != nil {
		t.Fatalf("ApplyDebugOverride: %v", err)
	}

	want := []string{"y", "x"}
	if got := s.Snapshot().Plan.Entitlements; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestClearDebugOverride_RestoresServerPlan(t *testing.T) {
	srv := httptest.NewServer(serverPlanHandler(`{"planTier":"starter","entitlements":["y"]}`))
	t.Cleanup(srv.Close)

	overridePath := filepath.Join(t.TempDir(), "override.json")
	s := New(Options{
		BaseURL:           srv.URL,
		DebugToolsEnabled: true,
		OverridePath:      overridePath,
	})
	if err := s.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	tier := "enterprise"
	if err := s.ApplyDebugOverride(plan.Payload{PlanTier: &tier, Entitlements: []string{"x"}}); err != nil {
		t.Fatalf("ApplyDebugOverride: %v", err)
	}
	if got := s.Snapshot().Plan.Tier; got != plan.TierEnterprise {
		t.Fatalf("expected overridden tier, got %q", got)
	}

	if err := s.ClearDebugOverride(); err != nil {
		t.Fatalf("ClearDebugOverride: %v", err)
	}

	snap := s.Snapshot()
	if snap.Plan.Tier != plan.TierStarter {
		t.Fatalf("expected server tier restored without refetch, got %q", snap.Plan.Tier)
	}
	if !reflect.DeepEqual(snap.Plan.Entitlements, []string{"y"}) {
		t.Fatalf("expected server entitlements restored, got %v", snap.Plan.Entitlements)
	}
}

func TestDebugOverride_InertWhenDisabled(t *testing.T) {
	srv := httptest.NewServer(serverPlanHandler(`{"planTier":"free","entitlements":[]}`))
	t.Cleanup(srv.Close)

	s := New(Options{BaseURL: srv.URL})
	if err := s.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	tier := "enterprise"
	if err := s.ApplyDebugOverride(plan.Payload{PlanTier: &tier}); err != nil {
		t.Fatalf("ApplyDebugOverride: %v", err)
	}
	if got := s.Snapshot().Plan.Tier; got != plan.TierFree {
		t.Fatalf("expected override to be inert, got %q", got)
	}
}

func TestPersistedOverride_LoadedOnConstruction(t *testing.T) {
	overridePath := filepath.Join(t.TempDir(), "override.json")

	first := New(Options{DebugToolsEnabled: true, OverridePath: overridePath})
	tier := "pro"
	if err := first.ApplyDebugOverride(plan.Payload{PlanTier: &tier, Entitlements: []string{"x"}}); err != nil {
		t.Fatalf("ApplyDebugOverride: %v", err)
	}

	second := New(Options{DebugToolsEnabled: true, OverridePath: overridePath})
	snap := second.Snapshot()
	if snap.Plan.Tier != plan.TierPro {
		t.Fatalf("expected persisted override applied, got %q", snap.Plan.Tier)
	}

	// Without the capability the same file is ignored.
	third := New(Options{OverridePath: overridePath})
	if got := third.Snapshot().Plan.Tier; got != plan.TierFree {
		t.Fatalf("expected persisted override ignored, got %q", got)
	}
}
