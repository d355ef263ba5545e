package store

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/finsight/planservice/internal/db"
	"github.com/finsight/planservice/internal/models"
	"github.com/finsight/planservice/internal/plan"
)

func newTestStore(t *testing.T) *PlanStore {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "plans-test.db")
	conn, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return NewPlanStore(conn)
}

func TestGet_UnknownAccountGetsFreeDefaults(t *testing.T) {
	s := newTestStore(t)

	ctx, found, err := s.Get(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if found {
		t.Fatal("expected found=false for unknown account")
	}
	if ctx.Tier != plan.TierFree {
		t.Fatalf("expected free tier, got %q", ctx.Tier)
	}
	if ctx.Trial.Used {
		t.Fatal("expected unused trial")
	}
}

func TestSave_RoundTrips(t *testing.T) {
	s := newTestStore(t)

	tier := "pro"
	next := plan.Normalize(plan.Payload{
		PlanTier:     &tier,
		Entitlements: []string{plan.EntSearchCompare, plan.EntRAGChat},
	})
	next.UpdatedBy = "admin@finsight"
	next.ChangeNote = "manual upgrade"

	saved, errSave := s.Save(context.Background(), "acct-1", next)
	if errSave != nil {
		t.Fatalf("Save: %v", errSave)
	}
	if saved.Tier != plan.TierPro {
		t.Fatalf("expected pro, got %q", saved.Tier)
	}

	loaded, found, errGet := s.Get(context.Background(), "acct-1")
	if errGet != nil {
		t.Fatalf("Get: %v", errGet)
	}
	if !found {
		t.Fatal("expected found=true")
	}
	if !reflect.DeepEqual(loaded.Entitlements, []string{plan.EntSearchCompare, plan.EntRAGChat}) {
		t.Fatalf("unexpected entitlements: %v", loaded.Entitlements)
	}
	if loaded.UpdatedBy != "admin@finsight" || loaded.ChangeNote != "manual upgrade" {
		t.Fatalf("unexpected audit fields: %q %q", loaded.UpdatedBy, loaded.ChangeNote)
	}
}

func TestSave_IdenticalWriteIsSkipped(t *testing.T) {
	s := newTestStore(t)

	tier := "starter"
	next := plan.Normalize(plan.Payload{PlanTier: &tier, Entitlements: []string{"a"}})

	if _, errSave := s.Save(context.Background(), "acct-1", next); errSave != nil {
		t.Fatalf("first Save: %v", errSave)
	}
	var before models.PlanContext
	if errFind := s.db.Where("account_key = ?", "acct-1").First(&before).Error; errFind != nil {
		t.Fatalf("find row: %v", errFind)
	}

	if _, errSave := s.Save(context.Background(), "acct-1", next); errSave != nil {
		t.Fatalf("second Save: %v", errSave)
	}
	var after models.PlanContext
	if errFind := s.db.Where("account_key = ?", "acct-1").First(&after).Error; errFind != nil {
		t.Fatalf("find row: %v", errFind)
	}
	if !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Fatal("expected identical save to skip the write")
	}
}

func TestStartTrial_OncePerAccount(t *testing.T) {
	s := newTestStore(t)

	updated, errTrial := s.StartTrial(context.Background(), "acct-1", plan.TierPro, 14, "user@finsight")
	if errTrial != nil {
		t.Fatalf("StartTrial: %v", errTrial)
	}
	if updated.Tier != plan.TierPro {
		t.Fatalf("expected pro during trial, got %q", updated.Tier)
	}
	if !updated.Trial.Active || !updated.Trial.Used {
		t.Fatalf("expected active used trial, got %#v", updated.Trial)
	}
	if updated.Trial.StartsAt == nil || updated.Trial.EndsAt == nil {
		t.Fatal("expected trial window set")
	}
	if !plan.HasEntitlement(updated, plan.EntRAGChat) {
		t.Fatal("expected trial tier entitlements granted")
	}

	if _, errAgain := s.StartTrial(context.Background(), "acct-1", plan.TierPro, 14, "user@finsight"); !errors.Is(errAgain, ErrTrialUsed) {
		t.Fatalf("expected ErrTrialUsed, got %v", errAgain)
	}
}

func TestListPresets_SeededByMigration(t *testing.T) {
	s := newTestStore(t)

	presets, errList := s.ListPresets(context.Background())
	if errList != nil {
		t.Fatalf("ListPresets: %v", errList)
	}
	if len(presets) != 4 {
		t.Fatalf("expected 4 presets, got %d", len(presets))
	}
	if presets[0].Tier != plan.TierFree {
		t.Fatalf("expected free preset first, got %q", presets[0].Tier)
	}
	if presets[3].Tier != plan.TierEnterprise {
		t.Fatalf("expected enterprise preset last, got %q", presets[3].Tier)
	}
	if presets[3].Quota.ChatRequestsPerDay != nil {
		t.Fatal("expected enterprise chat quota unlimited")
	}
}

func TestList_FilterAndPaging(t *testing.T) {
	s := newTestStore(t)

	for _, key := range []string{"alpha-1", "alpha-2", "beta-1"} {
		if _, errSave := s.Save(context.Background(), key, plan.Normalize(plan.Payload{})); errSave != nil {
			t.Fatalf("Save %s: %v", key, errSave)
		}
	}

	rows, total, errList := s.List(context.Background(), 1, 10, "ALPHA")
	if errList != nil {
		t.Fatalf("List: %v", errList)
	}
	if total != 2 || len(rows) != 2 {
		t.Fatalf("expected 2 alpha rows, got total=%d len=%d", total, len(rows))
	}

	rows, total, errList = s.List(context.Background(), 2, 2, "")
	if errList != nil {
		t.Fatalf("List page 2: %v", errList)
	}
	if total != 3 || len(rows) != 1 {
		t.Fatalf("expected paging 3 total / 1 row, got total=%d len=%d", total, len(rows))
	}
}
