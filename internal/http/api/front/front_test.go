package front

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/finsight/planservice/internal/db"
	"github.com/finsight/planservice/internal/models"
	"github.com/finsight/planservice/internal/plan"
	"github.com/finsight/planservice/internal/ratelimit"
	internalsettings "github.com/finsight/planservice/internal/settings"
	"github.com/finsight/planservice/internal/store"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func newTestAPI(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := "file:" + filepath.Join(t.TempDir(), "plans-test.db")
	conn, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	r := gin.New()
	RegisterFrontRoutes(r, conn, store.NewPlanStore(conn), ratelimit.NewManager(ratelimit.DBSettingsProvider(conn), nil, nil))
	return r, conn
}

func doRequest(r *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodePayload(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if errDecode := json.Unmarshal(w.Body.Bytes(), &out); errDecode != nil {
		t.Fatalf("decode response: %v (%s)", errDecode, w.Body.String())
	}
	return out
}

func TestGetContext_RequiresBearerToken(t *testing.T) {
	r, _ := newTestAPI(t)

	if w := doRequest(r, http.MethodGet, "/api/v1/plan/context", "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plan/context", nil)
	req.Header.Set("Authorization", "Basic abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for non-bearer scheme, got %d", w.Code)
	}
}

func TestGetContext_UnknownAccountGetsFreeDefaults(t *testing.T) {
	r, _ := newTestAPI(t)

	w := doRequest(r, http.MethodGet, "/api/v1/plan/context", "acct-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	payload := decodePayload(t, w)
	if payload["planTier"] != "free" {
		t.Fatalf("expected free tier, got %v", payload["planTier"])
	}
	quota, ok := payload["quota"].(map[string]any)
	if !ok {
		t.Fatalf("expected quota object, got %v", payload["quota"])
	}
	if quota["chatRequestsPerDay"] != float64(25) {
		t.Fatalf("expected default chat quota 25, got %v", quota["chatRequestsPerDay"])
	}
}

func TestPatchContext_PersistsAndNormalizes(t *testing.T) {
	r, conn := newTestAPI(t)

	body := `{"planTier":"pro","entitlements":["rag.chat","rag.chat","search.compare"],"updatedBy":"admin","changeNote":"upgrade"}`
	w := doRequest(r, http.MethodPatch, "/api/v1/plan/context", "acct-1", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	payload := decodePayload(t, w)
	if payload["planTier"] != "pro" {
		t.Fatalf("expected pro, got %v", payload["planTier"])
	}
	ents, _ := payload["entitlements"].([]any)
	if len(ents) != 2 || ents[0] != "rag.chat" || ents[1] != "search.compare" {
		t.Fatalf("expected deduped entitlements, got %v", payload["entitlements"])
	}

	// Persisted.
	w = doRequest(r, http.MethodGet, "/api/v1/plan/context", "acct-1", "")
	if got := decodePayload(t, w)["planTier"]; got != "pro" {
		t.Fatalf("expected patch persisted, got %v", got)
	}

	// Audited.
	var audits []models.AuditEntry
	if errFind := conn.Where("account_key = ?", "acct-1").Find(&audits).Error; errFind != nil {
		t.Fatalf("load audits: %v", errFind)
	}
	if len(audits) != 1 || audits[0].Action != models.AuditActionSave {
		t.Fatalf("expected one save audit entry, got %#v", audits)
	}
}

func TestPatchContext_TriggerCheckoutFlagApplied(t *testing.T) {
	r, _ := newTestAPI(t)

	body := `{"planTier":"pro","entitlements":["rag.chat"],"triggerCheckout":true}`
	w := doRequest(r, http.MethodPatch, "/api/v1/plan/context", "acct-1", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	if payload := decodePayload(t, w); payload["checkoutRequested"] != true {
		t.Fatalf("expected checkoutRequested=true in response, got %v", payload["checkoutRequested"])
	}

	w = doRequest(r, http.MethodGet, "/api/v1/plan/context", "acct-1", "")
	if payload := decodePayload(t, w); payload["checkoutRequested"] != true {
		t.Fatalf("expected checkout flag persisted, got %v", payload["checkoutRequested"])
	}
}

func TestPatchContext_EmptyBodyRejected(t *testing.T) {
	r, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/plan/context", strings.NewReader(""))
	req.Header.Set("Authorization", "Bearer acct-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty body, got %d", w.Code)
	}
}

func TestStartTrial_OnceThenConflict(t *testing.T) {
	r, _ := newTestAPI(t)

	w := doRequest(r, http.MethodPost, "/api/v1/plan/trial", "acct-1", `{"actor":"user"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	payload := decodePayload(t, w)
	if payload["planTier"] != internalsettings.DefaultTrialTier {
		t.Fatalf("expected trial tier %q, got %v", internalsettings.DefaultTrialTier, payload["planTier"])
	}
	trial, _ := payload["trial"].(map[string]any)
	if trial == nil || trial["active"] != true || trial["used"] != true {
		t.Fatalf("expected active used trial, got %v", payload["trial"])
	}

	if w = doRequest(r, http.MethodPost, "/api/v1/plan/trial", "acct-1", `{"actor":"user"}`); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 on second trial, got %d", w.Code)
	}
}

func TestListPresets_ReturnsSeededTiers(t *testing.T) {
	r, _ := newTestAPI(t)

	w := doRequest(r, http.MethodGet, "/api/v1/plan/presets", "acct-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var out struct {
		Presets []plan.TierPreset `json:"presets"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &out); errDecode != nil {
		t.Fatalf("decode presets: %v", errDecode)
	}
	if len(out.Presets) != 4 {
		t.Fatalf("expected 4 presets, got %d", len(out.Presets))
	}
	if out.Presets[0].Tier != plan.TierFree || out.Presets[3].Tier != plan.TierEnterprise {
		t.Fatalf("unexpected preset order: %v, %v", out.Presets[0].Tier, out.Presets[3].Tier)
	}
}

func TestRateLimit_TooManyRequests(t *testing.T) {
	r, conn := newTestAPI(t)

	if errSave := conn.Model(&models.Setting{}).
		Where("key = ?", internalsettings.RateLimitKey).
		Update("value", json.RawMessage("1")).Error; errSave != nil {
		t.Fatalf("set rate limit: %v", errSave)
	}

	if w := doRequest(r, http.MethodGet, "/api/v1/plan/context", "acct-1", ""); w.Code != http.StatusOK {
		t.Fatalf("expected first request allowed, got %d", w.Code)
	}
	if w := doRequest(r, http.MethodGet, "/api/v1/plan/context", "acct-1", ""); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 within the same window, got %d", w.Code)
	}
	// A different account key has its own window.
	if w := doRequest(r, http.MethodGet, "/api/v1/plan/context", "acct-2", ""); w.Code != http.StatusOK {
		t.Fatalf("expected other account allowed, got %d", w.Code)
	}
}
