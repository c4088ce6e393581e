package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/hikmah-systems/isnad/internal/feed"
	"github.com/hikmah-systems/isnad/internal/storage"
	"github.com/hikmah-systems/isnad/internal/trust"
)

const testAdminSecret = "test-secret"

// testClock lets handler tests step the service clock past the vouch
// account-age gate.
type testClock struct {
	t time.Time
}

func (c *testClock) Now() time.Time { return c.t }

func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func setupTestServer(t *testing.T) (*Server, *storage.DB, *testClock) {
	t.Helper()
	db, err := storage.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	clock := &testClock{t: time.Unix(1700000000, 0)}
	hub := feed.NewHub()
	svc := trust.NewService(db, trust.WithPublisher(hub), trust.WithClock(clock.Now))
	srv := New(svc, hub, testAdminSecret, 1000)
	t.Cleanup(srv.Close)
	return srv, db, clock
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func registerAgent(t *testing.T, srv *Server, id string, verified bool) {
	t.Helper()
	w := doJSON(t, srv, "POST", "/api/agents", map[string]any{"id": id, "verified": verified})
	if w.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d: %s", id, w.Code, w.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	w := doJSON(t, srv, "GET", "/api/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp map[string]string
	decodeBody(t, w, &resp)
	if resp["status"] != "ok" {
		t.Errorf("status = %q, want %q", resp["status"], "ok")
	}
}

func TestRegisterAndGetAgent(t *testing.T) {
	srv, _, _ := setupTestServer(t)
	registerAgent(t, srv, "agent-1", true)

	w := doJSON(t, srv, "GET", "/api/agents/agent-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var agent storage.Agent
	decodeBody(t, w, &agent)
	if agent.ID != "agent-1" {
		t.Errorf("ID = %q, want %q", agent.ID, "agent-1")
	}
	if !agent.Verified {
		t.Error("Verified = false, want true")
	}
}

func TestRegisterAgent_Duplicate(t *testing.T) {
	srv, _, _ := setupTestServer(t)
	registerAgent(t, srv, "agent-1", false)

	w := doJSON(t, srv, "POST", "/api/agents", map[string]any{"id": "agent-1"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestRegisterAgent_BadJSON(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	req := httptest.NewRequest("POST", "/api/agents", bytes.NewBufferString("{nope"))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestGetAgent_NotFound(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	w := doJSON(t, srv, "GET", "/api/agents/ghost", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestGetReputation(t *testing.T) {
	srv, _, _ := setupTestServer(t)
	registerAgent(t, srv, "agent-1", false)

	w := doJSON(t, srv, "GET", "/api/agents/agent-1/reputation", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var report trust.ReputationReport
	decodeBody(t, w, &report)
	if report.AgentID != "agent-1" {
		t.Errorf("AgentID = %q, want %q", report.AgentID, "agent-1")
	}
	if report.Tier != storage.TierNewcomer {
		t.Errorf("Tier = %q, want %q", report.Tier, storage.TierNewcomer)
	}
}

func TestGiveVouch_SelfVouchRejected(t *testing.T) {
	srv, _, _ := setupTestServer(t)
	registerAgent(t, srv, "agent-1", false)

	w := doJSON(t, srv, "POST", "/api/vouches", map[string]any{
		"voucher_id": "agent-1",
		"vouchee_id": "agent-1",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestGiveVouch_GateReturns403(t *testing.T) {
	srv, _, _ := setupTestServer(t)
	registerAgent(t, srv, "a", false)
	registerAgent(t, srv, "b", false)

	// A freshly registered agent has no reputation to vouch with.
	w := doJSON(t, srv, "POST", "/api/vouches", map[string]any{
		"voucher_id": "a",
		"vouchee_id": "b",
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestGiveVouch_Success(t *testing.T) {
	srv, db, clock := setupTestServer(t)
	registerAgent(t, srv, "a", false)
	registerAgent(t, srv, "b", false)

	// Seed reputation and age the account past the 24h gate.
	if err := db.UpdateAgentReputation("a", 50, storage.TierEstablished, clock.Now().Unix()); err != nil {
		t.Fatalf("seed reputation: %v", err)
	}
	clock.Advance(48 * time.Hour)

	w := doJSON(t, srv, "POST", "/api/vouches", map[string]any{
		"voucher_id": "a",
		"vouchee_id": "b",
		"strength":   70,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Vouch    storage.Vouch        `json:"vouch"`
		Circular trust.CircularResult `json:"circular"`
	}
	decodeBody(t, w, &resp)
	if resp.Vouch.Strength != 70 {
		t.Errorf("Strength = %d, want 70", resp.Vouch.Strength)
	}
	if resp.Circular.Circular {
		t.Errorf("Circular = true, want false")
	}

	lw := doJSON(t, srv, "GET", "/api/agents/b/vouches?direction=received&active=true", nil)
	if lw.Code != http.StatusOK {
		t.Fatalf("list vouches: status %d", lw.Code)
	}
	var list struct {
		Vouches []storage.Vouch `json:"vouches"`
	}
	decodeBody(t, lw, &list)
	if len(list.Vouches) != 1 {
		t.Errorf("got %d vouches, want 1", len(list.Vouches))
	}
}

func TestRevokeVouch_NotFound(t *testing.T) {
	srv, _, _ := setupTestServer(t)
	registerAgent(t, srv, "a", false)
	registerAgent(t, srv, "b", false)

	w := doJSON(t, srv, "DELETE", "/api/vouches/a/b", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestTaskAndReviewFlow(t *testing.T) {
	srv, _, _ := setupTestServer(t)
	registerAgent(t, srv, "req", false)
	registerAgent(t, srv, "worker", false)

	w := doJSON(t, srv, "POST", "/api/tasks", map[string]any{"requester_id": "req"})
	if w.Code != http.StatusCreated {
		t.Fatalf("post task: status %d: %s", w.Code, w.Body.String())
	}
	var task storage.Task
	decodeBody(t, w, &task)

	w = doJSON(t, srv, "POST", "/api/tasks/"+task.ID+"/claim", map[string]any{"claimer_id": "worker"})
	if w.Code != http.StatusOK {
		t.Fatalf("claim: status %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, srv, "POST", "/api/tasks/"+task.ID+"/complete", map[string]any{"success": true})
	if w.Code != http.StatusOK {
		t.Fatalf("complete: status %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, srv, "POST", "/api/tasks/"+task.ID+"/review", map[string]any{
		"reviewer_id": "req",
		"rating":      5,
		"comment":     "solid",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("review: status %d: %s", w.Code, w.Body.String())
	}
	var review storage.Review
	decodeBody(t, w, &review)
	if review.RevieweeID != "worker" {
		t.Errorf("RevieweeID = %q, want %q", review.RevieweeID, "worker")
	}

	// A second review from the same participant conflicts.
	w = doJSON(t, srv, "POST", "/api/tasks/"+task.ID+"/review", map[string]any{
		"reviewer_id": "req",
		"rating":      4,
	})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate review: status %d, want 409", w.Code)
	}
}

func TestSubmitReview_OutsiderForbidden(t *testing.T) {
	srv, _, _ := setupTestServer(t)
	registerAgent(t, srv, "req", false)
	registerAgent(t, srv, "worker", false)
	registerAgent(t, srv, "outsider", false)

	w := doJSON(t, srv, "POST", "/api/tasks", map[string]any{"requester_id": "req"})
	var task storage.Task
	decodeBody(t, w, &task)
	doJSON(t, srv, "POST", "/api/tasks/"+task.ID+"/claim", map[string]any{"claimer_id": "worker"})
	doJSON(t, srv, "POST", "/api/tasks/"+task.ID+"/complete", map[string]any{"success": true})

	w = doJSON(t, srv, "POST", "/api/tasks/"+task.ID+"/review", map[string]any{
		"reviewer_id": "outsider",
		"rating":      3,
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestIsnadEndpoint(t *testing.T) {
	srv, _, _ := setupTestServer(t)
	registerAgent(t, srv, "a", false)
	registerAgent(t, srv, "b", false)

	w := doJSON(t, srv, "GET", "/api/isnad?from=a&to=b", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var result trust.PathResult
	decodeBody(t, w, &result)
	if result.Connected {
		t.Error("Connected = true with no vouches, want false")
	}
	if result.Length != -1 {
		t.Errorf("Length = %d, want -1", result.Length)
	}
}

func TestIsnadEndpoint_Validation(t *testing.T) {
	srv, _, _ := setupTestServer(t)
	registerAgent(t, srv, "a", false)

	w := doJSON(t, srv, "GET", "/api/isnad?from=a", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing to: status = %d, want 400", w.Code)
	}

	w = doJSON(t, srv, "GET", "/api/isnad?from=a&to=b&max_depth=99", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("max_depth 99: status = %d, want 400", w.Code)
	}

	w = doJSON(t, srv, "GET", "/api/isnad?from=a&to=ghost", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown agent: status = %d, want 404", w.Code)
	}
}

func TestMaintenance_RequiresSecret(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	w := doJSON(t, srv, "POST", "/api/admin/maintenance", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no secret: status = %d, want 401", w.Code)
	}

	req := httptest.NewRequest("POST", "/api/admin/maintenance", nil)
	req.Header.Set("X-Admin-Secret", "wrong")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong secret: status = %d, want 401", rec.Code)
	}
}

func TestMaintenance_Runs(t *testing.T) {
	srv, _, _ := setupTestServer(t)
	registerAgent(t, srv, "a", false)

	req := httptest.NewRequest("POST", "/api/admin/maintenance", nil)
	req.Header.Set("X-Admin-Secret", testAdminSecret)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var result trust.MaintenanceResult
	decodeBody(t, w, &result)
	if result.AgentsUpdated != 1 {
		t.Errorf("AgentsUpdated = %d, want 1", result.AgentsUpdated)
	}
}

func TestReputationHistoryEndpoint(t *testing.T) {
	srv, _, _ := setupTestServer(t)
	registerAgent(t, srv, "req", false)
	registerAgent(t, srv, "worker", false)

	w := doJSON(t, srv, "POST", "/api/tasks", map[string]any{"requester_id": "req"})
	var task storage.Task
	decodeBody(t, w, &task)
	doJSON(t, srv, "POST", "/api/tasks/"+task.ID+"/claim", map[string]any{"claimer_id": "worker"})
	doJSON(t, srv, "POST", "/api/tasks/"+task.ID+"/complete", map[string]any{"success": true})

	hw := doJSON(t, srv, "GET", "/api/agents/worker/history", nil)
	if hw.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", hw.Code)
	}
	var resp struct {
		History []storage.ReputationHistory `json:"history"`
	}
	decodeBody(t, hw, &resp)
	if len(resp.History) != 1 {
		t.Fatalf("got %d history entries, want 1", len(resp.History))
	}
	if resp.History[0].Trigger != storage.TriggerTask {
		t.Errorf("Trigger = %q, want %q", resp.History[0].Trigger, storage.TriggerTask)
	}
}
