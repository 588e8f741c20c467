package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"stake-guard/internal/bankroll"
	"stake-guard/internal/behavior"
	"stake-guard/internal/events"
	"stake-guard/internal/guard"
	"stake-guard/internal/ledger"
	"stake-guard/internal/monitor"

	"github.com/gin-gonic/gin"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	SetRateLimit(10000, 10000)

	bus := events.NewBus()
	rules := guard.NewInMemory(guard.DefaultRules())
	store := ledger.NewStore(nil, 50)
	tracker := behavior.NewTracker(context.Background(), nil, 24*time.Hour)
	bank, err := bankroll.NewManager(context.Background(), nil, 1000)
	if err != nil {
		t.Fatalf("bankroll.NewManager returned error: %v", err)
	}
	metrics := monitor.NewGuardMetrics()

	s := NewServer(bus, nil, rules, store, tracker, bank, metrics, nil, SystemMeta{Version: "test"})

	// Fixed clock and predictable ids keep responses deterministic.
	now := time.Date(2026, 8, 19, 12, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return now }
	seq := 0
	s.NewID = func() string {
		seq++
		return "bet-" + string(rune('0'+seq))
	}
	return s
}

func doJSON(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var rd *bytes.Reader
	if body == "" {
		rd = bytes.NewReader(nil)
	} else {
		rd = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)
	return w
}

func TestEvaluateEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(s, http.MethodPost, "/api/evaluate",
		`{"stake": 15, "odds": -110, "event_id": "e1", "team_id": "t1"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, expected 200: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Decision guard.DecisionResult `json:"decision"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Decision.Verdict != guard.VerdictAllow {
		t.Fatalf("Verdict=%v, expected ALLOW", resp.Decision.Verdict)
	}
	if resp.Decision.FrictionRequired {
		t.Fatal("clean bet should not require friction")
	}
}

func TestEvaluateRejectsInvalidRequests(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"negative stake", `{"stake": -5, "odds": -110, "event_id": "e1", "team_id": "t1"}`},
		{"missing event id", `{"stake": 10, "odds": -110, "team_id": "t1"}`},
		{"missing team id", `{"stake": 10, "odds": -110, "event_id": "e1"}`},
		{"malformed json", `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(s, http.MethodPost, "/api/evaluate", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status=%d, expected 400", w.Code)
			}
		})
	}
}

func TestEvaluateRequiresBankroll(t *testing.T) {
	s := newTestServer(t)
	// Zero out the bankroll through a fresh manager.
	bank, err := bankroll.NewManager(context.Background(), nil, 0)
	if err != nil {
		t.Fatalf("bankroll.NewManager returned error: %v", err)
	}
	s.Bankroll = bank

	w := doJSON(s, http.MethodPost, "/api/evaluate",
		`{"stake": 15, "odds": -110, "event_id": "e1", "team_id": "t1"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, expected 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "BANKROLL_NOT_SET") {
		t.Fatalf("missing error code: %s", w.Body.String())
	}
}

func TestRecordBetHappyPath(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(s, http.MethodPost, "/api/bets",
		`{"stake": 15, "odds": -110, "event_id": "e1", "team_id": "t1"}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d, expected 201: %s", w.Code, w.Body.String())
	}
	if s.Ledger.Len() != 1 {
		t.Fatalf("ledger len=%d, expected 1", s.Ledger.Len())
	}
}

func TestRecordBetRequiresOverrideOnFriction(t *testing.T) {
	s := newTestServer(t)

	// Stake above the unit cap (20) produces a WARN verdict.
	body := `{"stake": 25, "odds": -110, "event_id": "e1", "team_id": "t1"}`
	w := doJSON(s, http.MethodPost, "/api/bets", body)

	if w.Code != http.StatusConflict {
		t.Fatalf("status=%d, expected 409: %s", w.Code, w.Body.String())
	}
	if s.Ledger.Len() != 0 {
		t.Fatalf("refused bet must not reach the ledger, len=%d", s.Ledger.Len())
	}

	// Same bet with override lands.
	w = doJSON(s, http.MethodPost, "/api/bets",
		`{"stake": 25, "odds": -110, "event_id": "e1", "team_id": "t1", "override": true}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d with override, expected 201: %s", w.Code, w.Body.String())
	}
	if s.Ledger.Len() != 1 {
		t.Fatalf("ledger len=%d, expected 1", s.Ledger.Len())
	}
}

func TestRecordBetBlockedDuringCooldown(t *testing.T) {
	s := newTestServer(t)

	// Start a cooldown through the tracker, as a recorded red-alert bet would.
	s.Behavior.RecordOutcome(context.Background(),
		guard.DecisionResult{Verdict: guard.VerdictRedAlert, FrictionRequired: true, CooldownTriggered: true},
		true, s.Now())

	w := doJSON(s, http.MethodPost, "/api/bets",
		`{"stake": 5, "odds": -110, "event_id": "e1", "team_id": "t1"}`)
	if w.Code != http.StatusLocked {
		t.Fatalf("status=%d during cooldown, expected 423: %s", w.Code, w.Body.String())
	}

	// Clearing the cooldown unblocks recording.
	if w := doJSON(s, http.MethodPost, "/api/cooldown/clear", ""); w.Code != http.StatusOK {
		t.Fatalf("clear cooldown status=%d", w.Code)
	}
	w = doJSON(s, http.MethodPost, "/api/bets",
		`{"stake": 5, "odds": -110, "event_id": "e9", "team_id": "t9"}`)
	if w.Code == http.StatusLocked {
		t.Fatalf("still locked after clear: %s", w.Body.String())
	}
}

func TestRulesEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(s, http.MethodGet, "/api/rules", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get rules status=%d", w.Code)
	}

	w = doJSON(s, http.MethodPut, "/api/rules",
		`{"unit_pct": 1, "daily_pct": 3, "weekly_pct": 10, "event_pct": 2, "team_pct": 4, "max_bets_per_day": 3, "odds_gate_min": 200}`)
	if w.Code != http.StatusOK {
		t.Fatalf("put rules status=%d: %s", w.Code, w.Body.String())
	}
	if got := s.Rules.GetRules().UnitPct; got != 1 {
		t.Fatalf("UnitPct=%v after update, expected 1", got)
	}

	// Partial updates fall back to defaults, never zero caps.
	w = doJSON(s, http.MethodPut, "/api/rules", `{"unit_pct": 5}`)
	if w.Code != http.StatusOK {
		t.Fatalf("partial put rules status=%d", w.Code)
	}
	r := s.Rules.GetRules()
	if r.UnitPct != 5 || r.WeeklyPct != guard.DefaultRules().WeeklyPct {
		t.Fatalf("partial update merged wrong: %+v", r)
	}
}

func TestApplyPresetEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.Presets = []guard.Preset{
		{Name: "conservative", Rules: guard.RuleConfig{UnitPct: 1}},
	}

	w := doJSON(s, http.MethodPost, "/api/rules/preset/conservative", "")
	if w.Code != http.StatusOK {
		t.Fatalf("apply preset status=%d: %s", w.Code, w.Body.String())
	}
	if got := s.Rules.GetRules().UnitPct; got != 1 {
		t.Fatalf("UnitPct=%v after preset, expected 1", got)
	}

	w = doJSON(s, http.MethodPost, "/api/rules/preset/nonsense", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown preset status=%d, expected 404", w.Code)
	}
}

func TestBankrollEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(s, http.MethodPut, "/api/bankroll", `{"amount": 2500}`)
	if w.Code != http.StatusOK {
		t.Fatalf("put bankroll status=%d: %s", w.Code, w.Body.String())
	}
	if got := s.Bankroll.Amount(); got != 2500 {
		t.Fatalf("Amount=%v, expected 2500", got)
	}

	// Non-positive amounts never pass validation.
	for _, body := range []string{`{"amount": 0}`, `{"amount": -10}`} {
		w = doJSON(s, http.MethodPut, "/api/bankroll", body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %s: status=%d, expected 400", body, w.Code)
		}
	}
}

// Every append bumps the ledger version, so without eviction each recorded
// bet would strand one snapshot under a dead version key forever.
func TestRecordBetEvictsStaleSnapshots(t *testing.T) {
	s := newTestServer(t)

	for i := 0; i < 5; i++ {
		w := doJSON(s, http.MethodPost, "/api/bets",
			`{"stake": 5, "odds": -110, "event_id": "e1", "team_id": "t1"}`)
		if w.Code != http.StatusCreated {
			t.Fatalf("bet %d: status=%d: %s", i, w.Code, w.Body.String())
		}
	}
	if n := s.Snapshots.Len(); n != 0 {
		t.Fatalf("cache holds %d snapshots under dead versions, expected 0", n)
	}

	// An evaluation at the current version stays cached until superseded.
	w := doJSON(s, http.MethodPost, "/api/evaluate",
		`{"stake": 5, "odds": -110, "event_id": "e1", "team_id": "t1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("evaluate status=%d: %s", w.Code, w.Body.String())
	}
	if n := s.Snapshots.Len(); n != 1 {
		t.Fatalf("cache Len=%d after one live evaluation, expected 1", n)
	}
}

func TestGetBetsPagination(t *testing.T) {
	s := newTestServer(t)

	for i := 0; i < 3; i++ {
		w := doJSON(s, http.MethodPost, "/api/bets",
			`{"stake": 5, "odds": -110, "event_id": "e1", "team_id": "t1"}`)
		if w.Code != http.StatusCreated {
			t.Fatalf("seed bet status=%d: %s", w.Code, w.Body.String())
		}
	}

	w := doJSON(s, http.MethodGet, "/api/bets?limit=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get bets status=%d", w.Code)
	}
	var resp struct {
		Bets  []guard.LedgerEntry `json:"bets"`
		Total int                 `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Bets) != 2 || resp.Total != 3 {
		t.Fatalf("bets=%d total=%d, expected 2 of 3", len(resp.Bets), resp.Total)
	}
}

func TestStatusEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(s, http.MethodGet, "/api/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	body := w.Body.String()
	for _, field := range []string{"bankroll", "rules", "counters", "cooldown_active", "ledger_size"} {
		if !strings.Contains(body, field) {
			t.Fatalf("status response missing %q: %s", field, body)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)

	doJSON(s, http.MethodPost, "/api/evaluate",
		`{"stake": 15, "odds": -110, "event_id": "e1", "team_id": "t1"}`)

	w := doJSON(s, http.MethodGet, "/api/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", w.Code)
	}
	var snap monitor.MetricsSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode metrics: %v", err)
	}
	if snap.Evaluations < 1 {
		t.Fatalf("Evaluations=%d, expected at least 1", snap.Evaluations)
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(s, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("health status=%d", w.Code)
	}
}

// A client-supplied request id shorter than a UUID must not break logging.
func TestShortRequestIDHeader(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc")
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status=%d with short request id, expected 200", w.Code)
	}
}
