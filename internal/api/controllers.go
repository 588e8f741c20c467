package api

import (
	"log"
	"net/http"
	"time"

	"stake-guard/internal/events"
	"stake-guard/internal/guard"
	"stake-guard/internal/monitor"
	"stake-guard/pkg/cache"
	"stake-guard/pkg/i18n"

	"github.com/gin-gonic/gin"
)

type evaluateRequest struct {
	Stake   float64 `json:"stake" binding:"min=0"`
	Odds    float64 `json:"odds"`
	EventID string  `json:"event_id" binding:"required,min=1"`
	TeamID  string  `json:"team_id" binding:"required,min=1"`

	// Optional explicit spike flags; when omitted they are derived from the
	// ledger.
	StakeVelocitySpike *bool `json:"stake_velocity_spike"`
	FrequencySpike     *bool `json:"frequency_spike"`
}

type recordBetRequest struct {
	evaluateRequest
	// Override acknowledges a friction-required verdict and pushes the bet
	// through anyway.
	Override bool `json:"override"`
}

type updateBankrollRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

type listBetsQuery struct {
	Limit int `form:"limit"`
}

func (q *listBetsQuery) normalize() {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	if q.Limit > guard.LedgerCap {
		q.Limit = guard.LedgerCap
	}
}

func respondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, gin.H{
		"code":  code,
		"error": msg,
	})
}

// reasonDetail pairs a reason code with its localized description.
type reasonDetail struct {
	Code        guard.Reason `json:"code"`
	Description string       `json:"description"`
}

func describeReasons(reasons []guard.Reason) []reasonDetail {
	details := make([]reasonDetail, 0, len(reasons))
	for _, r := range reasons {
		details = append(details, reasonDetail{
			Code:        r,
			Description: i18n.ReasonText(string(r)),
		})
	}
	return details
}

// evaluation bundles everything one evaluation pass produced.
type evaluation struct {
	action    guard.ProposedAction
	behavior  guard.BehavioralState
	exposures guard.ExposureSnapshot
	caps      guard.CapSet
	result    guard.DecisionResult
	now       time.Time
}

// runEvaluation aggregates exposure (memoized on ledger version), assembles
// the behavioral state, and runs the engine. It never touches the ledger.
func (s *Server) runEvaluation(req evaluateRequest) evaluation {
	now := s.Now()
	action := guard.ProposedAction{
		Stake:   req.Stake,
		Odds:    req.Odds,
		EventID: req.EventID,
		TeamID:  req.TeamID,
	}

	entries, version := s.Ledger.Snapshot()

	key := cache.Key(version, req.EventID, req.TeamID)
	exposures, ok := s.Snapshots.Get(key)
	if !ok {
		exposures = guard.Aggregate(entries, req.EventID, req.TeamID, now)
		s.Snapshots.Set(key, exposures)
	}

	state := s.Behavior.State(entries, req.Stake, now)
	if req.StakeVelocitySpike != nil {
		state.StakeVelocitySpike = *req.StakeVelocitySpike
	}
	if req.FrequencySpike != nil {
		state.FrequencySpike = *req.FrequencySpike
	}

	timer := monitor.NewTimer(s.Metrics.EvalLatency)
	result := s.Rules.Evaluate(s.Bankroll.Amount(), action, exposures, state)
	timer.Stop()
	s.Metrics.IncrementEvaluations()

	return evaluation{
		action:    action,
		behavior:  state,
		exposures: exposures,
		caps:      s.Rules.GetRules().Caps(s.Bankroll.Amount()),
		result:    result,
		now:       now,
	}
}

// POST /api/evaluate
func (s *Server) evaluateBet(c *gin.Context) {
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if s.Bankroll.Amount() <= 0 {
		respondError(c, http.StatusBadRequest, "BANKROLL_NOT_SET", i18n.Get("BankrollInvalid"))
		return
	}

	ev := s.runEvaluation(req)
	log.Printf("[GUARD] "+i18n.Get("BetEvaluated"), ev.result.Verdict, req.Stake, len(ev.result.Reasons))
	s.Bus.Publish(events.EventBetEvaluated, ev.result)

	c.JSON(http.StatusOK, gin.H{
		"decision":  ev.result,
		"reasons":   describeReasons(ev.result.Reasons),
		"exposures": ev.exposures,
		"caps":      ev.caps,
		"behavior":  ev.behavior,
	})
}

// POST /api/bets
func (s *Server) recordBet(c *gin.Context) {
	var req recordBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if s.Bankroll.Amount() <= 0 {
		respondError(c, http.StatusBadRequest, "BANKROLL_NOT_SET", i18n.Get("BankrollInvalid"))
		return
	}

	ev := s.runEvaluation(req.evaluateRequest)

	// An active cooldown blocks recording outright unless explicitly
	// overridden; overriding it is itself tracked as a cooldown violation.
	if ev.behavior.CooldownActive && !req.Override {
		until := s.Behavior.CooldownUntil()
		log.Printf("[GUARD] "+i18n.Get("BetRefusedCooldown"), until.Format(time.RFC3339))
		c.JSON(http.StatusLocked, gin.H{
			"code":           "COOLDOWN_ACTIVE",
			"error":          i18n.ReasonText(string(guard.ReasonCooldownActive)),
			"cooldown_until": until,
			"decision":       ev.result,
		})
		return
	}

	if ev.result.FrictionRequired && !req.Override {
		log.Printf("[GUARD] "+i18n.Get("BetRequiresOverride"), ev.result.Verdict)
		c.JSON(http.StatusConflict, gin.H{
			"code":     "OVERRIDE_REQUIRED",
			"error":    "verdict requires explicit override",
			"decision": ev.result,
			"reasons":  describeReasons(ev.result.Reasons),
		})
		return
	}

	entry := guard.LedgerEntry{
		ID:       s.NewID(),
		PlacedAt: ev.now,
		Stake:    ev.action.Stake,
		Odds:     ev.action.Odds,
		EventID:  ev.action.EventID,
		TeamID:   ev.action.TeamID,
		Verdict:  ev.result.Verdict,
		Reasons:  ev.result.Reasons,
	}

	timer := monitor.NewTimer(s.Metrics.DBLatency)
	err := s.Ledger.Append(c.Request.Context(), entry)
	timer.Stop()
	if err != nil {
		s.Metrics.IncrementErrors()
		respondError(c, http.StatusInternalServerError, "LEDGER_APPEND_FAILED", err.Error())
		return
	}

	// The append bumped the ledger version; snapshots cached under earlier
	// versions can never be read again.
	s.Snapshots.EvictVersionsBelow(s.Ledger.Version())

	overridden := ev.result.FrictionRequired && req.Override
	s.Behavior.RecordOutcome(c.Request.Context(), ev.result, overridden, ev.now)
	s.Metrics.IncrementBetsRecorded()

	log.Printf("[GUARD] "+i18n.Get("BetRecorded"), entry.ID, entry.Stake, entry.EventID)
	s.Bus.Publish(events.EventBetRecorded, entry)
	if ev.result.CooldownTriggered {
		s.Metrics.IncrementCooldowns()
		s.Bus.Publish(events.EventCooldownStarted, s.Behavior.CooldownUntil())
		s.Bus.Publish(events.EventGuardAlert, "cooldown started: verdict "+ev.result.Verdict.String())
	}

	c.JSON(http.StatusCreated, gin.H{
		"entry":    entry,
		"decision": ev.result,
		"reasons":  describeReasons(ev.result.Reasons),
	})
}

// GET /api/bets
func (s *Server) getBets(c *gin.Context) {
	var q listBetsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_QUERY", err.Error())
		return
	}
	q.normalize()

	c.JSON(http.StatusOK, gin.H{
		"bets":    s.Ledger.Recent(q.Limit),
		"total":   s.Ledger.Len(),
		"version": s.Ledger.Version(),
	})
}

// GET /api/rules
func (s *Server) getRules(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"rules": s.Rules.GetRules(),
		"caps":  s.Rules.GetRules().Caps(s.Bankroll.Amount()),
	})
}

// PUT /api/rules
func (s *Server) updateRules(c *gin.Context) {
	var req guard.RuleConfig
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	if err := s.Rules.UpdateRules(c.Request.Context(), req); err != nil {
		respondError(c, http.StatusInternalServerError, "RULES_UPDATE_FAILED", err.Error())
		return
	}

	log.Printf("[GUARD] %s", i18n.Get("RulesUpdated"))
	s.Bus.Publish(events.EventRulesUpdated, s.Rules.GetRules())
	c.JSON(http.StatusOK, gin.H{"rules": s.Rules.GetRules()})
}

// POST /api/rules/preset/:name
func (s *Server) applyPreset(c *gin.Context) {
	name := c.Param("name")
	if err := s.Rules.ApplyPreset(c.Request.Context(), s.Presets, name); err != nil {
		respondError(c, http.StatusNotFound, "PRESET_NOT_FOUND", err.Error())
		return
	}

	log.Printf("[GUARD] "+i18n.Get("PresetApplied"), name)
	s.Bus.Publish(events.EventRulesUpdated, s.Rules.GetRules())
	c.JSON(http.StatusOK, gin.H{"rules": s.Rules.GetRules()})
}

// GET /api/bankroll
func (s *Server) getBankroll(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"amount": s.Bankroll.Amount()})
}

// PUT /api/bankroll
func (s *Server) updateBankroll(c *gin.Context) {
	var req updateBankrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	if err := s.Bankroll.Set(c.Request.Context(), req.Amount); err != nil {
		respondError(c, http.StatusBadRequest, "BANKROLL_INVALID", err.Error())
		return
	}

	log.Printf("[BANKROLL] "+i18n.Get("BankrollUpdated"), req.Amount)
	s.Bus.Publish(events.EventBankrollChanged, req.Amount)
	c.JSON(http.StatusOK, gin.H{"amount": s.Bankroll.Amount()})
}

// POST /api/cooldown/clear
func (s *Server) clearCooldown(c *gin.Context) {
	s.Behavior.ClearCooldown(c.Request.Context())
	log.Printf("[BEHAVIOR] %s", i18n.Get("CooldownCleared"))
	c.JSON(http.StatusOK, gin.H{"cooldown_active": false})
}

// GET /api/status
func (s *Server) getStatus(c *gin.Context) {
	now := s.Now()
	c.JSON(http.StatusOK, gin.H{
		"version":         s.Meta.Version,
		"language":        s.Meta.Language,
		"bankroll":        s.Bankroll.Amount(),
		"rules":           s.Rules.GetRules(),
		"counters":        s.Rules.GetCounters(),
		"ledger_size":     s.Ledger.Len(),
		"ledger_version":  s.Ledger.Version(),
		"cooldown_active": s.Behavior.CooldownActive(now),
		"cooldown_until":  s.Behavior.CooldownUntil(),
	})
}

// GET /api/metrics
func (s *Server) getMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.Metrics.GetSnapshot())
}
