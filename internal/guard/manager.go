package guard

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
)

// Counters tracks evaluation outcomes since process start.
type Counters struct {
	Evaluations uint64 `json:"evaluations"`
	Allowed     uint64 `json:"allowed"`
	Warned      uint64 `json:"warned"`
	HardWarned  uint64 `json:"hard_warned"`
	RedAlerts   uint64 `json:"red_alerts"`
}

// Manager owns the active rule configuration and wraps the pure engine with
// persistence and outcome counters.
type Manager struct {
	db       *sql.DB
	rules    RuleConfig
	counters Counters
	mu       sync.RWMutex
}

// NewManager creates a rule manager backed by the DB. If no active config
// row exists it inserts the defaults.
func NewManager(db *sql.DB) (*Manager, error) {
	mgr := &Manager{db: db}

	if err := mgr.LoadRules(); err != nil {
		if err == sql.ErrNoRows {
			def := DefaultRules()
			if err := mgr.insertDefaultRules(def); err != nil {
				return nil, fmt.Errorf("insert default guard rules: %w", err)
			}
			mgr.rules = def
		} else {
			return nil, fmt.Errorf("load guard rules: %w", err)
		}
	}

	r := mgr.GetRules()
	log.Printf("[GUARD] rule manager initialized: unit=%.1f%% daily=%.1f%% weekly=%.1f%% freq=%d odds_gate=%.0f",
		r.UnitPct, r.DailyPct, r.WeeklyPct, r.MaxBetsPerDay, r.OddsGateMin)

	return mgr, nil
}

// NewInMemory creates a rule manager without DB persistence.
func NewInMemory(rules RuleConfig) *Manager {
	return &Manager{rules: rules.Normalize()}
}

// LoadRules loads the active rule configuration from the DB. Stored fields
// that are missing or non-positive fall back to their defaults, never zero.
func (m *Manager) LoadRules() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db == nil {
		m.rules = DefaultRules()
		return nil
	}

	var r RuleConfig
	err := m.db.QueryRow(`
		SELECT unit_pct, daily_pct, weekly_pct, event_pct, team_pct,
		       max_bets_per_day, odds_gate_min
		FROM guard_rule_configs
		WHERE is_active = 1
		LIMIT 1
	`).Scan(
		&r.UnitPct,
		&r.DailyPct,
		&r.WeeklyPct,
		&r.EventPct,
		&r.TeamPct,
		&r.MaxBetsPerDay,
		&r.OddsGateMin,
	)
	if err != nil {
		return err
	}

	m.rules = r.Normalize()
	return nil
}

func (m *Manager) insertDefaultRules(r RuleConfig) error {
	if m.db == nil {
		m.rules = r
		return nil
	}
	_, err := m.db.Exec(`
		INSERT INTO guard_rule_configs (
			unit_pct, daily_pct, weekly_pct, event_pct, team_pct,
			max_bets_per_day, odds_gate_min, is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, 1, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`,
		r.UnitPct,
		r.DailyPct,
		r.WeeklyPct,
		r.EventPct,
		r.TeamPct,
		r.MaxBetsPerDay,
		r.OddsGateMin,
	)
	return err
}

// GetRules returns a copy of the active rules.
func (m *Manager) GetRules() RuleConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rules
}

// UpdateRules normalizes and persists a new rule configuration.
func (m *Manager) UpdateRules(ctx context.Context, r RuleConfig) error {
	r = r.Normalize()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db == nil {
		m.rules = r
		return nil
	}

	_, err := m.db.ExecContext(ctx, `
		UPDATE guard_rule_configs
		SET unit_pct = ?, daily_pct = ?, weekly_pct = ?, event_pct = ?,
		    team_pct = ?, max_bets_per_day = ?, odds_gate_min = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE is_active = 1
	`,
		r.UnitPct,
		r.DailyPct,
		r.WeeklyPct,
		r.EventPct,
		r.TeamPct,
		r.MaxBetsPerDay,
		r.OddsGateMin,
	)
	if err != nil {
		return fmt.Errorf("update guard rules: %w", err)
	}

	m.rules = r
	return nil
}

// Evaluate runs the engine against the active rules and records the outcome
// in the counters.
func (m *Manager) Evaluate(bankroll float64, action ProposedAction, exposures ExposureSnapshot, behavior BehavioralState) DecisionResult {
	rules := m.GetRules()
	result := Evaluate(bankroll, rules, action, exposures, behavior)

	m.mu.Lock()
	m.counters.Evaluations++
	switch result.Verdict {
	case VerdictAllow:
		m.counters.Allowed++
	case VerdictWarn:
		m.counters.Warned++
	case VerdictHardWarn:
		m.counters.HardWarned++
	case VerdictRedAlert:
		m.counters.RedAlerts++
	}
	m.mu.Unlock()

	return result
}

// GetCounters returns a snapshot of the outcome counters.
func (m *Manager) GetCounters() Counters {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counters
}
