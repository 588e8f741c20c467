package behavior

import (
	"context"
	"database/sql"
	"log"
	"sync"
	"time"

	"stake-guard/internal/guard"
	"stake-guard/pkg/db"
)

// Spike heuristics over the recent ledger.
const (
	velocityLookback   = 5
	velocityMinSamples = 3
	velocityFactor     = 2.0
	frequencyWindow    = 2 * time.Hour
	frequencyMinBets   = 3
)

// Tracker maintains the persisted behavioral counters (override streak,
// cooldown violations, active cooldown) and derives spike flags from the
// ledger. The decision engine itself never reads any of this directly; the
// tracker produces the BehavioralState one evaluation consumes.
type Tracker struct {
	mu               sync.Mutex
	overrides        int
	violations       int
	cooldownUntil    time.Time
	cooldownDuration time.Duration
	queries          *db.Queries
}

// NewTracker creates a tracker seeded from the DB. Missing state starts at
// zero counters with no cooldown.
func NewTracker(ctx context.Context, queries *db.Queries, cooldownDuration time.Duration) *Tracker {
	t := &Tracker{
		queries:          queries,
		cooldownDuration: cooldownDuration,
	}
	if queries == nil {
		return t
	}
	state, err := queries.GetBehaviorState(ctx)
	if err != nil {
		if err != db.ErrNotFound {
			log.Printf("[BEHAVIOR] load failed, starting clean: %v", err)
		}
		return t
	}
	t.overrides = state.ConsecutiveOverrides
	t.violations = state.CooldownViolations
	if state.CooldownUntil.Valid {
		t.cooldownUntil = state.CooldownUntil.Time
	}
	return t
}

// State assembles the behavioral state for one evaluation. The spike flags
// are derived from the ledger snapshot and the candidate stake; the counters
// come from persisted history.
func (t *Tracker) State(entries []guard.LedgerEntry, stake float64, now time.Time) guard.BehavioralState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return guard.BehavioralState{
		StakeVelocitySpike:   stakeVelocitySpike(entries, stake),
		FrequencySpike:       frequencySpike(entries, now),
		ConsecutiveOverrides: t.overrides,
		CooldownViolations:   t.violations,
		CooldownActive:       now.Before(t.cooldownUntil),
	}
}

// CooldownActive reports whether a cooldown is running at now.
func (t *Tracker) CooldownActive(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return now.Before(t.cooldownUntil)
}

// CooldownUntil returns the cooldown expiry (zero when none).
func (t *Tracker) CooldownUntil() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cooldownUntil
}

// RecordOutcome updates the counters after a bet was recorded. overridden
// marks that the user pushed a friction-required bet through anyway.
func (t *Tracker) RecordOutcome(ctx context.Context, result guard.DecisionResult, overridden bool, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if now.Before(t.cooldownUntil) {
		t.violations++
	}

	if result.FrictionRequired && overridden {
		t.overrides++
	} else if !result.FrictionRequired {
		t.overrides = 0
	}

	if result.CooldownTriggered {
		t.cooldownUntil = now.Add(t.cooldownDuration)
		log.Printf("[BEHAVIOR] cooldown started, until %s", t.cooldownUntil.Format(time.RFC3339))
	}

	t.persist(ctx)
}

// ClearCooldown ends an active cooldown early (manual reset).
func (t *Tracker) ClearCooldown(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cooldownUntil = time.Time{}
	t.persist(ctx)
}

func (t *Tracker) persist(ctx context.Context) {
	if t.queries == nil {
		return
	}
	state := db.BehaviorState{
		ConsecutiveOverrides: t.overrides,
		CooldownViolations:   t.violations,
	}
	if !t.cooldownUntil.IsZero() {
		state.CooldownUntil = sql.NullTime{Time: t.cooldownUntil, Valid: true}
	}
	if err := t.queries.SaveBehaviorState(ctx, state); err != nil {
		log.Printf("[BEHAVIOR] persist failed: %v", err)
	}
}

// stakeVelocitySpike fires when the candidate stake is more than
// velocityFactor times the mean stake of the most recent entries. Too little
// history never spikes.
func stakeVelocitySpike(entries []guard.LedgerEntry, stake float64) bool {
	n := len(entries)
	if n < velocityMinSamples {
		return false
	}
	if n > velocityLookback {
		n = velocityLookback
	}
	var sum float64
	for _, e := range entries[:n] {
		sum += e.Stake
	}
	mean := sum / float64(n)
	return mean > 0 && stake > velocityFactor*mean
}

// frequencySpike fires when enough bets landed inside the trailing window.
func frequencySpike(entries []guard.LedgerEntry, now time.Time) bool {
	cutoff := now.Add(-frequencyWindow)
	count := 0
	for _, e := range entries {
		if !e.PlacedAt.Before(cutoff) {
			count++
			if count >= frequencyMinBets {
				return true
			}
		}
	}
	return false
}
