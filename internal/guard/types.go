package guard

import (
	"encoding/json"
	"fmt"
	"time"
)

// Verdict is the outcome tier of one evaluation. Tiers are totally ordered;
// escalation logic relies on the numeric ranks below.
type Verdict int

const (
	VerdictAllow Verdict = iota
	VerdictWarn
	VerdictHardWarn
	VerdictRedAlert
)

// String returns the wire name of the verdict. These strings are a
// serialization contract with persisted ledgers and must not change.
func (v Verdict) String() string {
	switch v {
	case VerdictAllow:
		return "ALLOW"
	case VerdictWarn:
		return "WARN"
	case VerdictHardWarn:
		return "HARD_WARN"
	case VerdictRedAlert:
		return "RED_ALERT"
	default:
		return fmt.Sprintf("VERDICT(%d)", int(v))
	}
}

// ParseVerdict maps a wire name back to a Verdict. Unknown names map to
// RED_ALERT so a corrupted ledger row reads as maximally cautious.
func ParseVerdict(s string) Verdict {
	switch s {
	case "ALLOW":
		return VerdictAllow
	case "WARN":
		return VerdictWarn
	case "HARD_WARN":
		return VerdictHardWarn
	case "RED_ALERT":
		return VerdictRedAlert
	default:
		return VerdictRedAlert
	}
}

func (v Verdict) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

func (v *Verdict) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*v = ParseVerdict(s)
	return nil
}

// escalate bumps the verdict one tier. RED_ALERT is terminal.
func (v Verdict) escalate() Verdict {
	if v >= VerdictRedAlert {
		return VerdictRedAlert
	}
	return v + 1
}

// atLeast returns the higher of the two tiers.
func (v Verdict) atLeast(floor Verdict) Verdict {
	if v < floor {
		return floor
	}
	return v
}

// Reason is a stable code naming one triggered check. Each check fires at
// most once per evaluation, so a reason list never contains duplicates.
type Reason string

const (
	// Cap violations (checked in this order).
	ReasonUnitSizeCap        Reason = "UNIT_SIZE_CAP_EXCEEDED"
	ReasonDailyExposureCap   Reason = "DAILY_EXPOSURE_CAP_EXCEEDED"
	ReasonWeeklyExposureCap  Reason = "WEEKLY_EXPOSURE_CAP_EXCEEDED"
	ReasonSameEventCap       Reason = "SAME_EVENT_CONCENTRATION_CAP_EXCEEDED"
	ReasonSameTeam7dCap      Reason = "SAME_TEAM_7D_CONCENTRATION_CAP_EXCEEDED"
	ReasonActionFrequencyCap Reason = "ACTION_FREQUENCY_CAP_EXCEEDED"

	// Gates.
	ReasonHighRiskOdds Reason = "HIGH_RISK_ODDS_GATE"

	// Behavioral flags (checked in this order).
	ReasonStakeVelocitySpike   Reason = "STAKE_VELOCITY_SPIKE"
	ReasonFrequencySpike       Reason = "FREQUENCY_SPIKE"
	ReasonConsecutiveOverrides Reason = "CONSECUTIVE_OVERRIDES_HIGH"
	ReasonCooldownViolations   Reason = "COOLDOWN_VIOLATION_HISTORY"

	// Hard stop.
	ReasonCooldownActive Reason = "COOLDOWN_ACTIVE"
)

// ProposedAction is one candidate bet to evaluate. Odds follow the American
// convention (magnitude >= 100, sign marks favorite/underdog, zero invalid).
// Odds is carried as float64 so malformed input can be folded into the odds
// gate instead of failing type conversion at the boundary.
type ProposedAction struct {
	Stake   float64 `json:"stake"`
	Odds    float64 `json:"odds"`
	EventID string  `json:"event_id"`
	TeamID  string  `json:"team_id"`
}

// RuleConfig holds user-configured limits. Percentage fields are expressed
// out of 100 and applied to the current bankroll.
type RuleConfig struct {
	UnitPct       float64 `json:"unit_pct" yaml:"unit_pct"`
	DailyPct      float64 `json:"daily_pct" yaml:"daily_pct"`
	WeeklyPct     float64 `json:"weekly_pct" yaml:"weekly_pct"`
	EventPct      float64 `json:"event_pct" yaml:"event_pct"`
	TeamPct       float64 `json:"team_pct" yaml:"team_pct"`
	MaxBetsPerDay int     `json:"max_bets_per_day" yaml:"max_bets_per_day"`
	OddsGateMin   float64 `json:"odds_gate_min" yaml:"odds_gate_min"`
}

// DefaultRules returns the stock rule set.
func DefaultRules() RuleConfig {
	return RuleConfig{
		UnitPct:       2,
		DailyPct:      6,
		WeeklyPct:     20,
		EventPct:      4,
		TeamPct:       8,
		MaxBetsPerDay: 5,
		OddsGateMin:   250,
	}
}

// Normalize replaces every missing or non-positive field with its default.
// A partially stored config must never evaluate with a zero cap.
func (r RuleConfig) Normalize() RuleConfig {
	def := DefaultRules()
	if r.UnitPct <= 0 {
		r.UnitPct = def.UnitPct
	}
	if r.DailyPct <= 0 {
		r.DailyPct = def.DailyPct
	}
	if r.WeeklyPct <= 0 {
		r.WeeklyPct = def.WeeklyPct
	}
	if r.EventPct <= 0 {
		r.EventPct = def.EventPct
	}
	if r.TeamPct <= 0 {
		r.TeamPct = def.TeamPct
	}
	if r.MaxBetsPerDay <= 0 {
		r.MaxBetsPerDay = def.MaxBetsPerDay
	}
	if r.OddsGateMin <= 0 {
		r.OddsGateMin = def.OddsGateMin
	}
	return r
}

// BehavioralState carries the behavioral signals for one evaluation. The
// engine never derives these itself; the tracker (or the caller) supplies
// them.
type BehavioralState struct {
	StakeVelocitySpike   bool `json:"stake_velocity_spike"`
	FrequencySpike       bool `json:"frequency_spike"`
	ConsecutiveOverrides int  `json:"consecutive_overrides"`
	CooldownViolations   int  `json:"cooldown_violations"`
	CooldownActive       bool `json:"cooldown_active"`
}

// LedgerEntry is one recorded bet. Entries are immutable once created.
type LedgerEntry struct {
	ID       string    `json:"id"`
	PlacedAt time.Time `json:"placed_at"`
	Stake    float64   `json:"stake"`
	Odds     float64   `json:"odds"`
	EventID  string    `json:"event_id"`
	TeamID   string    `json:"team_id"`
	Verdict  Verdict   `json:"verdict"`
	Reasons  []Reason  `json:"reasons"`
}

// LedgerCap bounds the ledger length; oldest entries beyond it are silently
// discarded on insert.
const LedgerCap = 500

// ExposureSnapshot is the aggregated historical exposure relative to one
// candidate bet. Derived on every evaluation, never persisted.
type ExposureSnapshot struct {
	DailyStaked      float64 `json:"daily_staked"`
	WeeklyStaked     float64 `json:"weekly_staked"`
	SameEventStaked  float64 `json:"same_event_staked"`
	SameTeam7dStaked float64 `json:"same_team_7d_staked"`
	BetsToday        int     `json:"bets_today"`
}

// CapSet holds the absolute thresholds derived from bankroll and rules.
type CapSet struct {
	UnitCap   float64 `json:"unit_cap"`
	DailyCap  float64 `json:"daily_cap"`
	WeeklyCap float64 `json:"weekly_cap"`
	EventCap  float64 `json:"event_cap"`
	TeamCap   float64 `json:"team_cap"`
}

// Caps derives the absolute cap set for a bankroll.
func (r RuleConfig) Caps(bankroll float64) CapSet {
	return CapSet{
		UnitCap:   bankroll * r.UnitPct / 100,
		DailyCap:  bankroll * r.DailyPct / 100,
		WeeklyCap: bankroll * r.WeeklyPct / 100,
		EventCap:  bankroll * r.EventPct / 100,
		TeamCap:   bankroll * r.TeamPct / 100,
	}
}

// DecisionResult is the evaluation output. Reasons are ordered: cap
// violations (in check order), then the odds gate, then behavioral flags.
type DecisionResult struct {
	Verdict           Verdict  `json:"verdict"`
	Reasons           []Reason `json:"reasons"`
	FrictionRequired  bool     `json:"friction_required"`
	CooldownTriggered bool     `json:"cooldown_triggered"`
}
