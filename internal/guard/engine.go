package guard

import "math"

// Evaluate runs the full rules evaluation for one candidate bet. Pure and
// deterministic: identical inputs always produce the identical result,
// including reason order. It never mutates its inputs and performs no I/O.
func Evaluate(bankroll float64, rules RuleConfig, action ProposedAction, exposures ExposureSnapshot, behavior BehavioralState) DecisionResult {
	// Hard stop: an active cooldown overrides everything else.
	if behavior.CooldownActive {
		return DecisionResult{
			Verdict:           VerdictRedAlert,
			Reasons:           []Reason{ReasonCooldownActive},
			FrictionRequired:  true,
			CooldownTriggered: true,
		}
	}

	caps := rules.Caps(bankroll)

	projectedDaily := exposures.DailyStaked + action.Stake
	projectedWeekly := exposures.WeeklyStaked + action.Stake
	projectedEvent := exposures.SameEventStaked + action.Stake
	projectedTeam := exposures.SameTeam7dStaked + action.Stake
	projectedCount := exposures.BetsToday + 1

	// Cap checks: strict inequality, fixed order, no early exit. A projected
	// value exactly equal to its cap does not violate.
	var violations []Reason
	if action.Stake > caps.UnitCap {
		violations = append(violations, ReasonUnitSizeCap)
	}
	if projectedDaily > caps.DailyCap {
		violations = append(violations, ReasonDailyExposureCap)
	}
	if projectedWeekly > caps.WeeklyCap {
		violations = append(violations, ReasonWeeklyExposureCap)
	}
	if projectedEvent > caps.EventCap {
		violations = append(violations, ReasonSameEventCap)
	}
	if projectedTeam > caps.TeamCap {
		violations = append(violations, ReasonSameTeam7dCap)
	}
	if projectedCount > rules.MaxBetsPerDay {
		violations = append(violations, ReasonActionFrequencyCap)
	}

	// Odds gate, independent of the cap checks. Malformed odds (NaN, ±Inf,
	// non-integer, zero) are treated as maximally risky, never rejected.
	var gates []Reason
	if !oddsValid(action.Odds) || action.Odds >= rules.OddsGateMin {
		gates = append(gates, ReasonHighRiskOdds)
	}

	var flags []Reason
	if behavior.StakeVelocitySpike {
		flags = append(flags, ReasonStakeVelocitySpike)
	}
	if behavior.FrequencySpike {
		flags = append(flags, ReasonFrequencySpike)
	}
	if behavior.ConsecutiveOverrides >= 2 {
		flags = append(flags, ReasonConsecutiveOverrides)
	}
	if behavior.CooldownViolations >= 1 {
		flags = append(flags, ReasonCooldownViolations)
	}

	// Base verdict from violation and gate counts.
	verdict := VerdictAllow
	switch {
	case len(violations) >= 2:
		verdict = VerdictHardWarn
	case len(violations) == 1:
		verdict = VerdictWarn
	case len(gates) > 0:
		verdict = VerdictWarn
	}

	// Amplification, applied in this exact sequence. Later rules can override
	// earlier ones; the verdict never decreases relative to the base mapping.
	spiking := behavior.StakeVelocitySpike || behavior.FrequencySpike
	if containsReason(violations, ReasonWeeklyExposureCap) {
		verdict = VerdictRedAlert
	}
	if behavior.ConsecutiveOverrides >= 3 {
		verdict = VerdictRedAlert
	}
	if behavior.CooldownViolations >= 1 && len(violations) >= 1 {
		verdict = VerdictRedAlert
	}
	if len(violations) >= 1 && spiking {
		verdict = verdict.escalate()
	}
	if len(gates) > 0 && spiking {
		verdict = verdict.atLeast(VerdictHardWarn)
	}

	reasons := make([]Reason, 0, len(violations)+len(gates)+len(flags))
	reasons = append(reasons, violations...)
	reasons = append(reasons, gates...)
	reasons = append(reasons, flags...)

	return DecisionResult{
		Verdict:           verdict,
		Reasons:           reasons,
		FrictionRequired:  verdict != VerdictAllow,
		CooldownTriggered: verdict == VerdictRedAlert,
	}
}

// oddsValid reports whether odds are a usable American-odds value: finite,
// integer-valued, and non-zero.
func oddsValid(odds float64) bool {
	if math.IsNaN(odds) || math.IsInf(odds, 0) {
		return false
	}
	if odds != math.Trunc(odds) {
		return false
	}
	return odds != 0
}

func containsReason(rs []Reason, want Reason) bool {
	for _, r := range rs {
		if r == want {
			return true
		}
	}
	return false
}
