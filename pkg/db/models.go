// Package db provides SQLite persistence for the stake guard: the bet
// ledger, the active rule configuration, behavioral-state counters, and the
// bankroll.
package db

import (
	"database/sql"
	"time"
)

// BehaviorState is the single persisted row of behavioral counters.
type BehaviorState struct {
	ConsecutiveOverrides int
	CooldownViolations   int
	CooldownUntil        sql.NullTime
	UpdatedAt            time.Time
}

// Bankroll is the single persisted capital-base row.
type Bankroll struct {
	Amount    float64
	UpdatedAt time.Time
}
