package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"stake-guard/internal/guard"
)

var ErrNotFound = errors.New("record not found")

// Queries provides the query layer over the guard tables.
type Queries struct {
	db *sql.DB
}

// ----------------------------------------
// Bet ledger
// ----------------------------------------

// InsertBet persists one ledger entry. Entries are immutable; there is no
// update path.
func (q *Queries) InsertBet(ctx context.Context, e guard.LedgerEntry) error {
	reasons, err := json.Marshal(e.Reasons)
	if err != nil {
		return fmt.Errorf("marshal reasons: %w", err)
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO bets (id, placed_at, stake, odds, event_id, team_id, verdict, reasons)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		e.PlacedAt,
		e.Stake,
		e.Odds,
		e.EventID,
		e.TeamID,
		e.Verdict.String(),
		string(reasons),
	)
	if err != nil {
		return fmt.Errorf("insert bet: %w", err)
	}
	return nil
}

// ListBets returns entries most-recent-first. limit <= 0 returns all rows.
func (q *Queries) ListBets(ctx context.Context, limit int) ([]guard.LedgerEntry, error) {
	query := `
		SELECT id, placed_at, stake, odds, event_id, team_id, verdict, reasons
		FROM bets
		ORDER BY placed_at DESC, id DESC
	`
	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = q.db.QueryContext(ctx, query+" LIMIT ?", limit)
	} else {
		rows, err = q.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("list bets: %w", err)
	}
	defer rows.Close()

	var entries []guard.LedgerEntry
	for rows.Next() {
		var (
			e           guard.LedgerEntry
			verdict     string
			reasonsJSON string
		)
		if err := rows.Scan(&e.ID, &e.PlacedAt, &e.Stake, &e.Odds, &e.EventID, &e.TeamID, &verdict, &reasonsJSON); err != nil {
			return nil, fmt.Errorf("scan bet: %w", err)
		}
		e.Verdict = guard.ParseVerdict(verdict)
		// A corrupt reasons blob reads as an empty list; storage problems
		// must never surface into the evaluation path.
		if err := json.Unmarshal([]byte(reasonsJSON), &e.Reasons); err != nil {
			e.Reasons = nil
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// TrimBets deletes everything older than the newest keep rows.
func (q *Queries) TrimBets(ctx context.Context, keep int) error {
	if keep <= 0 {
		return nil
	}
	_, err := q.db.ExecContext(ctx, `
		DELETE FROM bets
		WHERE id NOT IN (
			SELECT id FROM bets ORDER BY placed_at DESC, id DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return fmt.Errorf("trim bets: %w", err)
	}
	return nil
}

// CountBets returns the ledger length.
func (q *Queries) CountBets(ctx context.Context) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count bets: %w", err)
	}
	return n, nil
}

// ----------------------------------------
// Behavioral state
// ----------------------------------------

// GetBehaviorState loads the single counters row, or ErrNotFound.
func (q *Queries) GetBehaviorState(ctx context.Context) (BehaviorState, error) {
	var s BehaviorState
	err := q.db.QueryRowContext(ctx, `
		SELECT consecutive_overrides, cooldown_violations, cooldown_until, updated_at
		FROM behavior_state
		WHERE id = 1
	`).Scan(&s.ConsecutiveOverrides, &s.CooldownViolations, &s.CooldownUntil, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, fmt.Errorf("get behavior state: %w", err)
	}
	return s, nil
}

// SaveBehaviorState upserts the single counters row.
func (q *Queries) SaveBehaviorState(ctx context.Context, s BehaviorState) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO behavior_state (id, consecutive_overrides, cooldown_violations, cooldown_until, updated_at)
		VALUES (1, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			consecutive_overrides = excluded.consecutive_overrides,
			cooldown_violations = excluded.cooldown_violations,
			cooldown_until = excluded.cooldown_until,
			updated_at = CURRENT_TIMESTAMP
	`, s.ConsecutiveOverrides, s.CooldownViolations, s.CooldownUntil)
	if err != nil {
		return fmt.Errorf("save behavior state: %w", err)
	}
	return nil
}

// ----------------------------------------
// Bankroll
// ----------------------------------------

// GetBankroll loads the capital base, or ErrNotFound.
func (q *Queries) GetBankroll(ctx context.Context) (Bankroll, error) {
	var b Bankroll
	err := q.db.QueryRowContext(ctx, `
		SELECT amount, updated_at FROM bankroll WHERE id = 1
	`).Scan(&b.Amount, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return b, ErrNotFound
	}
	if err != nil {
		return b, fmt.Errorf("get bankroll: %w", err)
	}
	return b, nil
}

// SetBankroll upserts the capital base.
func (q *Queries) SetBankroll(ctx context.Context, amount float64) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO bankroll (id, amount, updated_at)
		VALUES (1, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			amount = excluded.amount,
			updated_at = CURRENT_TIMESTAMP
	`, amount)
	if err != nil {
		return fmt.Errorf("set bankroll: %w", err)
	}
	return nil
}
